package records_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantlab/grantrag/internal/models"
	"github.com/grantlab/grantrag/pkg/records"
)

func TestNormalizeFieldOrder(t *testing.T) {
	record := models.RawRecord{
		"program_name": "Alberta Made Production Grant",
		"description":  "Supports local film production.",
		"url":          "https://example.com/grant",
	}

	doc := records.Normalize(record)

	lines := strings.Split(strings.TrimRight(doc.Text, "\n"), "\n")
	require.Len(t, lines, 25)

	assert.Equal(t, "Program Name: Alberta Made Production Grant", lines[0])
	assert.Equal(t, "Program Source: ", lines[1])
	assert.Equal(t, "Description: Supports local film production.", lines[4])
	assert.Equal(t, "URL: https://example.com/grant", lines[24])
}

func TestNormalizeIsDeterministic(t *testing.T) {
	record := models.RawRecord{
		"program_name":    "Test Grant",
		"min_employees":   float64(5),
		"target_audience": "Senior",
	}

	first := records.Normalize(record)
	second := records.Normalize(record)

	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Metadata, second.Metadata)
}

func TestNormalizeMetadataProjection(t *testing.T) {
	record := models.RawRecord{
		"program_id":      float64(42),
		"program_name":    "Test Grant",
		"program_status":  "Open",
		"location":        "Alberta",
		"country":         "Canada",
		"target_audience": "NGO",
		"main_industry":   "Arts",
		"description":     "Not part of metadata",
	}

	doc := records.Normalize(record)

	assert.Equal(t, "42", doc.Metadata["program_id"])
	assert.Equal(t, "Test Grant", doc.Metadata["program_name"])
	assert.Equal(t, "Open", doc.Metadata["program_status"])
	assert.Equal(t, "Alberta", doc.Metadata["location"])
	assert.Equal(t, "Canada", doc.Metadata["country"])
	assert.Equal(t, "NGO", doc.Metadata["target_audience"])
	assert.Equal(t, "Arts", doc.Metadata["main_industry"])
	assert.NotContains(t, doc.Metadata, "description")
}

func TestNormalizeMissingProgramID(t *testing.T) {
	doc := records.Normalize(models.RawRecord{"program_name": "No ID"})
	assert.Equal(t, "", doc.Metadata["program_id"])
}

func TestNormalizeEmptyRecord(t *testing.T) {
	doc := records.Normalize(models.RawRecord{})

	// Every field renders, just with empty values.
	lines := strings.Split(strings.TrimRight(doc.Text, "\n"), "\n")
	require.Len(t, lines, 25)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, ": "), "line %q should have an empty value", line)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "grants.json")

	data := `[
		{"program_id": 1, "program_name": "Grant One", "country": "Canada"},
		{"program_id": 2, "program_name": "Grant Two"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	recs, err := records.Load(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Grant One", recs[0].GetString("program_name"))
	assert.Equal(t, "2", recs[1].GetString("program_id"))
}

func TestLoadStripsControlChars(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "grants.json")

	// Stray control bytes inside string values, as seen in real exports.
	data := "[{\"program_name\": \"Grant\x01 One\x1f\"}]"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	recs, err := records.Load(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Grant One", recs[0].GetString("program_name"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := records.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "grants.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err := records.Load(path)
	assert.Error(t, err)
}

func TestGetString(t *testing.T) {
	record := models.RawRecord{
		"text":   "value",
		"number": float64(7),
		"float":  1.5,
		"flag":   true,
		"empty":  nil,
	}

	assert.Equal(t, "value", record.GetString("text"))
	assert.Equal(t, "7", record.GetString("number"))
	assert.Equal(t, "1.5", record.GetString("float"))
	assert.Equal(t, "true", record.GetString("flag"))
	assert.Equal(t, "", record.GetString("empty"))
	assert.Equal(t, "", record.GetString("missing"))
}
