package records

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/grantlab/grantrag/internal/models"
)

// textFields is the fixed order in which record fields are rendered into a
// document. The order must never change: chunk boundaries for a given record
// depend on it.
var textFields = []struct {
	Label string
	Key   string
}{
	{"Program Name", "program_name"},
	{"Program Source", "program_source"},
	{"Program Type", "program_type"},
	{"Program Target", "program_target"},
	{"Description", "description"},
	{"Program Status", "program_status"},
	{"Main Industry", "main_industry"},
	{"Location", "location"},
	{"Country", "country"},
	{"Min Employees", "min_employees"},
	{"Max Employees", "max_employees"},
	{"Min Revenue", "min_revenue"},
	{"Max Revenue", "max_revenue"},
	{"Target Audience", "target_audience"},
	{"Open Date", "open_date"},
	{"Close Date", "close_date"},
	{"Min Funding", "min_funding"},
	{"Max Funding", "max_funding"},
	{"Amount", "amount"},
	{"Unit", "unit"},
	{"Selling Internationally", "selling_internationally"},
	{"Incorporated", "incorporated"},
	{"For Profit", "for_profit"},
	{"Indigenous Group", "indigenous_group"},
	{"URL", "url"},
}

// metadataFields is the projection kept alongside every chunk. Only raw
// record fields, never derived values.
var metadataFields = []string{
	"program_id",
	"program_name",
	"program_status",
	"location",
	"country",
	"target_audience",
	"main_industry",
}

// Normalize renders a raw record into a flat labeled document. It is total:
// missing fields render as empty strings, never omitted.
func Normalize(record models.RawRecord) models.Document {
	var b strings.Builder
	for _, f := range textFields {
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(record.GetString(f.Key))
		b.WriteString("\n")
	}

	metadata := make(map[string]string, len(metadataFields))
	for _, key := range metadataFields {
		metadata[key] = record.GetString(key)
	}

	return models.Document{
		Text:     b.String(),
		Metadata: metadata,
	}
}

// NormalizeAll normalizes a batch of records in order.
func NormalizeAll(recs []models.RawRecord) []models.Document {
	docs := make([]models.Document, 0, len(recs))
	for _, r := range recs {
		docs = append(docs, Normalize(r))
	}
	return docs
}

// Load reads a grants JSON file. Source exports are known to contain stray
// ASCII control characters inside string values, so those are stripped
// before decoding.
func Load(path string) ([]models.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grants file: %w", err)
	}

	cleaned := stripControlChars(data)

	var recs []models.RawRecord
	if err := json.Unmarshal(cleaned, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode grants file %s: %w", path, err)
	}
	return recs, nil
}

func stripControlChars(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, c := range data {
		if c < 0x20 || c == 0x7f {
			continue
		}
		out = append(out, c)
	}
	return out
}
