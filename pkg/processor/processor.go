package processor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/grantlab/grantrag/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	// Lookback bounds how far before the size boundary a break is searched.
	Lookback int
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) (Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.Lookback == 0 {
		config.Lookback = 200
	}

	if config.ChunkSize < 1 {
		return Processor{}, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return Processor{}, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d",
			config.ChunkOverlap, config.ChunkSize)
	}

	return Processor{config: config}, nil
}

// Process splits each document independently into chunks of at most
// ChunkSize bytes with ChunkOverlap bytes shared between consecutive
// chunks. Every chunk carries a copy of its document's metadata.
func (p *Processor) Process(docs []models.Document) ([]models.Chunk, error) {
	var chunks []models.Chunk

	for _, doc := range docs {
		for _, text := range p.splitText(doc.Text) {
			metadata := make(map[string]string, len(doc.Metadata))
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			chunks = append(chunks, models.Chunk{
				Text:     text,
				Metadata: metadata,
			})
		}
	}

	return chunks, nil
}

// splitText emits windows of at most ChunkSize bytes. Each window after the
// first starts ChunkOverlap bytes before the previous window's end, advanced
// to the next rune boundary so no chunk begins mid-rune; the effective
// overlap is therefore at most ChunkOverlap. Dropping each chunk's shared
// prefix reconstructs the source exactly.
func (p *Processor) splitText(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= p.config.ChunkSize {
		return []string{text}
	}

	var parts []string
	start := 0
	for {
		end := start + p.config.ChunkSize
		if end >= len(text) {
			parts = append(parts, text[start:])
			break
		}

		cut := p.findBreak(text, start, end)
		parts = append(parts, text[start:cut])
		// The cut always lands past start+overlap, so start strictly
		// increases and the loop terminates.
		start = cut - p.config.ChunkOverlap
		// Never start a chunk inside a multi-byte rune. The cut itself is
		// a rune boundary, so this stops at or before it.
		for !utf8.RuneStart(text[start]) {
			start++
		}
	}

	return parts
}

// findBreak picks the window end: the last paragraph break within the
// lookback region, else the last sentence break, else the last word break,
// else the hard byte boundary (backed up to a rune start).
func (p *Processor) findBreak(text string, start, end int) int {
	// A break is only usable if the next window still advances.
	min := start + p.config.ChunkOverlap + 1
	low := end - p.config.Lookback
	if low < min {
		low = min
	}
	region := text[low:end]

	if i := strings.LastIndex(region, "\n\n"); i >= 0 {
		return low + i + 2
	}
	for _, sep := range []string{". ", ".\n", "! ", "!\n", "? ", "?\n"} {
		if i := strings.LastIndex(region, sep); i >= 0 {
			return low + i + len(sep)
		}
	}
	if i := strings.LastIndexAny(region, " \n\t"); i >= 0 {
		return low + i + 1
	}

	// Hard cut: do not split a multi-byte rune.
	cut := end
	for cut > min && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}
