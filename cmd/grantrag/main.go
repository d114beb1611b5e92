package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/grantlab/grantrag/internal/models"
	"github.com/grantlab/grantrag/internal/types"
	cfgPkg "github.com/grantlab/grantrag/pkg/config"
	"github.com/grantlab/grantrag/pkg/index"
	"github.com/grantlab/grantrag/pkg/llm"
	"github.com/grantlab/grantrag/pkg/pipeline"
	"github.com/grantlab/grantrag/pkg/processor"
	"github.com/grantlab/grantrag/pkg/records"
	"github.com/grantlab/grantrag/pkg/scraper"
	"github.com/grantlab/grantrag/pkg/store"
	"github.com/grantlab/grantrag/server"
)

type flags struct {
	configPath string
	grantsFile string
	indexPath  string
	ollamaURL  string
	dbURL      string
	port       string
	grantsURL  string
	rebuild    bool
}

func main() {
	f := parseFlags()

	if err := run(f); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() flags {
	var f flags

	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.StringVar(&f.grantsFile, "grants", "", "Path to grants JSON file")
	flag.StringVar(&f.indexPath, "index", "", "Path to the persisted vector index")
	flag.StringVar(&f.ollamaURL, "ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama server URL")
	flag.StringVar(&f.dbURL, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (enables the pgvector backend)")
	flag.StringVar(&f.port, "port", "", "HTTP listen port")
	flag.StringVar(&f.grantsURL, "grants-url", "", "Grant listing URL to scrape into the index")
	flag.BoolVar(&f.rebuild, "rebuild", false, "Force a fresh index build")
	flag.Parse()

	return f
}

func run(f flags) error {
	config, err := cfgPkg.LoadConfig(f.configPath)
	if err != nil {
		return err
	}

	// Command line flags override the config file.
	if f.grantsFile != "" {
		config.Index.GrantsFile = f.grantsFile
	}
	if f.indexPath != "" {
		config.Index.Path = f.indexPath
	}
	if f.ollamaURL != "" {
		config.LLM.BaseURL = f.ollamaURL
		config.Embedding.BaseURL = f.ollamaURL
	}
	if f.dbURL != "" {
		config.Database.URL = f.dbURL
	}
	if f.port != "" {
		config.Server.Port = f.port
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     config.Embedding.Model,
		BaseURL:   config.Embedding.BaseURL,
		VectorDim: config.Embedding.VectorDim,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	engine, err := llm.NewWithConfig(llm.EngineConfig{
		Model:       config.LLM.Model,
		MaxTokens:   config.LLM.MaxTokens,
		Temperature: config.LLM.Temperature,
		BaseURL:     config.LLM.BaseURL,
		Timeout:     time.Duration(config.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize generation engine: %v", err)
	}

	ctx := context.Background()

	var vectorIndex types.VectorIndex
	if config.Database.URL != "" {
		vectorIndex, err = setupStore(ctx, config, embedder, f)
	} else {
		vectorIndex, err = setupFileIndex(ctx, config, embedder, f)
	}
	if err != nil {
		return err
	}
	defer vectorIndex.Close()

	pl, err := pipeline.New(embedder, vectorIndex, engine, config.Search.TopK)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Port:      config.Server.Port,
		StaticDir: config.Server.StaticDir,
		TopK:      config.Search.TopK,
	}, pl)

	return srv.ListenAndServe()
}

// setupFileIndex loads the persisted index, falling back to a fresh build
// when it is absent or corrupt.
func setupFileIndex(ctx context.Context, config *cfgPkg.Config, embedder types.Embedder, f flags) (types.VectorIndex, error) {
	if !f.rebuild {
		idx, err := index.Load(config.Index.Path)
		if err == nil {
			count, _ := idx.Count(ctx)
			color.Green("✓ Loaded index from %s (%d chunks)", config.Index.Path, count)
			return idx, nil
		}
		switch {
		case errors.Is(err, index.ErrNotFound):
			color.Blue("No existing index at %s, building a fresh one", config.Index.Path)
		case errors.Is(err, index.ErrCorrupt):
			color.Yellow("Persisted index is corrupt, rebuilding: %v", err)
		default:
			return nil, err
		}
	}

	chunks, err := prepareChunks(config, f)
	if err != nil {
		return nil, err
	}

	bar := getProgressBar(len(chunks), " Embedding grant chunks...")
	idx, err := index.Build(ctx, chunks, embedder, index.BuildConfig{
		BatchSize: config.Index.BatchSize,
		OnProgress: func(done, total int) {
			bar.Set(done)
		},
	})
	bar.Finish()
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %v", err)
	}

	if err := idx.Save(config.Index.Path); err != nil {
		return nil, err
	}
	color.Green("✓ Built and saved index with %d chunks", len(chunks))

	return idx, nil
}

// setupStore uses the pgvector backend, ingesting the grants file when the
// table is empty or a rebuild is forced.
func setupStore(ctx context.Context, config *cfgPkg.Config, embedder types.Embedder, f flags) (types.VectorIndex, error) {
	vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: config.Database.URL,
		TableName:  config.Database.TableName,
		VectorDim:  config.Embedding.VectorDim,
	})
	if err != nil {
		return nil, err
	}

	count, err := vs.Count(ctx)
	if err != nil {
		vs.Close()
		return nil, err
	}

	if count > 0 && !f.rebuild {
		color.Green("✓ Using pgvector index (%d chunks)", count)
		return vs, nil
	}

	if f.rebuild {
		if err := vs.Truncate(ctx); err != nil {
			vs.Close()
			return nil, err
		}
	}

	chunks, err := prepareChunks(config, f)
	if err != nil {
		vs.Close()
		return nil, err
	}

	bar := getProgressBar(len(chunks), " Embedding grant chunks...")
	vectors, err := embedAll(ctx, chunks, embedder, config.Index.BatchSize, func(done int) {
		bar.Set(done)
	})
	bar.Finish()
	if err != nil {
		vs.Close()
		return nil, fmt.Errorf("failed to build index: %v", err)
	}

	if err := vs.Add(ctx, chunks, vectors); err != nil {
		vs.Close()
		return nil, err
	}
	color.Green("✓ Built pgvector index with %d chunks", len(chunks))

	return vs, nil
}

// prepareChunks loads grant records from the configured file (plus an
// optional scraped site) and runs them through normalization and chunking.
func prepareChunks(config *cfgPkg.Config, f flags) ([]models.Chunk, error) {
	recs, err := records.Load(config.Index.GrantsFile)
	if err != nil {
		if f.grantsURL == "" {
			return nil, fmt.Errorf("no loadable index and no build inputs: %v", err)
		}
		color.Yellow("Grants file unavailable, continuing with scraped records only: %v", err)
	}

	if f.grantsURL != "" {
		scraped, err := scrapeGrants(config, f.grantsURL)
		if err != nil {
			return nil, err
		}
		recs = append(recs, scraped...)
	}

	if len(recs) == 0 {
		return nil, fmt.Errorf("no grant records to index")
	}

	docs := records.NormalizeAll(recs)
	color.Blue("Loaded %d grants", len(docs))

	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    config.Processor.ChunkSize,
		ChunkOverlap: config.Processor.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	chunks, err := proc.Process(docs)
	if err != nil {
		return nil, err
	}
	color.Blue("Split into %d chunks", len(chunks))

	return chunks, nil
}

func scrapeGrants(config *cfgPkg.Config, grantsURL string) ([]models.RawRecord, error) {
	s, err := scraper.NewWithConfig(scraper.ScraperConfig{
		BaseURL:   grantsURL,
		MaxDepth:  config.Scraper.MaxDepth,
		RateLimit: config.Scraper.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scraper: %v", err)
	}

	bar := getSpinner(" Scraping grant pages...")
	recs, err := s.Scrape(grantsURL)
	bar.Finish()
	if err != nil {
		return nil, fmt.Errorf("failed to scrape grants: %v", err)
	}
	color.Green("✓ Scraped %d grant pages", len(recs))

	return recs, nil
}

// embedAll embeds chunks in batches, failing the whole build on any error.
func embedAll(ctx context.Context, chunks []models.Chunk, embedder types.Embedder, batchSize int, onProgress func(done int)) ([][]float32, error) {
	if batchSize < 1 {
		batchSize = 64
	}

	vectors := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Text)
		}

		batch, err := embedder.CreateEmbedding(ctx, texts)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
		if onProgress != nil {
			onProgress(end)
		}
	}

	return vectors, nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
