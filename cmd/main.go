package main

import (
	"flag"
	"log"
	"os"

	cfgPkg "github.com/xhad/docchat/pkg/config"
)

type flags struct {
	configPath string
	serve      bool
	addr       string
	dbURL      string
	ollamaURL  string
	model      string
	embedModel string
	vectorDim  int
	chunkSize  int
	overlap    int
	topK       int
	freeLimit  int
	paidLimit  int
	sourceTmpl string
	owner      string
	tier       string
}

func main() {
	f, cfg := parseFlags()

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, err := range errs {
			log.Printf("config: %v", err)
		}
		os.Exit(1)
	}

	if err := run(f, cfg); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() (flags, *cfgPkg.Config) {
	var f flags

	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.BoolVar(&f.serve, "serve", false, "Run the HTTP server instead of the interactive chat")
	flag.StringVar(&f.addr, "addr", "", "HTTP listen address")
	flag.StringVar(&f.dbURL, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.StringVar(&f.ollamaURL, "ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama server URL")
	flag.StringVar(&f.model, "model", "", "Chat model to use")
	flag.StringVar(&f.embedModel, "embed-model", "", "Embedding model to use")
	flag.IntVar(&f.vectorDim, "vector-dim", 0, "Embedding vector dimension")
	flag.IntVar(&f.chunkSize, "chunk-size", 0, "Max characters per chunk")
	flag.IntVar(&f.overlap, "chunk-overlap", 0, "Characters shared with the previous chunk")
	flag.IntVar(&f.topK, "top-k", 0, "Number of passages to retrieve per question")
	flag.IntVar(&f.freeLimit, "free-limit", 0, "Question ceiling for free tier conversations")
	flag.IntVar(&f.paidLimit, "paid-limit", 0, "Question ceiling for paid tier conversations")
	flag.StringVar(&f.sourceTmpl, "source-template", "", "URL template resolving document ids, e.g. https://files.example.com/%s")
	flag.StringVar(&f.owner, "owner", "local", "Owner id for the interactive chat")
	flag.StringVar(&f.tier, "tier", "paid", "Owner tier for the interactive chat (free|paid)")
	flag.Parse()

	cfg, err := cfgPkg.LoadConfig(f.configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags that were set explicitly win over the config file
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.dbURL != "" {
		cfg.Database.URL = f.dbURL
	}
	if f.ollamaURL != "" {
		cfg.LLM.BaseURL = f.ollamaURL
	}
	if f.model != "" {
		cfg.LLM.Model = f.model
	}
	if f.embedModel != "" {
		cfg.Embedding.Model = f.embedModel
	}
	if f.vectorDim != 0 {
		cfg.Embedding.VectorDim = f.vectorDim
	}
	if f.chunkSize != 0 {
		cfg.Ingest.ChunkSize = f.chunkSize
	}
	if f.overlap != 0 {
		cfg.Ingest.ChunkOverlap = f.overlap
	}
	if f.topK != 0 {
		cfg.Retrieval.TopK = f.topK
	}
	if f.freeLimit != 0 {
		cfg.Quota.FreeLimit = f.freeLimit
	}
	if f.paidLimit != 0 {
		cfg.Quota.PaidLimit = f.paidLimit
	}
	if f.sourceTmpl != "" {
		cfg.Source.URLTemplate = f.sourceTmpl
	}

	return f, cfg
}
