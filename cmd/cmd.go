package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/pkg/chat"
	cfgPkg "github.com/xhad/docchat/pkg/config"
	"github.com/xhad/docchat/pkg/ingest"
	"github.com/xhad/docchat/pkg/llm"
	"github.com/xhad/docchat/pkg/source"
	"github.com/xhad/docchat/pkg/store"
	"github.com/xhad/docchat/server"
)

func run(f flags, cfg *cfgPkg.Config) error {
	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		BaseURL:     cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.LLM.BaseURL,
		VectorDim: cfg.Embedding.VectorDim,
		RateLimit: cfg.Embedding.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	docSource, err := source.NewWithConfig(source.SourceConfig{
		URLTemplate: cfg.Source.URLTemplate,
		Timeout:     time.Duration(cfg.Source.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize document source: %v", err)
	}

	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.ChunkTable,
		VectorDim:  cfg.Embedding.VectorDim,
		BatchSize:  cfg.Database.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	convStore, err := store.NewConversationStore(store.ConversationStoreConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.MessageTable,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize conversation store: %v", err)
	}
	defer convStore.Close()

	ingestor := ingest.NewWithConfig(ingest.IngestConfig{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	}, docSource, embedder)

	namespaces := store.NewNamespaceManager(vectorStore, ingestor, embedder)

	pipeline := chat.NewPipeline(chat.PipelineConfig{
		TopK: cfg.Retrieval.TopK,
		Quota: models.QuotaPolicy{
			FreeLimit: cfg.Quota.FreeLimit,
			PaidLimit: cfg.Quota.PaidLimit,
		},
		LockWait: time.Duration(cfg.Server.LockWaitSecs) * time.Second,
	}, convStore, namespaces, chatEngine, chatEngine)

	if f.serve {
		srv := server.New(server.Config{Addr: cfg.Server.Addr}, pipeline, namespaces, convStore)
		return srv.ListenAndServe()
	}

	return chatLoop(f, pipeline, namespaces)
}

func chatLoop(f flags, pipeline *chat.Pipeline, namespaces *store.NamespaceManager) error {
	tier := models.TierFree
	if f.tier == string(models.TierPaid) {
		tier = models.TierPaid
	}

	color.Cyan("\nChat with your documents (paste a document URL to load it, type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var documentID string
	urlRegex := regexp.MustCompile(`https?://[^\s]+`)

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if strings.ToLower(input) == "exit" {
			break
		}
		if input == "" {
			continue
		}

		if url := urlRegex.FindString(input); url != "" {
			spinner := getSpinner(" Ingesting document...")
			err := namespaces.EnsureNamespace(context.Background(), url)
			spinner.Finish()

			if err != nil {
				color.Red("Failed to ingest document: %v\n", err)
				continue
			}

			documentID = url
			color.Green("✓ Document ready, ask away\n")

			if input == url {
				continue
			}
			input = strings.TrimSpace(strings.Replace(input, url, "", 1))
		}

		if documentID == "" {
			color.Yellow("Load a document first by pasting its URL\n")
			continue
		}

		spinner := getSpinner(" Thinking...")
		answer, err := pipeline.SubmitQuestion(context.Background(), f.owner, documentID, input, tier)
		spinner.Finish()

		if err != nil {
			var quota *models.QuotaExceededError
			if errors.As(err, &quota) {
				color.Yellow("%s\n", quota.Error())
				continue
			}
			color.Red("Error: %v\n", err)
			continue
		}

		assistantPrompt("\nAssistant: %s\n", answer)
	}

	return nil
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
