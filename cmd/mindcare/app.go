package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TobiSchelling/MindCare/internal/analysis"
	"github.com/TobiSchelling/MindCare/internal/assessment"
	"github.com/TobiSchelling/MindCare/internal/cache"
	"github.com/TobiSchelling/MindCare/internal/database"
	"github.com/TobiSchelling/MindCare/internal/knowledge"
	"github.com/TobiSchelling/MindCare/internal/llm"
	"github.com/TobiSchelling/MindCare/internal/mcpserver"
	"github.com/TobiSchelling/MindCare/internal/prompt"
	"github.com/TobiSchelling/MindCare/internal/server"
	"github.com/TobiSchelling/MindCare/internal/session"
)

// app holds the wired services for one command invocation.
type app struct {
	db          *database.DB
	redis       *redis.Client
	sessions    *session.Store
	fusion      *knowledge.Fusion
	assessments *assessment.Service
	analyzer    *analysis.Orchestrator
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "mindcare.db")
	return database.Open(dbPath)
}

// buildApp opens the store and wires every collaborator from cfg.
// Unavailable optional collaborators are logged and left out.
func buildApp(ctx context.Context) (*app, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}
	a := &app{db: db, sessions: session.NewStore(db)}

	gen := cfg.Generation
	provider := llm.CreateProvider(gen.Provider, gen.Model, gen.OllamaURL, gen.OpenAIModel, gen.APIKeyEnv)

	policy, err := llm.RiskPolicyByName(cfg.Classifier.RiskPolicy)
	if err != nil {
		db.Close()
		return nil, err
	}
	classifier := llm.CreateClassifier(cfg.Classifier.Provider, cfg.Classifier.URL, provider, policy)
	if classifier == nil {
		log.Println("No classifier available; emotion and risk will be reported as unknown")
	}

	var retriever knowledge.Retriever
	if cfg.Retrieval.Enabled {
		retriever = knowledge.NewVectorIndex(db, llm.NewOllamaEmbedder(cfg.Retrieval.EmbeddingModel, gen.OllamaURL))
	} else {
		log.Println("Knowledge retrieval disabled")
	}
	a.fusion = knowledge.NewFusion(db, retriever)

	var summaries cache.SummaryCache
	if cfg.Cache.Enabled {
		client, err := cache.Connect(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			log.Printf("Summary cache disabled: %v", err)
		} else {
			a.redis = client
			summaries = cache.NewSummaryCache(client, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		}
	}
	a.assessments = assessment.NewService(db, a.fusion, summaries)

	budgeter := prompt.NewBudgeter(nil, prompt.Budget{
		MaxInputTokens:           cfg.Budget.MaxInputTokens,
		ReservedGenerationTokens: cfg.Budget.ReservedGenerationTokens,
	})

	deps := analysis.Deps{
		Sessions:    a.sessions,
		Assessments: a.assessments,
		Knowledge:   a.fusion,
		Classifier:  classifier,
		Budgeter:    budgeter,
		Generator:   provider,
	}

	a.analyzer = analysis.New(deps, analysis.Options{
		HistoryTurns:    cfg.Budget.HistoryTurns,
		HistoryMaxChars: cfg.Budget.HistoryMaxChars,
		TopK:            cfg.Retrieval.TopK,
		ClassifyTimeout: cfg.ClassifierTimeout(),
		GenerateTimeout: cfg.GenerationTimeout(),
		Decoding: llm.Options{
			MaxTokens:         gen.MaxNewTokens,
			Temperature:       gen.Temperature,
			TopP:              gen.TopP,
			RepetitionPenalty: gen.RepetitionPenalty,
		},
	})
	return a, nil
}

func (a *app) serverServices() server.Services {
	return server.Services{
		Store:       a.db,
		Assessments: a.assessments,
		Sessions:    a.sessions,
		Knowledge:   a.fusion,
		Analyzer:    a.analyzer,
	}
}

func (a *app) mcpServices() mcpserver.Services {
	return mcpserver.Services{
		Assessments: a.assessments,
		Sessions:    a.sessions,
		Knowledge:   a.fusion,
		Analyzer:    a.analyzer,
	}
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}
