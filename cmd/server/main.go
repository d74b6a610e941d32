package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms/openai"

	"course-rag/internal/config"
	"course-rag/internal/embedding"
	"course-rag/internal/orchestrator"
	"course-rag/internal/rag"
	"course-rag/internal/server"
	"course-rag/internal/session"
	"course-rag/internal/store"
	"course-rag/internal/tools"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	configPath := flag.String("config", configFilePath, "Path to the config file")
	clearExisting := flag.Bool("clear", false, "Drop and rebuild the vector database before ingesting")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	st, err := store.New(cfg.RAG.DBPath, false, embedding.ChromemFunc(embedder), cfg.RAG.MaxResults)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}

	chatLLM, err := openai.New(
		openai.WithBaseURL(cfg.LLM.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.LLM.Key, "Bearer ")),
		openai.WithModel(cfg.LLM.Model),
		openai.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM client")
	}

	sessions := session.NewStore(cfg.RAG.MaxHistory)
	registry := tools.NewRegistry(tools.NewSearchTool(st), tools.NewOutlineTool(st))
	orch := orchestrator.New(chatLLM, registry, sessions, &cfg.LLM)
	sys := rag.New(cfg, st, sessions, orch)

	// Ingestion completes before the server accepts queries.
	courses, chunks, err := sys.AddCourseFolder(context.Background(), cfg.RAG.DocsDir, *clearExisting)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.RAG.DocsDir).Msg("document ingestion incomplete")
	} else {
		log.Info().Int("courses", courses).Int("chunks", chunks).Msg("ingestion complete")
	}

	if err := server.Run(cfg.Server.Listen, sys); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
