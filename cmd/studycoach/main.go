// Package main provides the studycoach CLI entry point: one invocation
// runs one study cycle.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dmaranges/studycoach/internal/channel/telegram"
	"github.com/dmaranges/studycoach/internal/config"
	"github.com/dmaranges/studycoach/internal/corpus"
	"github.com/dmaranges/studycoach/internal/db/sqlite"
	"github.com/dmaranges/studycoach/internal/extract"
	"github.com/dmaranges/studycoach/internal/quiz"
	"github.com/dmaranges/studycoach/internal/quiz/groq"
	"github.com/dmaranges/studycoach/internal/scoring"
	"github.com/dmaranges/studycoach/internal/session"
	"github.com/dmaranges/studycoach/internal/source/notion"
	"github.com/dmaranges/studycoach/pkg/models"
)

// Version is set at build time via ldflags.
var Version = "dev"

// pageSearcher lists the pages visible to the source integration.
type pageSearcher interface {
	SearchPages(ctx context.Context) ([]notion.PageRef, error)
}

// resolveRoots picks the corpus roots for this run: an explicit -root
// wins, then corpus.yaml, then every page the integration can see.
// The discovery fallback keeps a fresh install studyable with zero
// configuration.
func resolveRoots(ctx context.Context, registry *corpus.Registry, pages pageSearcher, rootName string) ([]*corpus.Root, error) {
	if rootName != "" {
		if root, ok := registry.Get(rootName); ok {
			return []*corpus.Root{root}, nil
		}
		// Not a registered name: treat the value as a node ID.
		return []*corpus.Root{{Name: rootName, NodeID: rootName, BoundaryDepth: 1}}, nil
	}

	if roots := registry.All(); len(roots) > 0 {
		return roots, nil
	}

	refs, err := pages.SearchPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover pages: %w", err)
	}
	roots := make([]*corpus.Root, 0, len(refs))
	for _, ref := range refs {
		// Each discovered page is one topic; child content folds in.
		roots = append(roots, &corpus.Root{Name: ref.Title, NodeID: ref.ID})
	}
	return roots, nil
}

func main() {
	// Parse flags
	rootName := flag.String("root", "", "Corpus root to study (default: every root in corpus.yaml)")
	dataDir := flag.String("data-dir", "", "Data directory (default: ~/.studycoach)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	nowFlag := flag.String("now", "", "Override current time, RFC3339 (for reproducible runs)")
	flag.Parse()

	// Setup logging to stderr
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	now := time.Now()
	if *nowFlag != "" {
		parsed, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -now value")
		}
		now = parsed
	}

	// Ensure data directory and settings exist
	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}

	// Override data directory if specified
	dbPath := cfg.DBPath
	corpusPath := cfg.CorpusPath
	if *dataDir != "" {
		dbPath = filepath.Join(*dataDir, "studycoach.db")
		corpusPath = filepath.Join(*dataDir, "corpus.yaml")
	}

	// Secrets come from the environment, never from settings.json
	notionToken := os.Getenv("NOTION_TOKEN")
	groqKey := os.Getenv("GROQ_API_KEY")
	telegramToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	switch {
	case notionToken == "":
		log.Fatal().Msg("NOTION_TOKEN is required")
	case groqKey == "":
		log.Fatal().Msg("GROQ_API_KEY is required")
	case telegramToken == "":
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN is required")
	}

	chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
	if chatIDStr == "" {
		chatIDStr = cfg.TelegramChatID
	}
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		log.Fatal().Str("chat_id", chatIDStr).Msg("Telegram chat ID must be numeric")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Interrupted, aborting cycle")
		cancel()
	}()

	// Resolve corpus roots
	src := notion.New(notionToken)
	registry, err := corpus.Load(corpusPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", corpusPath).Msg("Failed to load corpus registry")
	}
	roots, err := resolveRoots(ctx, registry, src, *rootName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve corpus roots")
	}
	if len(roots) == 0 {
		log.Fatal().Str("path", corpusPath).Msg("No corpus roots: corpus.yaml is empty and the integration sees no pages")
	}

	// Initialize SQLite store (migrations run automatically)
	store, err := sqlite.NewStore(sqlite.StoreConfig{
		Path:     dbPath,
		MaxConns: cfg.MaxConns,
		WALMode:  true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize SQLite store")
	}
	defer store.Close()
	progress := sqlite.NewProgressStore(store, cfg.RecentScoreCap)

	// Extract topics from every configured root
	var (
		topics []models.Topic
		diags  []models.Diagnostic
	)
	for _, root := range roots {
		extractor := extract.New(src, cfg.MaxDepth, extract.BoundaryUpTo(root.BoundaryDepth))
		rootTopics, rootDiags, err := extractor.Extract(ctx, root.NodeID)
		if err != nil {
			log.Fatal().Err(err).Str("root", root.Name).Msg("Corpus extraction failed")
		}
		topics = append(topics, rootTopics...)
		diags = append(diags, rootDiags...)
	}
	log.Info().Int("topics", len(topics)).Int("skipped", len(diags)).Msg("Corpus extracted")

	budget, err := quiz.NewTokenBudget(cfg.ContentTokenBudget)
	if err != nil {
		log.Warn().Err(err).Msg("Token budget unavailable, content will not be truncated")
		budget = nil
	}

	groqClient := groq.New(groq.Config{
		APIKey: groqKey,
		Model:  cfg.Model,
		Budget: budget,
	})
	answerChannel := telegram.New(telegram.Config{
		Token:  telegramToken,
		ChatID: chatID,
	})
	engine := scoring.New(scoring.Params{
		ForgettingHalfLifeDays: cfg.ForgettingHalfLifeDays,
		StarvationPerDay:       cfg.StarvationPerDay,
		PerformanceWindow:      3,
	})

	controller := session.New(session.Config{
		TopicsPerSession: cfg.TopicsPerSession,
		AnswerTimeout:    cfg.AnswerTimeout(),
	}, progress, engine, groqClient, groqClient, answerChannel)

	result, err := controller.RunCycle(ctx, topics, diags, now)
	if err != nil {
		log.Error().Err(err).Str("cycle", result.CycleID).Msg("Cycle failed")
		os.Exit(1)
	}

	for _, tr := range result.Topics {
		log.Info().
			Str("topic", tr.TopicID).
			Str("grade", string(tr.Grade)).
			Bool("answered", tr.Answered).
			Msg("Topic reviewed")
	}
	for _, d := range result.Diagnostics {
		log.Warn().Str("stage", d.Stage).Str("topic", d.TopicID).Str("error", d.Err).Msg("Recovered failure")
	}
	log.Info().
		Str("cycle", result.CycleID).
		Int("reviewed", len(result.Topics)).
		Int("diagnostics", len(result.Diagnostics)).
		Msg("Study cycle complete")
}
