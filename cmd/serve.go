package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/ai/gemini"
	"github.com/talentsift/talentsift/internal/blob"
	"github.com/talentsift/talentsift/internal/docparse"
	"github.com/talentsift/talentsift/internal/events"
	"github.com/talentsift/talentsift/internal/logger"
	"github.com/talentsift/talentsift/internal/screening"
	"github.com/talentsift/talentsift/internal/secrets"
	"github.com/talentsift/talentsift/internal/server"
	"github.com/talentsift/talentsift/internal/store"
	"github.com/talentsift/talentsift/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the talentsift API server",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (overrides server.port)")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serve() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting talentsift", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}
	if config.Storage == nil {
		logger.Fatal("storage configuration is required")
	}

	st := openStore(ctx, config, logger)
	defer st.Close()

	if err := st.EnsureProvisioned(ctx); err != nil {
		logger.Fatal("provisioning database schema", zap.Error(err))
	}

	blobs, err := blob.NewStore(ctx, *config.Storage, logger)
	if err != nil {
		logger.Fatal("creating object store client", zap.Error(err))
	}

	publisher := openPublisher(config, logger)
	defer publisher.Close()

	oracles, err := buildOracles(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal(
			"building screening oracles",
			zap.Error(err),
			zap.String("hint", "set ai.gemini.api-key-file or GEMINI_API_KEY"),
		)
	}

	batches := tracker.New(st.TrackerRecords(), blobs, logger)

	screeningCfg := screening.Config{}
	if config.Screening != nil {
		screeningCfg = *config.Screening
	}

	orchestrator := screening.New(screening.Deps{
		Parser:   docparse.New(),
		Blobs:    blobs,
		Reports:  st,
		Jobs:     st,
		Tracker:  batches,
		Matcher:  oracles.matcher,
		Judge:    oracles.judge,
		Profile:  oracles.analyzer,
		Insights: oracles.analyzer,
		Events:   publisher,
		Logger:   logger,
	}, screeningCfg)

	serverCfg := server.Config{Debug: viper.GetBool("debug")}
	if config.Server != nil {
		serverCfg.Port = config.Server.Port
	}

	srv := server.New(st, orchestrator, batches, blobs, docparse.New(), logger, serverCfg)
	if err := srv.Run(); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
}

func openStore(ctx context.Context, config *Config, logger *zap.Logger) *store.Store {
	if config.Database == nil {
		logger.Fatal("database configuration is required")
	}

	dsn, err := secrets.Load(secrets.Source{
		Name:  "database dsn",
		Value: config.Database.DSN,
		File:  config.Database.DSNFile,
		Env:   "DATABASE_URL",
	})
	if err != nil {
		logger.Fatal("loading database dsn", zap.Error(err))
	}

	st, err := store.Open(ctx, dsn, logger)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}

	return st
}

// openPublisher connects to the event broker when enabled. A broker outage at
// startup degrades to no events rather than refusing to serve.
func openPublisher(config *Config, logger *zap.Logger) *events.Publisher {
	if config.Events == nil || !config.Events.Enabled {
		return nil
	}

	url, err := secrets.Load(secrets.Source{
		Name:  "rabbitmq url",
		Value: config.Events.URL,
		Env:   "RABBITMQ_URL",
	})
	if err != nil {
		logger.Warn("progress events disabled", zap.Error(err))
		return nil
	}

	publisher, err := events.Connect(url, logger)
	if err != nil {
		logger.Warn("progress events disabled", zap.Error(err))
		return nil
	}

	return publisher
}

type oracleSet struct {
	matcher  *gemini.SkillMatcher
	judge    *gemini.Judge
	analyzer *gemini.Analyzer
}

func buildOracles(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*oracleSet, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return &oracleSet{
		matcher:  gemini.NewSkillMatcher(generator, genLogger, cfg.Gemini.MaxLogLength),
		judge:    gemini.NewJudge(generator, genLogger, cfg.Gemini.MaxLogLength),
		analyzer: gemini.NewAnalyzer(generator, genLogger, cfg.Gemini.MaxLogLength),
	}, nil
}
