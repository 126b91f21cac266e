package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"elopement-response/internal/config"
	"elopement-response/internal/drafting"
	"elopement-response/internal/platform/gemini"
	"elopement-response/internal/platform/logging"
	"elopement-response/internal/platform/telegram"
	"elopement-response/internal/protocol"
	"elopement-response/internal/report"
	"elopement-response/internal/response"
	"elopement-response/internal/retry"
	"elopement-response/internal/speech"
)

type cli struct {
	cfg config.Config
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().Int("http-port", 8080, "port for the HTTP API")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().Bool("dev", false, "human readable console logs")

	cmd.Flags().String("draft-provider", string(config.DraftProviderGemini), "draft generator: gemini, vertex or disabled")
	cmd.Flags().String("gemini-api-key", "", "API key for the Gemini API")
	cmd.Flags().String("gemini-model", "gemini-2.5-flash-preview-09-2025", "model used for drafts")
	cmd.Flags().String("vertex-project", "", "Google Cloud project for the vertex draft provider")
	cmd.Flags().String("vertex-region", "asia-east1", "Google Cloud region for the vertex draft provider")

	cmd.Flags().String("tts-provider", string(config.TTSProviderGemini), "speech synthesizer: gemini, elevenlabs or disabled")
	cmd.Flags().String("tts-model", "gemini-2.5-flash-preview-tts", "model used for speech synthesis")
	cmd.Flags().String("tts-voice", speech.DefaultVoice, "voice used for speech synthesis")
	cmd.Flags().String("elevenlabs-api-key", "", "API key for ElevenLabs")
	cmd.Flags().String("stt-url", "", "Whisper transcription endpoint, empty disables dictation")
	cmd.Flags().Duration("clip-hold", 8*time.Second, "how long a clip without known duration stays current")

	cmd.Flags().String("telegram-token", "", "bot token of the staff channel")
	cmd.Flags().Int64("telegram-chat-id", 0, "chat id of the staff channel")
	cmd.Flags().StringSlice("report-font-path", nil, "TTF fonts tried in order for the PDF report")

	cmd.Flags().String("database-url", "", "PostgreSQL URL of the incident archive, empty disables it")
	cmd.Flags().String("migrations-path", "migrations", "directory of the archive migrations")

	cmd.Flags().Duration("session-ttl", 12*time.Hour, "idle time after which a session is dropped")
	cmd.Flags().Duration("request-timeout", 30*time.Second, "timeout of one upstream request")
	cmd.Flags().Int("retry-max-attempts", 5, "attempts per upstream request")
	cmd.Flags().Duration("retry-base-delay", time.Second, "wait after the first failed attempt")
	cmd.Flags().Float64("retry-multiplier", 2, "growth factor of the wait between attempts")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	c.cfg = config.Config{
		HTTPPort:    viper.GetInt("http-port"),
		LogLevel:    viper.GetString("log-level"),
		Development: viper.GetBool("dev"),
		Draft: config.DraftConfig{
			Provider:      config.DraftProvider(viper.GetString("draft-provider")),
			GeminiAPIKey:  viper.GetString("gemini-api-key"),
			Model:         viper.GetString("gemini-model"),
			VertexProject: viper.GetString("vertex-project"),
			VertexRegion:  viper.GetString("vertex-region"),
		},
		Speech: config.SpeechConfig{
			Provider:         config.TTSProvider(viper.GetString("tts-provider")),
			Model:            viper.GetString("tts-model"),
			Voice:            viper.GetString("tts-voice"),
			ElevenLabsAPIKey: viper.GetString("elevenlabs-api-key"),
			STTURL:           viper.GetString("stt-url"),
			ClipHold:         viper.GetDuration("clip-hold"),
		},
		Telegram: config.TelegramConfig{
			Token:  viper.GetString("telegram-token"),
			ChatID: viper.GetInt64("telegram-chat-id"),
		},
		Retry: retry.Policy{
			MaxAttempts: viper.GetInt("retry-max-attempts"),
			BaseDelay:   viper.GetDuration("retry-base-delay"),
			Multiplier:  viper.GetFloat64("retry-multiplier"),
		},
		DatabaseURL:     viper.GetString("database-url"),
		MigrationsPath:  viper.GetString("migrations-path"),
		ReportFontPaths: viper.GetStringSlice("report-font-path"),
		SessionTTL:      viper.GetDuration("session-ttl"),
		RequestTimeout:  viper.GetDuration("request-timeout"),
	}
	return c.cfg.Validate()
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(c.cfg.LogLevel, c.cfg.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proto, err := protocol.Load()
	if err != nil {
		return err
	}

	db := c.openArchive(ctx, logger.Named("archive"))
	if db != nil {
		defer db.Close()
	}

	drafts, closeDrafts, err := c.setupDrafting(ctx, logger.Named("drafting"))
	if err != nil {
		return err
	}
	defer closeDrafts()

	voice := c.cfg.Speech.Voice
	if c.cfg.Speech.Provider == config.TTSProviderElevenLabs && voice == speech.DefaultVoice {
		voice = ""
	}
	speechCfg := response.SpeechConfig{
		Synthesizer:  c.setupSynthesizer(),
		Voice:        voice,
		FallbackHold: c.cfg.Speech.ClipHold,
	}
	if c.cfg.Speech.STTURL != "" {
		speechCfg.Transcriber = speech.NewWhisperClient(c.cfg.Speech.STTURL)
	}

	var tgClient report.TelegramClient
	if c.cfg.Telegram.Token != "" {
		tgClient = telegram.NewClient(c.cfg.Telegram.Token)
	}
	reportSvc := report.NewService(tgClient, c.cfg.Telegram.ChatID, c.cfg.Retry, c.cfg.ReportFontPaths, logger.Named("report"))
	if !reportSvc.Enabled() {
		logger.Warn("staff channel is not configured, broadcasts and reports are disabled")
	}

	responseSvc := response.NewService(
		response.NewRepository(c.cfg.SessionTTL),
		response.NewArchive(db),
		proto,
		drafts,
		speechCfg,
		reportSvc,
		logger.Named("response"),
	)
	responseHandler := response.NewHandler(responseSvc, logger.Named("http"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger.Named("access")))
	r.Use(middleware.Recoverer)

	// CORS for frontend
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			if r.Method == http.MethodOptions {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/api", func(r chi.Router) {
		response.RegisterRoutes(r, responseHandler)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", c.cfg.HTTPPort),
			zap.String("draft_provider", string(c.cfg.Draft.Provider)),
			zap.String("tts_provider", string(c.cfg.Speech.Provider)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openArchive connects and migrates the archive database. Failures leave the archive off.
func (c *cli) openArchive(ctx context.Context, logger *zap.Logger) *sql.DB {
	if c.cfg.DatabaseURL == "" {
		logger.Info("no database configured, incident archive disabled")
		return nil
	}

	db, err := sql.Open("postgres", c.cfg.DatabaseURL)
	if err != nil {
		logger.Error("could not open database", zap.Error(err))
		return nil
	}
	connect := retry.Policy{MaxAttempts: 10, BaseDelay: time.Second, Multiplier: 1.5}
	_, err = connect.Do(ctx, db.PingContext, func(a retry.Attempt) {
		logger.Info("waiting for database", zap.Int("attempt", a.Number), zap.Duration("wait", a.Wait))
	})
	if err != nil {
		logger.Error("could not connect to database, incident archive disabled", zap.Error(err))
		db.Close()
		return nil
	}

	m, err := migrate.New("file://"+c.cfg.MigrationsPath, c.cfg.DatabaseURL)
	if err != nil {
		logger.Error("migration init failed", zap.Error(err))
		db.Close()
		return nil
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("migration up failed", zap.Error(err))
		db.Close()
		return nil
	}
	logger.Info("incident archive ready")
	return db
}

func (c *cli) setupDrafting(ctx context.Context, logger *zap.Logger) (*drafting.Service, func(), error) {
	noop := func() {}
	var gen drafting.Generator
	closeFn := noop

	switch c.cfg.Draft.Provider {
	case config.DraftProviderGemini:
		gen = drafting.NewGeminiGenerator(gemini.NewClient(c.cfg.Draft.GeminiAPIKey, c.cfg.RequestTimeout), c.cfg.Draft.Model)
	case config.DraftProviderVertex:
		vg, err := drafting.NewVertexGenerator(ctx, c.cfg.Draft.VertexProject, c.cfg.Draft.VertexRegion, c.cfg.Draft.Model)
		if err != nil {
			return nil, noop, err
		}
		gen = vg
		closeFn = func() {
			if err := vg.Close(); err != nil {
				logger.Warn("failed to close vertex client", zap.Error(err))
			}
		}
	default:
		logger.Info("remote drafting disabled, drafts are rendered locally")
		return drafting.NewService(nil, logger), noop, nil
	}

	client := drafting.NewClient(gen, c.cfg.Retry, logger)
	return drafting.NewService(client, logger), closeFn, nil
}

func (c *cli) setupSynthesizer() speech.Synthesizer {
	switch c.cfg.Speech.Provider {
	case config.TTSProviderGemini:
		return speech.NewGeminiSynthesizer(gemini.NewClient(c.cfg.Draft.GeminiAPIKey, c.cfg.RequestTimeout), c.cfg.Speech.Model)
	case config.TTSProviderElevenLabs:
		return speech.NewElevenLabsSynthesizer(c.cfg.Speech.ElevenLabsAPIKey)
	}
	return speech.Disabled{}
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "elopement-response",
		Short:   "HTTP service backing the 333 elopement response tool",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
