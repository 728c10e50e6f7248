package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"texvoice/backend/internal/admin"
	"texvoice/backend/internal/audio"
	"texvoice/backend/internal/dictionary"
	"texvoice/backend/internal/discord"
	"texvoice/backend/internal/metrics"
	"texvoice/backend/internal/playback"
	"texvoice/backend/internal/router"
	"texvoice/backend/internal/settings"
	"texvoice/backend/internal/textproc"
	"texvoice/backend/internal/tts"
	"texvoice/backend/internal/voicevox"
	"texvoice/backend/pkg/config"
	"texvoice/backend/pkg/logger"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "texvoice"

var logLevel string

var rootCmd = &cobra.Command{
	Use:          "texvoice",
	Short:        "Discord bot that reads chat messages aloud with VOICEVOX",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runBot,
}

var speakersCmd = &cobra.Command{
	Use:   "speakers",
	Short: "Print the speech engine's speaker list and exit",
	Args:  cobra.NoArgs,
	RunE:  runSpeakers,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.AddCommand(speakersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and initializes the global logger. A bad
// configuration is fatal.
func setup() (*config.Config, *zap.Logger) {
	cfg, cfgErr := config.Load()

	env, level := "development", logLevel
	if cfg != nil {
		env = cfg.Env
		if level == "" {
			level = cfg.LogLevel
		}
	}
	if err := logger.Init(env, level); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	log := logger.Get()
	if cfgErr != nil {
		log.Fatal("Failed to load configuration", zap.Error(cfgErr))
	}
	return cfg, log
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, log := setup()
	defer logger.Sync()

	log.Info("Starting texvoice...", zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persisted settings
	store := settings.NewStore(cfg.BotSettingsPath, cfg.UserSettingsPath, cfg.DictionaryPath, log)
	loaded, err := store.Load()
	if err != nil {
		log.Fatal("Failed to load settings", zap.Error(err))
	}

	token, err := resolveToken(cfg.DiscordBotToken, loaded.Bot.Token)
	if err != nil {
		log.Fatal("No Discord token configured", zap.Error(err))
	}

	dicts := dictionary.NewRegistry()
	loadDictionaries(dicts, loaded.Dictionaries, log)

	// Metrics
	provider, metricsHandler, err := metrics.Setup(ctx, serviceName, cfg.Env)
	if err != nil {
		log.Fatal("Failed to set up metrics", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()
	recorder, err := metrics.NewRecorder(provider)
	if err != nil {
		log.Fatal("Failed to create metric instruments", zap.Error(err))
	}

	// Speech engine
	engine := voicevox.NewClient(cfg.VoicevoxURL, cfg.VoicevoxTimeout, log)
	catalog, err := voicevox.LoadCatalog(ctx, engine)
	if err != nil {
		log.Fatal("Failed to load speaker catalog", zap.String("url", cfg.VoicevoxURL), zap.Error(err))
	}
	log.Info("Speaker catalog loaded", zap.Int("styles", catalog.Len()))

	ffmpeg := audio.FindExecutable(cfg.FFmpegPath)
	if ffmpeg == "" {
		log.Warn("ffmpeg not found in PATH; synthesis will fail until it is installed",
			zap.String("ffmpeg", cfg.FFmpegPath))
		ffmpeg = cfg.FFmpegPath
	}

	synth := tts.NewSynthesizer(engine, audio.NewTranscoder(ffmpeg, log), tts.Options{
		Concurrency: cfg.SynthesisConcurrency,
		Metrics:     recorder,
		Logger:      log,
	})
	sessions := playback.NewManager(synth, playback.Options{
		MaxPending: cfg.MaxPendingUtterances,
		Metrics:    recorder,
		Logger:     log,
	})
	defer sessions.CloseAll()

	// Discord
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Fatal("Failed to create Discord session", zap.Error(err))
	}
	dg.Identify.Intents = discord.Intents

	allow := loaded.Bot.Allowlist()
	msgRouter := router.New(router.Deps{
		Sessions:     sessions,
		Assignments:  loaded.Assignments,
		Channels:     allow,
		Presence:     discord.NewPresence(dg),
		Dictionaries: dicts,
		Replier:      discord.NewReplier(dg),
	}, textproc.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()), cfg.MaxSpeechChars), log)

	bot := discord.NewBot(dg, discord.Deps{
		Sessions:       sessions,
		Router:         msgRouter,
		Assignments:    loaded.Assignments,
		Dictionaries:   dicts,
		Allowlist:      allow,
		Catalog:        catalog,
		Store:          store,
		ConnectTimeout: cfg.VoiceConnectTimeout,
	}, log)
	bot.AddHandlers()

	if err := dg.Open(); err != nil {
		log.Fatal("Failed to open Discord connection", zap.Error(err))
	}
	defer dg.Close()

	if err := bot.RegisterCommands(); err != nil {
		log.Error("Failed to register slash commands", zap.Error(err))
	}

	log.Info("texvoice is running. Press CTRL-C to exit.")

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AdminAddr != "" {
		srv := admin.New(admin.Deps{
			Sessions:     sessions,
			Speakers:     catalog,
			Models:       synth.Models(),
			Dictionaries: dicts,
			Metrics:      metricsHandler,
		}, cfg.IsProduction(), log)
		g.Go(func() error {
			return srv.Run(gctx, cfg.AdminAddr)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Admin server failed", zap.Error(err))
	}

	log.Info("Shutting down texvoice...")
	return nil
}

func runSpeakers(cmd *cobra.Command, args []string) error {
	cfg, log := setup()
	defer logger.Sync()

	engine := voicevox.NewClient(cfg.VoicevoxURL, cfg.VoicevoxTimeout, log)
	catalog, err := voicevox.LoadCatalog(cmd.Context(), engine)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), catalog.Render())
	return err
}

// resolveToken prefers the environment token over the one in the bot
// settings document
func resolveToken(envToken, fileToken string) (string, error) {
	if envToken != "" {
		return envToken, nil
	}
	if fileToken != "" {
		return fileToken, nil
	}
	return "", fmt.Errorf("set DISCORD_BOT_TOKEN or \"token\" in the bot settings document")
}

// loadDictionaries registers stored rules. Rules that no longer validate
// are skipped.
func loadDictionaries(reg *dictionary.Registry, docs []settings.GuildEntries, log *zap.Logger) int {
	loaded := 0
	for _, doc := range docs {
		errs := reg.Load(doc.GuildID, doc.Entries)
		for _, err := range errs {
			log.Warn("Skipping stored dictionary entry",
				zap.String("guild_id", doc.GuildID),
				zap.Error(err))
		}
		loaded += len(doc.Entries) - len(errs)
	}
	log.Info("Dictionaries loaded", zap.Int("guilds", len(docs)), zap.Int("rules", loaded))
	return loaded
}
