// Package main provides the Code SPA playback service entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Arunteja27/code-spa-sub000/internal/auth"
	"github.com/Arunteja27/code-spa-sub000/internal/core"
	httpserver "github.com/Arunteja27/code-spa-sub000/internal/http"
	"github.com/Arunteja27/code-spa-sub000/internal/player"
	"github.com/Arunteja27/code-spa-sub000/internal/session"
	"github.com/Arunteja27/code-spa-sub000/internal/spotify"
	"github.com/Arunteja27/code-spa-sub000/internal/store"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "codespa",
	Short: "Code SPA playback service - Spotify control for the editor",
	Long: `Code SPA playback service pairs the editor customization add-on with a
Spotify account: it handles the login flow, keeps tokens fresh, mirrors the
remote playback state and auto-advances through the selected collection.`,
	RunE: runService,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().Int("callback-port", 8888, "loopback port for the OAuth callback")
	rootCmd.PersistentFlags().Int("poll-interval", 2, "playback poll interval in seconds")
	rootCmd.PersistentFlags().Int("server-port", 8037, "status server port")
	rootCmd.PersistentFlags().String("store-path", "./codespa.db", "path to the local store")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("CODESPA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	if port := viper.GetInt("callback-port"); port != 0 {
		cfg.Spotify.CallbackPort = port
	}

	if secs := viper.GetInt("poll-interval"); secs > 0 {
		cfg.Player.PollInterval = time.Duration(secs) * time.Second
	}

	if host := viper.GetString("server-host"); host != "" {
		cfg.Server.Host = host
	}
	if port := viper.GetInt("server-port"); port != 0 {
		cfg.Server.Port = port
	}

	if path := viper.GetString("store-path"); path != "" {
		cfg.Store.Path = path
	}

	cfg.Log.Level = viper.GetString("log-level")

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runService(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting Code SPA playback service",
		zap.String("store", config.Store.Path),
		zap.Int("callback_port", config.Spotify.CallbackPort))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	db, err := store.OpenSQLite(config.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	httpServer := httpserver.NewServer(&config.Server, logger.Named("http"))
	metrics := httpServer.GetMetrics()
	events := core.NewLogEvents(logger.Named("events"))

	sessions := session.NewManager(db, logger.Named("session"))
	if err := sessions.Load(); err != nil {
		logger.Warn("Failed to restore persisted session", zap.Error(err))
	}

	oauthConf := auth.NewOAuthConfig(config.Spotify)
	refresher := auth.NewOAuthRefresher(oauthConf)
	guardian := session.NewGuardian(sessions, refresher, metrics, logger.Named("guardian"))

	flow := auth.NewFlow(config.Spotify, oauthConf, sessions, spotify.FetchProfile,
		metrics, logger.Named("auth"))

	httpClient := spotify.NewHTTPClient(sessions)
	limits := spotify.NewRateLimit(config.Spotify.RateLimitCooldown)
	facade := spotify.NewFacade(config.Spotify, httpClient, guardian, limits,
		metrics, logger.Named("facade"))

	cache := store.NewCollectionCache(store.DefaultCacheSize, config.Player.CollectionTTL)
	library := spotify.NewLibrary(httpClient, cache, guardian, limits, logger.Named("library"))

	pctx := player.NewContext(facade, logger.Named("context"))
	poller := player.NewPoller(facade, events, metrics,
		config.Player.PollInterval, config.Player.TrackEndLead, logger.Named("poller"))

	controller := player.NewController(facade, library, flow, poller, pctx,
		sessions, guardian, db, events, metrics, logger.Named("controller"))
	controller.RestoreView()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	g.Go(func() error {
		if err := controller.Connect(gCtx); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		<-gCtx.Done()
		controller.Disconnect()
		return nil
	})

	logger.Info("Code SPA playback service started",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("Code SPA playback service stopped with error", zap.Error(err))
		return err
	}

	logger.Info("Code SPA playback service stopped gracefully")
	return nil
}

func validateConfig() error {
	if config.Spotify.ClientID == "" {
		return fmt.Errorf("spotify client ID is required")
	}

	if config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client secret is required")
	}

	return nil
}
