package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kyubik/qbitbot/access"
	"github.com/kyubik/qbitbot/bot"
	"github.com/kyubik/qbitbot/config"
	"github.com/kyubik/qbitbot/filter"
	"github.com/kyubik/qbitbot/qbittorrent"
	"github.com/kyubik/qbitbot/status"
)

const logoutTimeout = 10 * time.Second

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kyubik",
	Short: "A Telegram bot to control qBittorrent",
	Long: `kyubik lets a single Telegram user control a qBittorrent instance:
inspect, list, pause, resume, add and delete torrents from a chat.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PreRunE:      initializeApp,
	RunE:         runBot,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.json)")
}

// initializeApp loads the configuration and sets up logging
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger = setupLogger(cfg.Logging)
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	fd := os.Stderr.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !tty,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// runBot logs in to qBittorrent, serves the chat until a termination signal
// arrives, then logs out.
func runBot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := qbittorrent.NewClient(cfg.Server, logger,
		qbittorrent.WithTimeout(time.Duration(cfg.Timeout)*time.Second),
		qbittorrent.WithUserAgent("kyubik/"+version),
	)
	if err != nil {
		return fmt.Errorf("failed to create qBittorrent client: %w", err)
	}

	// Logout is a no-op unless Login succeeded.
	defer func() {
		logoutCtx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
		defer cancel()
		if err := client.Logout(logoutCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to log out of qBittorrent")
		}
	}()

	if err := client.Login(ctx, cfg.Username, cfg.Password); err != nil {
		return fmt.Errorf("failed to log in to qBittorrent: %w", err)
	}

	finder, err := filter.NewFinder(cfg.Filters, logger)
	if err != nil {
		return fmt.Errorf("invalid filters config: %w", err)
	}
	if presets := finder.Presets(); len(presets) > 0 {
		logger.Info().Strs("presets", presets).Msg("Loaded filter presets")
	}

	telegram, err := bot.NewBot(cfg.Token, access.NewGuard(cfg.TelegramUser), client, finder, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegram.Run(gctx)
	})
	if cfg.Status.Enabled {
		srv := status.NewServer(cfg.Status.Listen, client, telegram, logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	err = g.Wait()
	logger.Info().Msg("Shutting down")
	return err
}
