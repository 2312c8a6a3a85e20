package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/tankobon/internal/config"
	tberrors "github.com/lepinkainen/tankobon/internal/errors"
	"github.com/lepinkainen/tankobon/internal/store"
)

// output is where commands print their results
var output io.Writer = os.Stdout

// CLI represents the complete command structure for the tankobon application
type CLI struct {
	// Global flags
	Debug   bool             `help:"Enable debug logging"`
	JSON    bool             `help:"Print results as JSON"`
	Version kong.VersionFlag `help:"Print version and exit"`

	// Cache flags
	CacheBackend string `help:"Cache store backend (sqlite, bolt, postgres, none)"`
	CacheDBFile  string `help:"Path to the cache database file"`
	Editions     string `help:"YAML file with additional alternate edition mappings" type:"path"`

	Series  SeriesCmd  `cmd:"" help:"Look up series metadata"`
	Volumes VolumesCmd `cmd:"" help:"Look up volumes of a series, e.g. 'volumes Berserk 1-3,7'"`
	Batch   BatchCmd   `cmd:"" help:"Look up every (series, volume) pair listed in a CSV file"`
	Edition EditionCmd `cmd:"" help:"Show how an alternate edition maps onto standard volumes"`
	Cover   CoverCmd   `cmd:"" help:"Download the cover image of a volume"`
	Cache   CacheCmd   `cmd:"" help:"Inspect the cache store"`
	Ping    PingCmd    `cmd:"" help:"Check connectivity and credentials of every provider"`
	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API"`
}

// CacheCmd groups cache maintenance commands
type CacheCmd struct {
	Stats store.StatsCmd `cmd:"" help:"Print row counts of the cache tables"`
}

// Execute runs the Kong-based CLI
func Execute(version string) {
	initLogging(slog.LevelInfo)
	initConfig()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("tankobon"),
		kong.Description("Resolve and cache manga and book series metadata."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if cli.Debug {
		initLogging(slog.LevelDebug)
	}
	updateGlobalConfig(&cli)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(); err != nil {
		if tberrors.IsStopProcessingError(err) {
			slog.Info("Stopped", "reason", err)
			return
		}
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	config.SetDefaults()
	config.BindEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Debug("Config file not found, using defaults")
		} else {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}
}

// updateGlobalConfig lets flags override config file and environment values.
func updateGlobalConfig(cli *CLI) {
	if cli.CacheBackend != "" {
		viper.Set("cache.backend", cli.CacheBackend)
	}
	if cli.CacheDBFile != "" {
		viper.Set("cache.dbfile", cli.CacheDBFile)
	}
	if cli.Editions != "" {
		viper.Set("editions.file", cli.Editions)
	}
	viper.Set("output.json", cli.JSON)
	viper.Set("debug", cli.Debug)
}

func initLogging(level slog.Level) {
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
