package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dgnsrekt/pucks-replay/internal/config"
)

// keepLogFile marks commands whose logs are also written to logging.directory.
// One-shot inspection commands only log to stderr.
const keepLogFile = "recorder/log-file"

// app carries what the root command resolves for its subcommands.
type app struct {
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *zap.Logger
}

// newLogger builds the process logger. Verbose forces debug output in the
// development encoder; otherwise the configured level applies. A log file is
// only opened for long-running commands.
func newLogger(verbose bool, logCfg config.LoggingConfig, toFile bool) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.DisableStacktrace = true
	if verbose {
		zapConfig = zap.NewDevelopmentConfig()
	} else if logCfg.Level != "" {
		level, err := zapcore.ParseLevel(logCfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}

	if toFile && logCfg.Enabled {
		if err := os.MkdirAll(logCfg.Directory, 0755); err != nil {
			return nil, fmt.Errorf("creating logs directory: %w", err)
		}
		name := fmt.Sprintf("recorder_%s.log", time.Now().Format("2006-01-02_15-04-05"))
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, filepath.Join(logCfg.Directory, name))
	}

	return zapConfig.Build()
}

// load resolves configuration and the logger before any subcommand runs.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		var err error
		a.logger, err = newLogger(a.verbose, config.LoggingConfig{}, false)
		return err
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	_, toFile := cmd.Annotations[keepLogFile]
	logger, err := newLogger(a.verbose, cfg.Logging, toFile)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger.With(zap.String("command", cmd.Name()))
	return nil
}

func (a *app) sync(*cobra.Command, []string) {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:               "recorder",
		Short:             "Record live match telemetry and publish replays",
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		PersistentPostRun: a.sync,
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", os.Getenv("PUCKS_CONFIG"), "config file path (or set PUCKS_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd(a), decodeCmd(a), replaysCmd(a))
	return rootCmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}
