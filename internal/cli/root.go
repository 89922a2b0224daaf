// Package cli provides the command-line interface for roster.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/schoolroster/roster-client/internal/config"
	"github.com/schoolroster/roster-client/internal/core"
	inthttp "github.com/schoolroster/roster-client/internal/http"
	"github.com/schoolroster/roster-client/internal/logging"
	"github.com/schoolroster/roster-client/internal/version"
)

var (
	// Global flags
	cfgFile   string
	apiURL    string
	tokenFile string
	verbose   bool
	debug     bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "roster",
		Short: "Roster - manage the student roster from the command line",
		Long: `Roster ` + version.Version + ` - Built: ` + version.BuildTime + `
Command-line client for the student roster service.

Sign in with 'roster login', then list, create, update and delete
students, or move the whole roster in and out as CSV.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = newLogger(cmd.ErrOrStderr(), "")
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Roster API base URL (overrides config and "+config.EnvAPIURL+")")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Where the session token is kept (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newCompletionCmd(rootCmd))
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newStudentsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context, cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

func newLogger(console io.Writer, file string) *logging.Logger {
	return logging.NewLogger(logging.Options{Console: console, File: file, Component: "cli"})
}

// configPath returns --config or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file and applies, in order, the environment
// and the command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if tokenFile != "" {
		cfg.TokenFile = tokenFile
	}
	if cfg.LogLevel != "" && !verbose && !debug {
		logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	}
	return cfg, nil
}

// newEngine loads the configuration and builds the engine. Exports go to
// exportDir (the working directory when empty). The caller starts it and
// must Stop it.
func newEngine(cmd *cobra.Command, exportDir string) (*core.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if inthttp.NeedsProxyPassword(cfg) {
		password, err := promptPassword(cmd, fmt.Sprintf("Proxy password for %s@%s: ", cfg.ProxyUser, cfg.ProxyHost))
		if err != nil {
			return nil, err
		}
		cfg.ProxyPassword = password
	}

	log := GetLogger()
	if file := cfg.ResolveLogFile(); file != "" {
		log = newLogger(cmd.ErrOrStderr(), file)
		logger = log
	}

	if exportDir == "" {
		if exportDir, err = os.Getwd(); err != nil {
			exportDir = "."
		}
	}
	return core.NewEngine(cfg, core.Options{Logger: log, ExportDir: filepath.Clean(exportDir)})
}

// startEngine builds and starts an engine. An empty path only restores the
// saved session.
func startEngine(cmd *cobra.Command, path string) (*core.Engine, error) {
	engine, err := newEngine(cmd, "")
	if err != nil {
		return nil, err
	}
	if err := engine.Start(path); err != nil {
		engine.Stop()
		return nil, err
	}
	return engine, nil
}
