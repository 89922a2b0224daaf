package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schoolroster/roster-client/internal/config"
	"github.com/schoolroster/roster-client/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage roster configuration",
		Long: `Configuration management commands for roster.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for roster.

The configuration is saved to ~/.config/roster/config.ini (or --config).
Press Enter to keep the value shown in brackets.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "Roster Configuration Setup")
			fmt.Fprintln(out, "==========================")
			fmt.Fprintln(out)

			cfg := config.NewConfig()
			ask := func(label, current string) (string, error) {
				answer, err := promptLine(cmd, fmt.Sprintf("%s [%s]: ", label, current))
				if err != nil || answer == "" {
					return current, err
				}
				return answer, nil
			}

			var err error
			if cfg.APIURL, err = ask("API URL", cfg.APIURL); err != nil {
				return err
			}

			sizeInput, err := ask("Page size", strconv.Itoa(cfg.PageSize))
			if err != nil {
				return err
			}
			if cfg.PageSize, err = strconv.Atoi(sizeInput); err != nil {
				return fmt.Errorf("page size must be a number, got %q", sizeInput)
			}

			if confirm(cmd, "Configure proxy?") {
				if cfg.ProxyMode, err = ask("Proxy mode (no-proxy, system, basic, ntlm)", "system"); err != nil {
					return err
				}
				if cfg.ProxyMode != "no-proxy" && cfg.ProxyMode != "system" {
					if cfg.ProxyHost, err = ask("Proxy host", cfg.ProxyHost); err != nil {
						return err
					}
					portInput, err := ask("Proxy port", strconv.Itoa(cfg.ProxyPort))
					if err != nil {
						return err
					}
					if cfg.ProxyPort, err = strconv.Atoi(portInput); err != nil {
						return fmt.Errorf("proxy port must be a number, got %q", portInput)
					}
					if cfg.ProxyUser, err = ask("Proxy user", ""); err != nil {
						return err
					}
				}
			}

			cfg.Notifications.Desktop = confirm(cmd, "Show desktop notifications?")

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Next: roster login")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/roster/config.ini)
  2. Environment variable ` + config.EnvAPIURL + `
  3. Command-line flags (--api-url, --token-file)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Server:")
			fmt.Fprintf(out, "  API URL:    %s\n", cfg.BaseURL())
			fmt.Fprintf(out, "  Token File: %s\n", cfg.ResolveTokenFile())
			fmt.Fprintf(out, "  Page Size:  %d (max %d)\n", cfg.PageSize, constants.MaxPageSize)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "HTTP:")
			fmt.Fprintf(out, "  Timeout:     %ds\n", cfg.TimeoutSeconds)
			fmt.Fprintf(out, "  Max Retries: %d (network errors only)\n", cfg.MaxRetries)
			fmt.Fprintf(out, "  Rate Limit:  %g req/s, burst %d\n", cfg.RequestsPerSecond, cfg.Burst)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy Settings:")
			fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
				fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
			}
			if cfg.ProxyUser != "" {
				fmt.Fprintf(out, "  Proxy User: %s\n", cfg.ProxyUser)
			}
			if cfg.NoProxy != "" {
				fmt.Fprintf(out, "  No Proxy:   %s\n", strings.TrimSpace(cfg.NoProxy))
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Notifications:")
			fmt.Fprintf(out, "  Enabled: %t\n", cfg.Notifications.Enabled)
			fmt.Fprintf(out, "  Desktop: %t\n", cfg.Notifications.Desktop)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Logging:")
			fmt.Fprintf(out, "  Level: %s\n", cfg.LogLevel)
			if file := cfg.ResolveLogFile(); file != "" {
				fmt.Fprintf(out, "  File:  %s\n", file)
			}
			fmt.Fprintln(out)

			path := configPath()
			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}

	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n", path)
			fmt.Fprintln(out)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: file exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: roster config init")
			}
			return nil
		},
	}

	return cmd
}
