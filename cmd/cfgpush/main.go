package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cfgpush/internal/app"
	"cfgpush/internal/cfgpush"
	"cfgpush/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config or the defaults, then
// applies environment overrides.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		defaults, err := app.GetDefaults()
		if err != nil {
			return nil, "", fmt.Errorf("getting defaults: %w", err)
		}
		path = defaults.ConfigPath
	}

	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, path, nil
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// command names the CLI command being run (e.g. "watch", "push").
func newApp(command string) (*app.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(cfg, app.Options{Command: command, Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("a terminal is required to read the passphrase")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "cfgpush",
	Short:        "Commit device configuration backups to a Git repository",
	SilenceUsage: true,
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the backup directory and commit each new archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		scan, _ := cmd.Flags().GetBool("scan")

		a, err := newApp("watch")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return a.Watch(ctx, scan)
	},
}

// push command
var pushCmd = &cobra.Command{
	Use:   "push FILE",
	Short: "Commit a single archive now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("push")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := a.Push(ctx, args[0])
		if err != nil {
			return err
		}
		if !res.OK() {
			if res.Outcome != nil {
				return fmt.Errorf("%s: %s", res.Outcome.Message.Text(), res.Arrival.Path)
			}
			return fmt.Errorf("push interrupted: %s", res.Arrival.Path)
		}

		fmt.Printf("Committed %s (status %d", res.Identifier, res.Response.StatusCode)
		if res.Created {
			fmt.Print(", path created")
		}
		fmt.Println(")")
		if res.ArchiveKey != "" {
			fmt.Printf("Archived as %s\n", res.ArchiveKey)
		}
		return nil
	},
}

// derive command
var deriveCmd = &cobra.Command{
	Use:   "derive PATH",
	Short: "Print the identifier a path would be committed under",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("derive")
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.Derive(args[0])
		if err != nil {
			if errors.Is(err, cfgpush.ErrMalformedName) {
				return fmt.Errorf("%w (check watch.segment_index)", err)
			}
			return err
		}
		fmt.Println(id)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View handled arrivals",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No arrivals recorded.")
			return nil
		}

		for _, r := range recs {
			duration := ""
			if r.FinishedAt.Valid {
				duration = r.FinishedAt.Time.Sub(r.DetectedAt).Truncate(time.Millisecond).String()
			}
			identifier := r.Identifier
			if identifier == "" {
				identifier = "-"
			}
			fmt.Printf("%s  %-10s  %-12s  %3d  %-8s  %s",
				r.DetectedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status,
				identifier,
				r.StatusCode,
				duration,
				r.Path,
			)
			if r.Outcome != "" {
				fmt.Printf("  [%s]", r.Outcome)
			}
			fmt.Println()
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		path := configPath
		if path == "" {
			path = defaults.ConfigPath
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if root, _ := cmd.Flags().GetString("root"); root != "" {
			cfg.Watch.Root = root
		}

		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", path)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Println("Set api.base_url and api.project_id before running `cfgpush watch`.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		token := "(unset)"
		if cfg.API.Token != "" {
			token = "(set)"
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("API:           %s (project %s, branch %s)\n", cfg.API.BaseURL, cfg.API.ProjectID, cfg.API.Branch)
		fmt.Printf("Token:         %s\n", token)
		fmt.Printf("Watch Root:    %s\n", cfg.Watch.Root)
		fmt.Printf("Extension:     %s (segment %d)\n", cfg.Watch.Extension, cfg.Watch.SegmentIndex)
		fmt.Printf("Settle Delay:  %s\n", cfg.Watch.SettleDelay)
		fmt.Printf("Database:      %s\n", cfg.Database.Type)
		fmt.Printf("Archive:       %t (vault %s, encrypt %t)\n", cfg.Archive.Enabled, cfg.Archive.Vault.Type, cfg.Archive.Encrypt)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nNot ready: %v\n", err)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("keys init")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.KeysConfigured() {
			return fmt.Errorf("archive keys already exist")
		}

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupKeys(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Println("Archive keys created.")
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Read archived configurations",
}

var archiveGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print an archived configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp("archive get")
		if err != nil {
			return err
		}
		defer a.Close()

		var pass string
		if strings.HasSuffix(args[0], ".age") {
			if pass, err = readPassphrase("Passphrase: "); err != nil {
				return err
			}
		}

		var w io.Writer = os.Stdout
		if output != "" && output != "-" {
			f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
			if err != nil {
				return fmt.Errorf("creating output: %w", err)
			}
			defer f.Close()
			w = f
		}

		return a.ArchiveGet(args[0], pass, w)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $CFGPUSH_CONFIG_PATH or ~/.config/cfgpush.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("root", "", "Directory the devices upload to")

	keysCmd.AddCommand(keysInitCmd)

	archiveCmd.AddCommand(archiveGetCmd)
	archiveGetCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	// root commands
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Bool("scan", false, "Also handle archives already present at startup")
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of arrivals to show")
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(archiveCmd)
}
