// Package main is the entry point for sundown, the logout-time automation
// agent.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/maclogout/sundown/internal/audit"
	"github.com/maclogout/sundown/internal/config"
	"github.com/maclogout/sundown/internal/execute"
	"github.com/maclogout/sundown/internal/ledger"
	"github.com/maclogout/sundown/internal/pipeline"
	"github.com/maclogout/sundown/internal/prefs"
	"github.com/maclogout/sundown/internal/session"
)

// version is set at build time via -ldflags.
var version = "dev"

var cfgFile string

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "sundown",
		Short: "Run packages, profiles, and scripts at user logout",
		Long: `sundown processes the items dropped into its logout directories when a
user logs out: installer packages and disk images first, then configuration
profiles, then scripts. Items in the logout-once directory run a single time
and are remembered across logouts.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (built-in defaults when empty)")

	root.AddCommand(
		logoutCmd(),
		ignoreCmd(),
		historyCmd(),
		versionCmd(),
	)
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// --- logout ------------------------------------------------------------------

func logoutCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Process logout items now",
		Long: `Processes the logout-once and logout-every directories. The pass only
runs when recent login history shows a genuine user logout (not a bare
reboot), the login window recorded a completed logout, and the console user
is not on the ignore list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)
			ctx := cmd.Context()
			runner := &execute.CommandRunner{Timeout: time.Duration(cfg.CommandTimeout)}

			doc, err := prefs.Load(cfg.PrefsPath)
			if err != nil {
				logger.Warn("preferences unreadable, ignore list treated as empty", "error", err)
				doc = &prefs.Document{}
			}

			if force {
				logger.Info("session checks skipped by --force")
			} else {
				detector := &session.Detector{
					History: &session.LastHistory{Run: runner},
					Console: &session.LoginWindow{Run: runner},
					Logger:  logger,
				}
				ok, reason := detector.ShouldProcess(ctx, doc.IsIgnored)
				if !ok {
					logger.Info("not processing logout items", "reason", reason)
					return nil
				}
			}

			p := &pipeline.Pipeline{
				Packages: &execute.PackageInstaller{
					Run:         runner,
					Target:      cfg.InstallTarget,
					DetachDelay: time.Duration(cfg.DetachDelay),
					Logger:      logger,
				},
				Profiles: &execute.ProfileInstaller{Run: runner},
				Scripts:  &execute.ScriptRunner{Run: runner, Logger: logger},
				Logger:   logger,
				Audit:    &audit.Log{Path: cfg.AuditPath},
			}

			var errs []error
			led := ledger.Load(cfg.LedgerPath)
			if sum, err := p.Process(ctx, cfg.LogoutOnceDir, led); err != nil {
				errs = append(errs, err)
			} else {
				logger.Info("logout-once pass done",
					"run", sum.RunID, "succeeded", sum.Succeeded, "failed", sum.Failed, "skipped", sum.Skipped)
			}
			if sum, err := p.Process(ctx, cfg.LogoutEveryDir, nil); err != nil {
				errs = append(errs, err)
			} else {
				logger.Info("logout-every pass done",
					"run", sum.RunID, "succeeded", sum.Succeeded, "failed", sum.Failed, "skipped", sum.Skipped)
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "process items without the logout-vs-reboot session checks")
	return cmd
}

// --- ignore ------------------------------------------------------------------

func ignoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ignore",
		Short: "Manage the list of users whose logouts are skipped",
	}
	cmd.AddCommand(ignoreAddCmd(), ignoreRemoveCmd(), ignoreListCmd(), ignoreEditCmd())
	return cmd
}

func withPrefs(fn func(doc *prefs.Document) (changed bool, err error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	doc, err := prefs.Load(cfg.PrefsPath)
	if err != nil {
		return err
	}
	changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}
	return prefs.Save(cfg.PrefsPath, doc)
}

func ignoreAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <user>",
		Short: "Skip logout processing for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrefs(func(doc *prefs.Document) (bool, error) {
				if !doc.AddIgnoredUser(args[0]) {
					fmt.Printf("%s is already ignored\n", args[0])
					return false, nil
				}
				fmt.Printf("ignoring %s\n", args[0])
				return true, nil
			})
		},
	}
}

func ignoreRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <user>",
		Short: "Resume logout processing for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrefs(func(doc *prefs.Document) (bool, error) {
				if !doc.RemoveIgnoredUser(args[0]) {
					fmt.Printf("%s was not ignored\n", args[0])
					return false, nil
				}
				fmt.Printf("no longer ignoring %s\n", args[0])
				return true, nil
			})
		},
	}
}

func ignoreListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the ignored users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrefs(func(doc *prefs.Document) (bool, error) {
				if len(doc.IgnoredUsers) == 0 {
					fmt.Println("no ignored users")
					return false, nil
				}
				for _, user := range doc.IgnoredUsers {
					fmt.Println(user)
				}
				return false, nil
			})
		},
	}
}

func ignoreEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Interactively pick ignored users to remove",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrefs(func(doc *prefs.Document) (bool, error) {
				if len(doc.IgnoredUsers) == 0 {
					fmt.Println("no ignored users")
					return false, nil
				}
				var drop []string
				form := huh.NewForm(huh.NewGroup(
					huh.NewMultiSelect[string]().
						Title("Stop ignoring which users?").
						Options(huh.NewOptions(doc.IgnoredUsers...)...).
						Value(&drop),
				))
				if err := form.Run(); err != nil {
					return false, err
				}
				changed := false
				for _, user := range drop {
					if doc.RemoveIgnoredUser(user) {
						fmt.Printf("no longer ignoring %s\n", user)
						changed = true
					}
				}
				return changed, nil
			})
		},
	}
}

// --- history -----------------------------------------------------------------

func historyCmd() *cobra.Command {
	var limit int
	var run string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded item outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := &audit.Log{Path: cfg.AuditPath}
			entries, err := log.Read(run, limit)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("no history")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tRUN\tKIND\tITEM\tOUTCOME\tERROR")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Time.Local().Format(time.DateTime), e.RunID, e.Kind, e.Item, e.Outcome, e.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most this many entries (0 = all)")
	cmd.Flags().StringVar(&run, "run", "", "only entries from this run ID")
	return cmd
}

// --- version -----------------------------------------------------------------

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sundown %s\n", version)
		},
	}
}
