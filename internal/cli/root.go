// Package cli implements the waypaneld command line interface.
package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/waypanel-io/waypanel/internal/config"
	"github.com/waypanel-io/waypanel/internal/daemon"
	"github.com/waypanel-io/waypanel/internal/models"
)

var (
	configFlag string
	styleFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "waypaneld",
	Short: "State aggregation daemon for the waypanel status bar",
	Long: `Waypaneld watches the panel configuration, polls the compositor, and hosts
the status notifier tray. It aggregates all three into one consistent state
stream for the panel UI to render.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "path to the panel configuration file")
	rootCmd.PersistentFlags().StringVarP(&styleFlag, "style", "s", "", "path to the stylesheet")

	rootCmd.AddCommand(versionCmd)
}

// resolvePaths applies the flag overrides over the per-user config directory
// defaults.
func resolvePaths() (configPath, stylePath string, err error) {
	if configFlag != "" {
		configPath, err = config.ResolvePath(configFlag)
	} else {
		configPath, err = config.ConfigFile()
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve config path: %w", err)
	}

	if styleFlag != "" {
		stylePath, err = config.ResolvePath(styleFlag)
	} else {
		stylePath, err = config.StyleFile()
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve style path: %w", err)
	}
	return configPath, stylePath, nil
}

func runDaemon() error {
	log.SetPrefix("[waypaneld] ")
	log.SetFlags(log.Ldate | log.Ltime)

	if err := config.EnsureDir(); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	configPath, stylePath, err := resolvePaths()
	if err != nil {
		return err
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	d, err := daemon.New(daemon.Options{
		ConfigPath: configPath,
		StylePath:  stylePath,
		Settings:   settings,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("watching %s and %s", configPath, stylePath)
	if err := d.Run(ctx, logListener{}); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	log.Println("stopped")
	return nil
}

// logListener is the standalone binary's state consumer. An embedding UI
// supplies its own listener; here every notification just gets logged.
type logListener struct{}

func (logListener) Rebuild(snap *models.Snapshot, styleOnly bool) {
	if styleOnly {
		log.Printf("style changed, %d panel(s) unchanged", len(snap.Panels))
		return
	}
	log.Printf("config applied: %d panel(s) from %s", len(snap.Panels), snap.Source)
}

func (logListener) ConfigError(err error) {
	log.Printf("config reload failed, keeping previous: %v", err)
}

func (logListener) CompositorUpdate(snap *models.CompositorSnapshot, stale bool) {
	if stale {
		log.Println("compositor state is stale")
		return
	}
	if snap != nil {
		log.Printf("compositor: workspace %d, %d window(s)", snap.ActiveWorkspaceID, len(snap.Windows))
	}
}

func (logListener) TrayUpdate(items []models.TrayItem) {
	log.Printf("tray: %d item(s)", len(items))
}
