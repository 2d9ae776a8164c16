// Package cmd wires the dualmux subcommands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"dualmux/internal/catalog"
	"dualmux/internal/config"
	"dualmux/internal/log"
	"dualmux/internal/pipeline"
	"dualmux/internal/tui"
	"dualmux/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dualmux",
	Short: "Normalize a dub/sub episode library into dual-audio files",
	Long: `dualmux pairs dubbed episode files with their subtitled counterparts,
extracts the English audio and the Signs & Songs subtitle from the dub,
remuxes them into the sub video, normalizes the container's track
metadata, and renames the result to a Sonarr-style naming convention,
optionally enriched with episode titles from Sonarr or TMDB.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	dryRun    bool
	recursive bool
	noUI      bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Preview every operation without touching the filesystem")
	rootCmd.PersistentFlags().BoolVarP(&recursive, "recursive", "r", false, "Recurse into subdirectories")
	rootCmd.PersistentFlags().BoolVar(&noUI, "no-ui", false, "Plain log output instead of the progress UI")
}

// loadConfig reads the persisted settings and initializes the
// operation log. Logging is suppressed entirely during dry runs.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log.Initialize(cfg.EnableLogging && !dryRun, cfg.LogRetentionDays)
	return cfg, nil
}

// newResolver assembles the catalog resolver chain from the effective
// settings. It returns nil when no backend is configured.
func newResolver(cfg *config.Config, sonarrURL, sonarrKey string) catalog.Resolver {
	if sonarrURL == "" {
		sonarrURL = cfg.SonarrURL
	}
	if sonarrKey == "" {
		sonarrKey = cfg.SonarrAPIKey
	}

	var chain catalog.Chain
	if sonarrURL != "" && sonarrKey != "" {
		chain = append(chain, catalog.NewSonarr(sonarrURL, sonarrKey))
	}
	if cfg.EnableTMDBLookup && cfg.TMDBAPIKey != "" {
		chain = append(chain, catalog.NewTMDB(cfg.TMDBAPIKey, cfg.TMDBLanguage))
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

// runPipeline executes an orchestrator under the selected UI mode and
// converts the run result into an exit decision.
func runPipeline(orch *pipeline.Orchestrator) error {
	ctx := context.Background()

	switch {
	case dryRun && !noUI:
		plan := tui.CollectPlan(orch.Start(ctx))
		model := tui.NewPreviewModel(plan, theme.Default())
		if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("preview UI: %w", err)
		}
	case !noUI:
		model := tui.NewProgressModel(orch.Start(ctx), theme.Default())
		if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("progress UI: %w", err)
		}
	default:
		for ev := range orch.Start(ctx) {
			printEvent(ev)
		}
	}

	result := orch.Result()
	if result == nil {
		return fmt.Errorf("run produced no result")
	}
	for _, stage := range result.Stages {
		for _, err := range stage.Errs {
			fmt.Fprintf(os.Stderr, "Warning [%s]: %v\n", tui.StageLabel(stage.State), err)
		}
	}
	if result.Aborted() {
		return fmt.Errorf("run aborted")
	}
	return nil
}

func printEvent(ev pipeline.Event) {
	switch {
	case ev.Err != nil:
		fmt.Fprintf(os.Stderr, "WARN  %-18s %s: %v\n", tui.StageLabel(ev.State), ev.Item, ev.Err)
	case ev.Kind == pipeline.KindLookup && ev.Item != "":
		fmt.Fprintf(os.Stderr, "WARN  %-18s %s: %s\n", tui.StageLabel(ev.State), ev.Item, ev.Message)
	case ev.Item != "" && ev.Message != "":
		fmt.Printf("%-18s %s -> %s\n", tui.StageLabel(ev.State), ev.Item, ev.Message)
	case ev.Item != "":
		fmt.Printf("%-18s %s\n", tui.StageLabel(ev.State), ev.Item)
	}
}
