package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dualmux/internal/catalog"
	"dualmux/internal/log"
	"dualmux/internal/namefmt"
	"dualmux/internal/pipeline"

	"github.com/spf13/cobra"
)

var catalogRenameCmd = &cobra.Command{
	Use:   "catalog-rename",
	Short: "Rename files to a Sonarr-style naming template",
	Long: `catalog-rename parses each file's identity, looks up the canonical
series and episode titles in Sonarr (falling back to TMDB when
configured), and renames the file through the selected template. A
lookup miss falls back to the parsed identity.`,
	RunE: runCatalogRename,
}

var catalogRenameFlags struct {
	inputDir       string
	template       string
	customTemplate string
	sonarrURL      string
	apiKey         string
}

func init() {
	f := catalogRenameCmd.Flags()
	f.StringVar(&catalogRenameFlags.inputDir, "input-dir", ".", "Directory of files to rename")
	f.StringVar(&catalogRenameFlags.template, "template", "", "Naming template key (default from config)")
	f.StringVar(&catalogRenameFlags.customTemplate, "custom-template", "", "Template body used when --template=custom")
	f.StringVar(&catalogRenameFlags.sonarrURL, "sonarr-url", "", "Sonarr base URL (default from config)")
	f.StringVar(&catalogRenameFlags.apiKey, "api-key", "", "Sonarr API key (default from config)")
	rootCmd.AddCommand(catalogRenameCmd)
}

func runCatalogRename(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := log.StartSession("catalog-rename", os.Args[2:]); err != nil {
		return err
	}
	defer func() { _ = log.EndSession() }()

	templateKey := catalogRenameFlags.template
	if templateKey == "" {
		templateKey = cfg.Template
	}
	customTemplate := catalogRenameFlags.customTemplate
	if customTemplate == "" {
		customTemplate = cfg.CustomTemplate
	}
	template, err := namefmt.Lookup(templateKey, customTemplate)
	if err != nil {
		return err
	}

	resolver := newResolver(cfg, catalogRenameFlags.sonarrURL, catalogRenameFlags.apiKey)
	if resolver != nil {
		resolver = catalog.NewMemoized(resolver)
	}

	names, err := pipeline.ListVideos(catalogRenameFlags.inputDir, recursive)
	if err != nil {
		return err
	}

	ctx := context.Background()
	failures := 0
	for _, name := range names {
		path := filepath.Join(catalogRenameFlags.inputDir, filepath.FromSlash(name))
		target, missed, err := pipeline.CatalogRenameFile(ctx, resolver, path, template, dryRun)
		if missed {
			fmt.Fprintf(os.Stderr, "Warning: %s: no catalog match; using parsed identity\n", name)
		}
		if err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", name, err)
			continue
		}
		if target == path {
			fmt.Printf("= %s\n", name)
		} else if dryRun {
			fmt.Printf("~ %s -> %s\n", name, filepath.Base(target))
		} else {
			fmt.Printf("+ %s -> %s\n", name, filepath.Base(target))
		}
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed to rename\n", failures, len(names))
	}
	return nil
}
