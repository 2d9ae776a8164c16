package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dualmux/internal/log"
	"dualmux/internal/mkv"
	"dualmux/internal/pipeline"

	"github.com/spf13/cobra"
)

var fixtracksCmd = &cobra.Command{
	Use:   "fixtracks",
	Short: "Normalize container track names, languages, and flags",
	Long: `fixtracks rewrites each Matroska container's track metadata to the
canonical scheme: Main Video, Japanese/English Audio, and forced
Signs & Songs or plain English/Japanese subtitles. Files already in
the scheme are left untouched.`,
	RunE: runFixtracks,
}

var fixtracksFlags struct {
	inputDir string
	single   string
}

func init() {
	f := fixtracksCmd.Flags()
	f.StringVar(&fixtracksFlags.inputDir, "input-dir", ".", "Directory of containers to normalize")
	f.StringVar(&fixtracksFlags.single, "single", "", "Normalize one file instead of a directory")
	rootCmd.AddCommand(fixtracksCmd)
}

func runFixtracks(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	if err := log.StartSession("fixtracks", os.Args[2:]); err != nil {
		return err
	}
	defer func() { _ = log.EndSession() }()

	ctx := context.Background()
	tool := mkv.NewCLI()

	var paths []string
	if fixtracksFlags.single != "" {
		paths = []string{fixtracksFlags.single}
	} else {
		names, err := pipeline.ListVideos(fixtracksFlags.inputDir, recursive)
		if err != nil {
			return err
		}
		for _, name := range names {
			paths = append(paths, filepath.Join(fixtracksFlags.inputDir, filepath.FromSlash(name)))
		}
	}

	failures := 0
	for _, path := range paths {
		plan, err := pipeline.FixFile(ctx, tool, path, dryRun)
		if err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", filepath.Base(path), err)
			continue
		}
		switch {
		case len(plan) == 0:
			fmt.Printf("= %s\n", filepath.Base(path))
		case dryRun:
			fmt.Printf("~ %s (%d track edits)\n", filepath.Base(path), len(plan))
		default:
			fmt.Printf("+ %s (%d track edits)\n", filepath.Base(path), len(plan))
		}
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed\n", failures, len(paths))
	}
	return nil
}
