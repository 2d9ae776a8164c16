package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dualmux/internal/log"
	"dualmux/internal/media"
	"dualmux/internal/mkv"
	"dualmux/internal/pipeline"

	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Extract and merge dub streams into their sub counterparts",
	Long: `merge pairs each dub file with the sub file carrying the same episode
code, extracts the English audio and the Signs & Songs subtitle from
the dub, and remuxes them into the sub video as <name>_Dual.mkv.

With --single and --single-sub one explicit pair is merged instead of
a directory batch.`,
	RunE: runMerge,
}

var mergeFlags struct {
	dubDir    string
	subDir    string
	outputDir string
	tempDir   string
	single    string
	singleSub string
}

func init() {
	f := mergeCmd.Flags()
	f.StringVar(&mergeFlags.dubDir, "dub-dir", "./DUB", "Directory holding the dub files")
	f.StringVar(&mergeFlags.subDir, "sub-dir", "./SUB", "Directory holding the sub counterparts")
	f.StringVar(&mergeFlags.outputDir, "output-dir", "./Merged", "Directory for merged output files")
	f.StringVar(&mergeFlags.tempDir, "temp-dir", "", "Directory for extracted streams (default: <output-dir>/extracted_streams)")
	f.StringVar(&mergeFlags.single, "single", "", "Merge one dub file instead of a directory")
	f.StringVar(&mergeFlags.singleSub, "single-sub", "", "Sub counterpart for --single")
	mergeCmd.MarkFlagsRequiredTogether("single", "single-sub")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	if err := log.StartSession("merge", os.Args[2:]); err != nil {
		return err
	}
	defer func() { _ = log.EndSession() }()

	tempDir := mergeFlags.tempDir
	if tempDir == "" {
		tempDir = filepath.Join(mergeFlags.outputDir, "extracted_streams")
	}
	if !dryRun {
		for _, dir := range []string{tempDir, mergeFlags.outputDir} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
	}

	ctx := context.Background()
	tool := mkv.NewCLI()

	if mergeFlags.single != "" {
		dest, err := pipeline.MergePair(ctx, tool, mergeFlags.single, mergeFlags.singleSub, tempDir, mergeFlags.outputDir, dryRun)
		if err != nil {
			return err
		}
		fmt.Printf("+ %s\n", dest)
		return nil
	}

	dubs, err := pipeline.ListVideos(mergeFlags.dubDir, recursive)
	if err != nil {
		return err
	}
	subEntries, err := pipeline.ListVideos(mergeFlags.subDir, recursive)
	if err != nil {
		return err
	}

	failures := 0
	for _, dub := range dubs {
		subName, err := media.MatchSub(dub, subEntries)
		if err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			continue
		}
		dubPath := filepath.Join(mergeFlags.dubDir, filepath.FromSlash(dub))
		subPath := filepath.Join(mergeFlags.subDir, filepath.FromSlash(subName))
		dest, err := pipeline.MergePair(ctx, tool, dubPath, subPath, tempDir, mergeFlags.outputDir, dryRun)
		if err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", dub, err)
			continue
		}
		fmt.Printf("+ %s\n", dest)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d pairs failed to merge", failures, len(dubs))
	}
	return nil
}
