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

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Normalize episode filenames in a directory",
	Long: `rename rewrites every video file in a directory to the intermediate
Show_Name_SxxExx_CODEC.ext scheme, parsing the identity out of common
community naming conventions and probing the video codec.`,
	RunE: runRename,
}

var renameInputDir string

func init() {
	renameCmd.Flags().StringVar(&renameInputDir, "input-dir", ".", "Directory to normalize")
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	if err := log.StartSession("rename", os.Args[2:]); err != nil {
		return err
	}
	defer func() { _ = log.EndSession() }()

	names, err := pipeline.ListVideos(renameInputDir, recursive)
	if err != nil {
		return err
	}

	ctx := context.Background()
	tool := mkv.NewCLI()
	failures := 0
	for _, name := range names {
		path := filepath.Join(renameInputDir, filepath.FromSlash(name))
		target, err := pipeline.RenameFile(ctx, tool, path, dryRun)
		if err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", name, err)
			continue
		}
		if target == path {
			fmt.Printf("= %s\n", name)
			continue
		}
		if dryRun {
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
