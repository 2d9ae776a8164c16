package cmd

import (
	"fmt"

	"dualmux/internal/log"

	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent operation log sessions",
	RunE:  runLogs,
}

var logsLimit int

func init() {
	logsCmd.Flags().IntVar(&logsLimit, "limit", 10, "Number of sessions to show (0 for all)")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir, err := log.GetLogPath()
	if err != nil {
		return err
	}
	sessions, err := log.ReadSessions(logsLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Printf("No sessions recorded under %s\n", dir)
		return nil
	}

	for _, s := range sessions {
		m := s.Metadata
		fmt.Printf("%s  %-16s %d ops, %d failed\n",
			m.Timestamp.Format("2006-01-02 15:04:05"),
			commandName(m.CommandArgs),
			m.TotalOps,
			m.FailedOps,
		)
		for _, op := range s.Operations {
			if op.Success {
				continue
			}
			fmt.Printf("    FAIL %-10s %s: %s\n", op.Type, op.SourcePath, op.Error)
		}
	}
	return nil
}

func commandName(args []string) string {
	if len(args) == 0 {
		return "?"
	}
	return args[0]
}
