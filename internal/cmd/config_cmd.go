package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"dualmux/internal/config"
	"dualmux/internal/namefmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the persisted settings",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the location of the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Path()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("template:          %s\n", cfg.Template)
		fmt.Printf("custom-template:   %s\n", cfg.CustomTemplate)
		fmt.Printf("sonarr-url:        %s\n", cfg.SonarrURL)
		fmt.Printf("sonarr-api-key:    %s\n", maskSecret(cfg.SonarrAPIKey))
		fmt.Printf("tmdb-api-key:      %s\n", maskSecret(cfg.TMDBAPIKey))
		fmt.Printf("tmdb-language:     %s\n", cfg.TMDBLanguage)
		fmt.Printf("enable-tmdb:       %t\n", cfg.EnableTMDBLookup)
		fmt.Printf("workers:           %d\n", cfg.WorkerCount)
		fmt.Printf("logging:           %t\n", cfg.EnableLogging)
		fmt.Printf("log-retention:     %d\n", cfg.LogRetentionDays)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist one setting",
	Long: `set updates one key in the config file. Keys: template,
custom-template, sonarr-url, sonarr-api-key, tmdb-api-key,
tmdb-language, enable-tmdb, workers, logging, log-retention.

Builtin templates: ` + strings.Join(namefmt.TemplateKeys(), ", ") + `.
Any other template value is used as a literal template string.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configPathCmd, configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	switch key {
	case "template":
		if value == "custom" && cfg.CustomTemplate == "" {
			return fmt.Errorf("set custom-template before selecting the custom template")
		}
		cfg.Template = value
	case "custom-template":
		cfg.CustomTemplate = value
	case "sonarr-url":
		cfg.SonarrURL = strings.TrimRight(value, "/")
	case "sonarr-api-key":
		cfg.SonarrAPIKey = value
	case "tmdb-api-key":
		cfg.TMDBAPIKey = value
	case "tmdb-language":
		cfg.TMDBLanguage = value
	case "enable-tmdb":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("enable-tmdb wants a boolean, got %q", value)
		}
		cfg.EnableTMDBLookup = b
	case "workers":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("workers wants a positive integer, got %q", value)
		}
		cfg.WorkerCount = n
	case "logging":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("logging wants a boolean, got %q", value)
		}
		cfg.EnableLogging = b
	case "log-retention":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("log-retention wants a positive day count, got %q", value)
		}
		cfg.LogRetentionDays = n
	default:
		return fmt.Errorf("unknown key %q", key)
	}

	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", key, value)
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
