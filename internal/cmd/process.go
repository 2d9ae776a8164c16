package cmd

import (
	"os"
	"path/filepath"

	"dualmux/internal/log"
	"dualmux/internal/mkv"
	"dualmux/internal/pipeline"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the full pipeline over a dub/sub library",
	Long: `process runs every stage in order: prepare directories, normalize
filenames, extract and merge counterpart streams, fix track metadata,
and rename the merged files to the configured naming template.`,
	RunE: runProcess,
}

var processFlags struct {
	videoDir   string
	subDir     string
	extractDir string
	outputDir  string

	skipRename   bool
	skipExtract  bool
	skipFixNames bool
	skipCatalog  bool

	template       string
	customTemplate string
	sonarrURL      string
	apiKey         string
}

func init() {
	f := processCmd.Flags()
	f.StringVar(&processFlags.videoDir, "video-dir", "./DUB", "Directory holding the dub files")
	f.StringVar(&processFlags.subDir, "sub-dir", "./SUB", "Directory holding the sub counterparts")
	f.StringVar(&processFlags.extractDir, "extract-dir", "", "Directory for extracted streams (default: <output-dir>/extracted_streams)")
	f.StringVar(&processFlags.outputDir, "output-dir", "./Merged", "Directory for merged output files")
	f.BoolVar(&processFlags.skipRename, "skip-rename", false, "Skip the filename normalization stage")
	f.BoolVar(&processFlags.skipExtract, "skip-extract", false, "Skip the extract and merge stage")
	f.BoolVar(&processFlags.skipFixNames, "skip-fixnames", false, "Skip the track metadata stage")
	f.BoolVar(&processFlags.skipCatalog, "skip-catalog", false, "Skip the catalog rename stage")
	f.StringVar(&processFlags.template, "template", "", "Naming template key (default from config)")
	f.StringVar(&processFlags.customTemplate, "custom-template", "", "Template body used when --template=custom")
	f.StringVar(&processFlags.sonarrURL, "sonarr-url", "", "Sonarr base URL (default from config)")
	f.StringVar(&processFlags.apiKey, "api-key", "", "Sonarr API key (default from config)")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := log.StartSession("process", os.Args[2:]); err != nil {
		return err
	}
	defer func() { _ = log.EndSession() }()

	template := processFlags.template
	if template == "" {
		template = cfg.Template
	}
	customTemplate := processFlags.customTemplate
	if customTemplate == "" {
		customTemplate = cfg.CustomTemplate
	}
	extractDir := processFlags.extractDir
	if extractDir == "" {
		extractDir = filepath.Join(processFlags.outputDir, "extracted_streams")
	}

	opts := pipeline.Options{
		VideoDir:       processFlags.videoDir,
		SubDir:         processFlags.subDir,
		ExtractDir:     extractDir,
		OutputDir:      processFlags.outputDir,
		Recursive:      recursive,
		Preview:        dryRun,
		SkipRename:     processFlags.skipRename,
		SkipExtract:    processFlags.skipExtract,
		SkipFixNames:   processFlags.skipFixNames,
		SkipCatalog:    processFlags.skipCatalog,
		Template:       template,
		CustomTemplate: customTemplate,
		Workers:        cfg.WorkerCount,
	}

	resolver := newResolver(cfg, processFlags.sonarrURL, processFlags.apiKey)
	orch := pipeline.New(mkv.NewCLI(), resolver, opts)
	return runPipeline(orch)
}
