package config

const (
	defaultStateDir  = "~/.local/share/loom/state"
	defaultOutputDir = "~/.local/share/loom/output"
	defaultLogDir    = "~/.local/share/loom/logs"

	defaultBatchWorkers = 4
	defaultFileTimeout  = 0

	defaultThreshold          = 0.7
	defaultContentWeight      = 0.4
	defaultFilenameWeight     = 0.3
	defaultMetadataWeight     = 0.3
	defaultTemporalWindowDays = 7
	defaultTitleThreshold     = 0.7
	defaultPairWorkers        = 4
	defaultEvidenceSample     = 5

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// defaultIncludePatterns covers the document formats the extractors understand.
var defaultIncludePatterns = []string{
	"*.xlsx", "*.xls", "*.xlsm",
	"*.csv", "*.tsv",
	"*.json",
	"*.pptx", "*.ppt",
	"*.docx", "*.doc",
	"*.md", "*.txt",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Batch: Batch{
			Workers:         defaultBatchWorkers,
			IncludePatterns: append([]string(nil), defaultIncludePatterns...),
			Recursive:       true,
			FileTimeout:     defaultFileTimeout,
			Resume:          true,
			RetryFailed:     false,
		},
		Relationships: Relationships{
			Threshold:          defaultThreshold,
			ContentWeight:      defaultContentWeight,
			FilenameWeight:     defaultFilenameWeight,
			MetadataWeight:     defaultMetadataWeight,
			TemporalWindowDays: defaultTemporalWindowDays,
			TitleThreshold:     defaultTitleThreshold,
			Prefilter:          true,
			PairWorkers:        defaultPairWorkers,
			EvidenceSample:     defaultEvidenceSample,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
