package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/haivivi/koe/pkg/cli"
)

const appName = "koe"

var (
	// Global flags
	cfgFile     string
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
	outputTable bool
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
	logger       *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "koe",
	Short: "Japanese speech synthesis CLI",
	Long: `koe - text-to-speech from the command line.

koe analyzes Japanese text into kana, predicts phoneme lengths and
pitches with a voice model, and renders WAV audio:
  - Text or kana to speech (tts)
  - AudioQuery building and editing (query, synth)
  - Voice model bundles (model)
  - User dictionaries (dict) and base lexicons (lexicon)

Configuration is stored in ~/.koe/koe/ and supports multiple contexts,
similar to kubectl's context management.

Examples:
  # Compile a lexicon and set up a context
  koe lexicon compile lexicon.yaml -o ~/.koe/koe/data/lexicon
  koe config add-context local --dict-dir ~/.koe/koe/data/lexicon --model voice.koem

  # Speak
  koe tts "今日は天気" -o out.wav
  koe tts --kana "コンニチワ'" -o out.wav

  # Edit a query before synthesis
  koe query text "今日は天気" -o query.yaml
  koe synth -f query.yaml -o out.wav
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is ~/.koe/koe/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file or s3:// location (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVar(&outputTable, "table", false, "output as a table where supported")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(ttsCmd)
	rootCmd.AddCommand(dictCmd)
	rootCmd.AddCommand(lexiconCmd)
	rootCmd.AddCommand(interactiveCmd)
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}
	logger = cli.SetupLogging(cli.LogOptions{Verbose: verbose, Prefix: appName})

	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the context to use with KOE_* overrides applied. When
// no context is named and none is current, the default layout under
// ~/.koe/koe/data is used.
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	var ctx *cli.Context
	if contextName == "" && cfg.CurrentContext == "" {
		def, err := defaultContext()
		if err != nil {
			return nil, err
		}
		ctx = def
	} else {
		c, err := cfg.ResolveContext(contextName)
		if err != nil {
			return nil, err
		}
		// Work on a copy so overrides are never saved back.
		cp := *c
		ctx = &cp
	}
	if err := ctx.ApplyEnv(nil); err != nil {
		return nil, err
	}
	return ctx, nil
}

func defaultContext() (*cli.Context, error) {
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return nil, err
	}
	ctx := &cli.Context{
		Name:    "(default)",
		DictDir: paths.LexiconDir(),
		Backend: "reference",
	}
	if _, err := os.Stat(paths.UserDictFile()); err == nil {
		ctx.UserDict = paths.UserDictFile()
	}
	return ctx, nil
}

// outputFormat returns the format chosen by the global flags
func outputFormat() cli.OutputFormat {
	switch {
	case outputJSON:
		return cli.FormatJSON
	case outputTable:
		return cli.FormatTable
	}
	return cli.FormatYAML
}

// outputResult prints result in the chosen format to -o or stdout.
func outputResult(ctx context.Context, c *cli.Context, result any) error {
	return cli.Output(ctx, result, cli.OutputOptions{
		Format: outputFormat(),
		File:   outputFile,
		S3:     c.S3,
	})
}

// printVerbose prints verbose output if enabled
func printVerbose(format string, args ...any) {
	cli.PrintVerbose(verbose, format, args...)
}
