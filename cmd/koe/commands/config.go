package commands

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/koe/pkg/cli"
	"github.com/haivivi/koe/pkg/inference"
	"github.com/haivivi/koe/pkg/storage"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

A context names a lexicon directory, an optional user dictionary, the voice
models to load and the inference settings. Contexts work like kubectl's.

Configuration is stored in ~/.koe/koe/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Example:
  koe config add-context local --dict-dir ./lexicon --model ./voice.koem
  koe config add-context cloud --dict-dir ./lexicon \
    --model s3://voices/metan.koem --s3-endpoint http://localhost:9000 --s3-path-style`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		flags := cmd.Flags()

		dictDir, _ := flags.GetString("dict-dir")
		if dictDir == "" {
			return fmt.Errorf("--dict-dir is required")
		}
		userDict, _ := flags.GetString("user-dict")
		models, _ := flags.GetStringArray("model")
		backend, _ := flags.GetString("backend")
		if _, ok := inference.Lookup(backend); !ok {
			return fmt.Errorf("unknown backend %q (available: %s)", backend, strings.Join(inference.Backends(), ", "))
		}
		accel, _ := flags.GetString("acceleration")
		if _, err := inference.ParseAccelerationMode(accel); err != nil {
			return err
		}
		threads, _ := flags.GetInt("cpu-threads")
		style, _ := flags.GetUint32("default-style")

		ctx := &cli.Context{
			DictDir:      dictDir,
			UserDict:     userDict,
			Models:       models,
			Backend:      backend,
			Acceleration: accel,
			CPUThreads:   threads,
			DefaultStyle: style,
		}

		var s3 storage.S3Config
		s3.Region, _ = flags.GetString("s3-region")
		s3.Endpoint, _ = flags.GetString("s3-endpoint")
		s3.AccessKeyID, _ = flags.GetString("s3-access-key-id")
		s3.SecretAccessKey, _ = flags.GetString("s3-secret-access-key")
		s3.PathStyle, _ = flags.GetBool("s3-path-style")
		s3.Prefix, _ = flags.GetString("s3-prefix")
		if s3 != (storage.S3Config{}) {
			ctx.S3 = &s3
		}

		cfg := getConfig()
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := getConfig().DeleteContext(name); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := getConfig().UseContext(name); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context %q", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}
		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts", "list"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if len(cfg.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		names := cfg.ListContexts()
		slices.Sort(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			backend := ctx.Backend
			if backend == "" {
				backend = "(default)"
			}
			rows = append(rows, []string{current, name, ctx.DictDir, backend, strconv.Itoa(len(ctx.Models))})
		}
		fmt.Println(cli.RenderTable(cli.NewStyles(cli.DefaultTheme),
			[]string{"CURRENT", "NAME", "DICT_DIR", "BACKEND", "MODELS"}, rows))
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:     "view",
	Aliases: []string{"show"},
	Short:   "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		fmt.Printf("Config file: %s\n", cfg.Path())
		fmt.Printf("Current context: %s\n", cfg.CurrentContext)
		fmt.Printf("Contexts: %d\n", len(cfg.Contexts))

		names := cfg.ListContexts()
		slices.Sort(names)
		if len(names) > 0 {
			fmt.Println("\nContext details:")
		}
		for _, name := range names {
			ctx := cfg.Contexts[name]
			fmt.Printf("\n  %s:\n", name)
			fmt.Printf("    Dictionary: %s\n", ctx.DictDir)
			if ctx.UserDict != "" {
				fmt.Printf("    User dictionary: %s\n", ctx.UserDict)
			}
			for _, m := range ctx.Models {
				fmt.Printf("    Model: %s\n", m)
			}
			if ctx.Backend != "" {
				fmt.Printf("    Backend: %s\n", ctx.Backend)
			}
			if ctx.Acceleration != "" {
				fmt.Printf("    Acceleration: %s\n", ctx.Acceleration)
			}
			if ctx.CPUThreads > 0 {
				fmt.Printf("    CPU threads: %d\n", ctx.CPUThreads)
			}
			if ctx.S3 != nil {
				fmt.Printf("    S3 endpoint: %s\n", ctx.S3.Endpoint)
				fmt.Printf("    S3 access key: %s\n", cli.MaskSecret(ctx.S3.AccessKeyID))
			}
		}
		return nil
	},
}

func init() {
	// add-context flags
	f := configAddContextCmd.Flags()
	f.String("dict-dir", "", "compiled lexicon directory (required)")
	f.String("user-dict", "", "user dictionary file")
	f.StringArray("model", nil, "voice model bundle to load (repeatable; path or s3://bucket/key)")
	f.String("backend", inference.DefaultBackend().Name(), "inference backend")
	f.String("acceleration", "auto", "acceleration mode: auto, cpu or gpu")
	f.Int("cpu-threads", 0, "inference CPU threads (0 = backend default)")
	f.Uint32("default-style", 0, "style id used when --style is not given")
	f.String("s3-region", "", "S3 region")
	f.String("s3-endpoint", "", "S3 endpoint URL (MinIO, R2, ...)")
	f.String("s3-access-key-id", "", "S3 access key id")
	f.String("s3-secret-access-key", "", "S3 secret access key")
	f.Bool("s3-path-style", false, "use path-style S3 addressing")
	f.String("s3-prefix", "", "prefix prepended to every S3 key")

	// Add subcommands
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
