package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/koe/pkg/cli"
	"github.com/haivivi/koe/pkg/lexicon"
	"github.com/haivivi/koe/pkg/storage"
)

var lexiconCmd = &cobra.Command{
	Use:   "lexicon",
	Short: "Build system dictionaries",
}

var lexiconCompileCmd = &cobra.Command{
	Use:   "compile <source.yaml>",
	Short: "Compile a YAML word list into a dictionary directory",
	Long: `Compile a YAML word list into a dictionary directory.

Source format:
  entries:
    - surface: 今日
      pronunciation: キョー
      accent_type: 1

Entries are merged into an existing directory; a surface that is already
present is replaced.

Example:
  koe lexicon compile words.yaml -o ~/.koe/koe/data/lexicon`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		dir := outputFile
		if dir == "" {
			dir = c.DictDir
		}
		if dir == "" {
			paths, err := cli.NewPaths(appName)
			if err != nil {
				return err
			}
			dir = paths.LexiconDir()
		}

		store, path, err := storage.Resolve(args[0], c.S3)
		if err != nil {
			return err
		}
		data, err := storage.ReadFile(ctx, store, path)
		if err != nil {
			return err
		}

		db, err := lexicon.NewBadger(lexicon.BadgerOptions{Dir: dir, Logger: logger})
		if err != nil {
			return err
		}
		n, err := lexicon.Compile(ctx, data, db)
		if cerr := db.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		cli.PrintSuccess("Compiled %d entries into %s", n, dir)
		return nil
	},
}

func init() {
	lexiconCmd.AddCommand(lexiconCompileCmd)
}
