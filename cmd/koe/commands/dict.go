package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/koe/pkg/cli"
	"github.com/haivivi/koe/pkg/storage"
	"github.com/haivivi/koe/pkg/userdict"
)

var dictFile string

var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Manage a user dictionary",
	Long: `Manage a user dictionary file.

The file defaults to the context's user_dict, then to
~/.koe/koe/data/user_dict.json. Words added here are applied by every
command that analyzes text.

Examples:
  koe dict add 東京都庁 トーキョートチョー --accent 5
  koe dict list --table
  koe dict remove 0b6c2a4e-...`,
}

// wordList is the list output.
type wordList []userdict.Entry

func (l wordList) Table() ([]string, [][]string) {
	rows := make([][]string, len(l))
	for i, e := range l {
		rows[i] = []string{
			e.ID,
			e.Word.Surface,
			e.Word.Pronunciation,
			strconv.Itoa(e.Word.AccentType),
			e.Word.WordType.String(),
			strconv.Itoa(e.Word.Priority),
		}
	}
	return []string{"ID", "SURFACE", "PRONUNCIATION", "ACCENT", "TYPE", "PRIORITY"}, rows
}

// openDict resolves the dictionary location and loads it. A missing file
// yields an empty dictionary.
func openDict(ctx context.Context) (*userdict.Dictionary, storage.FileStore, string, error) {
	c, err := getContext()
	if err != nil {
		return nil, nil, "", err
	}
	location := dictFile
	if location == "" {
		location = c.UserDict
	}
	if location == "" {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, nil, "", err
		}
		if err := paths.EnsureDataDir(); err != nil {
			return nil, nil, "", err
		}
		location = paths.UserDictFile()
	}
	store, path, err := storage.Resolve(location, c.S3)
	if err != nil {
		return nil, nil, "", err
	}
	dict := userdict.New()
	ok, err := store.Exists(ctx, path)
	if err != nil {
		return nil, nil, "", err
	}
	if ok {
		if err := dict.LoadFrom(ctx, store, path); err != nil {
			return nil, nil, "", err
		}
	}
	printVerbose("User dictionary: %s (%d words)", location, dict.Len())
	return dict, store, path, nil
}

func wordFromFlags(cmd *cobra.Command, surface, pronunciation string) (userdict.Word, error) {
	accent, _ := cmd.Flags().GetInt("accent")
	priority, _ := cmd.Flags().GetInt("priority")
	typeName, _ := cmd.Flags().GetString("type")
	wt, err := userdict.ParseWordType(typeName)
	if err != nil {
		return userdict.Word{}, err
	}
	return userdict.NewWord(surface, pronunciation, accent, wt, priority)
}

var dictAddCmd = &cobra.Command{
	Use:   "add <surface> <pronunciation>",
	Short: "Add a word",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		dict, store, path, err := openDict(ctx)
		if err != nil {
			return err
		}
		w, err := wordFromFlags(cmd, args[0], args[1])
		if err != nil {
			return err
		}
		id, err := dict.AddWord(w)
		if err != nil {
			return err
		}
		if err := dict.SaveTo(ctx, store, path); err != nil {
			return err
		}
		cli.PrintSuccess("Added %s (%s)", w.Surface, id)
		return nil
	},
}

var dictUpdateCmd = &cobra.Command{
	Use:   "update <id> <surface> <pronunciation>",
	Short: "Replace a word",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		dict, store, path, err := openDict(ctx)
		if err != nil {
			return err
		}
		w, err := wordFromFlags(cmd, args[1], args[2])
		if err != nil {
			return err
		}
		if err := dict.UpdateWord(args[0], w); err != nil {
			return err
		}
		if err := dict.SaveTo(ctx, store, path); err != nil {
			return err
		}
		cli.PrintSuccess("Updated %s", args[0])
		return nil
	},
}

var dictRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a word",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		dict, store, path, err := openDict(ctx)
		if err != nil {
			return err
		}
		w, err := dict.RemoveWord(args[0])
		if err != nil {
			return err
		}
		if err := dict.SaveTo(ctx, store, path); err != nil {
			return err
		}
		cli.PrintSuccess("Removed %s (%s)", w.Surface, args[0])
		return nil
	},
}

var dictListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List words sorted by id",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		dict, _, _, err := openDict(ctx)
		if err != nil {
			return err
		}
		c, err := getContext()
		if err != nil {
			return err
		}
		return outputResult(ctx, c, wordList(dict.Words()))
	},
}

var dictImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge another dictionary file (incoming entries win)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		dict, store, path, err := openDict(ctx)
		if err != nil {
			return err
		}
		c, err := getContext()
		if err != nil {
			return err
		}
		other, err := loadUserDict(ctx, c, args[0])
		if err != nil {
			return err
		}
		before := dict.Len()
		dict.Import(other)
		if err := dict.SaveTo(ctx, store, path); err != nil {
			return err
		}
		cli.PrintSuccess("Imported %d words (%d new)", other.Len(), dict.Len()-before)
		return nil
	},
}

func init() {
	dictCmd.PersistentFlags().StringVar(&dictFile, "dict", "", "user dictionary file or s3:// location")
	for _, cmd := range []*cobra.Command{dictAddCmd, dictUpdateCmd} {
		cmd.Flags().Int("accent", 0, "accent type (0 = flat, n = drop after mora n)")
		cmd.Flags().Int("priority", userdict.DefaultPriority, fmt.Sprintf("priority %d..%d", userdict.MinPriority, userdict.MaxPriority))
		cmd.Flags().String("type", "PROPER_NOUN", "word type: PROPER_NOUN, COMMON_NOUN, VERB, ADJECTIVE, SUFFIX")
	}

	dictCmd.AddCommand(dictAddCmd)
	dictCmd.AddCommand(dictUpdateCmd)
	dictCmd.AddCommand(dictRemoveCmd)
	dictCmd.AddCommand(dictListCmd)
	dictCmd.AddCommand(dictImportCmd)
}
