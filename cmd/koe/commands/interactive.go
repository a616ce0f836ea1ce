package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/koe/pkg/cli"
	"github.com/haivivi/koe/pkg/synthesis"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"repl"},
	Short:   "Synthesize lines read from stdin",
	Long: `Synthesize each line read from stdin into <dir>/NNN.wav.

The synthesizer and dictionaries are loaded once. With --watch-dict, edits
to the context's user dictionary take effect on the next line.

Example:
  koe interactive -o out/ --watch-dict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		dir := outputFile
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}

		a, err := openAnalyzer(ctx, c)
		if err != nil {
			return err
		}
		if watch, _ := cmd.Flags().GetBool("watch-dict"); watch {
			if c.UserDict == "" || strings.HasPrefix(c.UserDict, "s3://") {
				return errors.New("--watch-dict needs a local user_dict in the context")
			}
			go func() {
				if err := a.WatchUserDict(ctx, c.UserDict); err != nil {
					logger.Error("user dictionary watch stopped", "error", err)
				}
			}()
		}

		s, err := openSynthesizerWith(ctx, c, a)
		if err != nil {
			return err
		}
		defer s.Close()

		style := styleFlag(cmd, c)
		kanaInput, _ := cmd.Flags().GetBool("kana")
		noUpspeak, _ := cmd.Flags().GetBool("no-upspeak")
		opts := &synthesis.TTSOptions{EnableInterrogativeUpspeak: !noUpspeak}

		cli.PrintInfo("Reading lines from stdin (Ctrl-D to quit)")
		scanner := bufio.NewScanner(os.Stdin)
		n := 0
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			start := time.Now()
			var wav []byte
			if kanaInput {
				wav, err = s.TTSFromKana(ctx, line, style, opts)
			} else {
				wav, err = s.TTS(ctx, line, style, opts)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				cli.PrintError("%v", err)
				continue
			}
			n++
			path := filepath.Join(dir, fmt.Sprintf("%03d.wav", n))
			if err := cli.WriteFile(ctx, path, nil, wav); err != nil {
				return err
			}
			reportAudio(path, wav, time.Since(start))
		}
		return scanner.Err()
	},
}

func init() {
	interactiveCmd.Flags().Uint32P("style", "s", 0, "style id (defaults to the context's default_style)")
	interactiveCmd.Flags().Bool("kana", false, "treat lines as kana notation")
	interactiveCmd.Flags().Bool("no-upspeak", false, "disable the rising tone on questions")
	interactiveCmd.Flags().Bool("watch-dict", false, "reload the user dictionary when it changes")
}
