package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/koe/pkg/audio"
	"github.com/haivivi/koe/pkg/audioquery"
	"github.com/haivivi/koe/pkg/cli"
	"github.com/haivivi/koe/pkg/synthesis"
)

var ttsCmd = &cobra.Command{
	Use:   "tts <text>",
	Short: "Synthesize text to a WAV file",
	Long: `Synthesize text to a WAV file.

The text is analyzed into kana first. With --kana the argument is taken as
kana notation and analysis is skipped.

Examples:
  koe tts "今日は天気" -o out.wav
  koe tts --kana "コンニチワ'、ハジメマシ_テ'" --style 1 -o out.wav
  koe tts "こんにちは" -o s3://voices/out/hello.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		s, err := openSynthesizer(ctx, c)
		if err != nil {
			return err
		}
		defer s.Close()

		text := strings.Join(args, " ")
		style := styleFlag(cmd, c)
		noUpspeak, _ := cmd.Flags().GetBool("no-upspeak")
		opts := &synthesis.TTSOptions{EnableInterrogativeUpspeak: !noUpspeak}

		start := time.Now()
		var wav []byte
		if kanaInput, _ := cmd.Flags().GetBool("kana"); kanaInput {
			wav, err = s.TTSFromKana(ctx, text, style, opts)
		} else {
			wav, err = s.TTS(ctx, text, style, opts)
		}
		if err != nil {
			return err
		}
		if err := cli.WriteFile(ctx, outputFile, c.S3, wav); err != nil {
			return err
		}
		reportAudio(outputFile, wav, time.Since(start))
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Build AudioQuery documents",
	Long: `Build AudioQuery documents.

The output can be edited (speed_scale, pitch, vowel lengths, ...) and then
rendered with 'koe synth'.`,
}

var queryTextCmd = &cobra.Command{
	Use:   "text <text>",
	Short: "Analyze text into an AudioQuery",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, strings.Join(args, " "), false)
	},
}

var queryKanaCmd = &cobra.Command{
	Use:   "kana <kana>",
	Short: "Parse kana notation into an AudioQuery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, args[0], true)
	},
}

func runQuery(cmd *cobra.Command, input string, isKana bool) error {
	c, err := getContext()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSynthesizer(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	style := styleFlag(cmd, c)
	var q audioquery.AudioQuery
	if isKana {
		q, err = s.AudioQueryFromKana(ctx, input, style)
	} else {
		q, err = s.AudioQuery(ctx, input, style)
	}
	if err != nil {
		return err
	}
	if rate, _ := cmd.Flags().GetInt("sampling-rate"); rate > 0 {
		q.OutputSamplingRate = rate
	}
	if stereo, _ := cmd.Flags().GetBool("stereo"); stereo {
		q.OutputStereo = true
	}
	return outputResult(ctx, c, q)
}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Render an AudioQuery file to WAV",
	Long: `Render an AudioQuery file (YAML or JSON) to WAV.

The input may be a local file, an s3:// location or "-" for stdin.

Example:
  koe query text "今日は天気" -o query.yaml
  koe synth -f query.yaml --style 0 -o out.wav
  koe query kana "コンニチワ'" --json | koe synth -f - -o out.wav`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == "" {
			return fmt.Errorf("input file is required, use -f flag")
		}
		c, err := getContext()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		var q audioquery.AudioQuery
		if err := cli.LoadRequest(ctx, inputFile, c.S3, &q); err != nil {
			return err
		}
		s, err := openSynthesizer(ctx, c)
		if err != nil {
			return err
		}
		defer s.Close()

		noUpspeak, _ := cmd.Flags().GetBool("no-upspeak")
		start := time.Now()
		wav, err := s.Synthesis(ctx, q, styleFlag(cmd, c), &synthesis.SynthesisOptions{
			EnableInterrogativeUpspeak: !noUpspeak,
		})
		if err != nil {
			return err
		}
		if err := cli.WriteFile(ctx, outputFile, c.S3, wav); err != nil {
			return err
		}
		reportAudio(outputFile, wav, time.Since(start))
		return nil
	},
}

// reportAudio prints the size and length of a rendered file.
func reportAudio(path string, wav []byte, elapsed time.Duration) {
	info, err := audio.ParseWAVHeader(wav)
	if err != nil {
		cli.PrintSuccess("Audio saved to %s (%s)", path, cli.FormatBytesInt(len(wav)))
		return
	}
	cli.PrintSuccess("Audio saved to %s (%s, %s, %d Hz, took %s)",
		path,
		cli.FormatBytesInt(len(wav)),
		cli.FormatAudioDuration(info.Samples, info.Format.SampleRate),
		info.Format.SampleRate,
		cli.FormatDuration(elapsed),
	)
}

func init() {
	for _, cmd := range []*cobra.Command{ttsCmd, queryTextCmd, queryKanaCmd, synthCmd} {
		cmd.Flags().Uint32P("style", "s", 0, "style id (default: context default_style)")
	}
	ttsCmd.Flags().Bool("kana", false, "treat the input as kana notation")
	ttsCmd.Flags().Bool("no-upspeak", false, "disable interrogative upspeak")
	synthCmd.Flags().Bool("no-upspeak", false, "disable interrogative upspeak")
	for _, cmd := range []*cobra.Command{queryTextCmd, queryKanaCmd} {
		cmd.Flags().Int("sampling-rate", 0, "output sampling rate written to the query")
		cmd.Flags().Bool("stereo", false, "request stereo output")
	}

	queryCmd.AddCommand(queryTextCmd)
	queryCmd.AddCommand(queryKanaCmd)
}
