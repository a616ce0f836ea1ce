package commands

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haivivi/koe/pkg/cli"
	"github.com/haivivi/koe/pkg/inference"
	"github.com/haivivi/koe/pkg/storage"
	"github.com/haivivi/koe/pkg/voicemodel"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Voice model bundles",
	Long: `Inspect and build voice model bundles.

Bundles are native .koem files (optionally zstd-compressed) or VOICEVOX
.vvm archives. Locations may be local paths or s3://bucket/key.`,
}

// modelInfo is the inspect output.
type modelInfo struct {
	Location string                   `json:"location" yaml:"location"`
	Size     string                   `json:"size" yaml:"size"`
	Weights  []string                 `json:"weights" yaml:"weights"`
	Metas    []voicemodel.SpeakerMeta `json:"metas" yaml:"metas"`
	inner    map[voicemodel.StyleID]uint32
}

func (m modelInfo) Table() ([]string, [][]string) {
	var rows [][]string
	for _, sp := range m.Metas {
		for _, st := range sp.Styles {
			rows = append(rows, []string{
				sp.Name,
				strconv.FormatUint(uint64(st.ID), 10),
				st.Name,
				strconv.FormatUint(uint64(m.inner[st.ID]), 10),
				sp.Version,
			})
		}
	}
	return []string{"SPEAKER", "STYLE", "NAME", "INNER", "VERSION"}, rows
}

var modelInspectCmd = &cobra.Command{
	Use:   "inspect <location>",
	Short: "Show the speakers and styles of a bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		m, err := loadModel(ctx, c, args[0])
		if err != nil {
			return err
		}
		info := modelInfo{
			Location: args[0],
			Size:     cli.FormatBytes(m.WeightSize()),
			Weights:  m.WeightNames(),
			Metas:    m.Metas(),
			inner:    make(map[voicemodel.StyleID]uint32),
		}
		for _, st := range m.StyleIDs() {
			info.inner[st], _ = m.InnerID(st)
		}
		return outputResult(ctx, c, info)
	},
}

var modelPackCmd = &cobra.Command{
	Use:   "pack <manifest.yaml>",
	Short: "Build a bundle from a manifest and weight files",
	Long: `Build a native bundle from a YAML manifest.

Example manifest:
  metas:
    - name: Metan
      speaker_uuid: 7ffcb7ce-00ec-4bdc-82cd-45a8889e43ff
      version: 0.1.0
      styles:
        - {id: 2, name: normal}
  weights:
    predict_duration: duration.onnx
    predict_intonation: intonation.onnx
    decode: decode.onnx

Example:
  koe model pack metan.yaml --zstd -o metan.koem`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		store, path, err := storage.Resolve(args[0], c.S3)
		if err != nil {
			return err
		}
		m, err := voicemodel.FromManifest(ctx, store, path)
		if err != nil {
			return err
		}
		return writeBundle(cmd, c, m)
	},
}

var modelReferenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Generate a bundle for the reference backend",
	Long: `Generate a bundle for the pure-Go reference backend.

Each --style is id:name. The result needs no native runtime and is handy
for trying the pipeline end to end.

Example:
  koe model reference --speaker Test --style 0:normal --style 1:whisper -o test.koem`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContext()
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("speaker")
		specs, _ := cmd.Flags().GetStringArray("style")
		if len(specs) == 0 {
			specs = []string{"0:normal"}
		}
		meta := voicemodel.SpeakerMeta{
			Name:        name,
			SpeakerUUID: uuid.NewString(),
			Version:     "0.1.0",
		}
		for _, spec := range specs {
			idText, styleName, ok := strings.Cut(spec, ":")
			id, err := strconv.ParseUint(idText, 10, 32)
			if !ok || err != nil {
				return fmt.Errorf("invalid --style %q, want id:name", spec)
			}
			meta.Styles = append(meta.Styles, voicemodel.StyleMeta{ID: voicemodel.StyleID(id), Name: styleName})
		}
		m, err := inference.NewReferenceModel(voicemodel.ID(uuid.NewString()), []voicemodel.SpeakerMeta{meta})
		if err != nil {
			return err
		}
		return writeBundle(cmd, c, m)
	},
}

func writeBundle(cmd *cobra.Command, c *cli.Context, m *voicemodel.VoiceModel) error {
	compress, _ := cmd.Flags().GetBool("zstd")
	level, _ := cmd.Flags().GetInt("level")
	var buf bytes.Buffer
	if err := voicemodel.Pack(&buf, m, voicemodel.PackOptions{Compress: compress, Level: level}); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	if err := cli.WriteFile(ctx, outputFile, c.S3, buf.Bytes()); err != nil {
		return err
	}
	cli.PrintSuccess("Bundle written to %s (%s, %d styles)", outputFile, cli.FormatBytesInt(buf.Len()), len(m.StyleIDs()))
	return nil
}

func init() {
	for _, cmd := range []*cobra.Command{modelPackCmd, modelReferenceCmd} {
		cmd.Flags().Bool("zstd", false, "compress the bundle with zstd")
		cmd.Flags().Int("level", 0, "zstd level (1-22, 0 = default)")
	}
	modelReferenceCmd.Flags().String("speaker", "Reference", "speaker name")
	modelReferenceCmd.Flags().StringArray("style", nil, "style as id:name (repeatable)")

	modelCmd.AddCommand(modelInspectCmd)
	modelCmd.AddCommand(modelPackCmd)
	modelCmd.AddCommand(modelReferenceCmd)
}
