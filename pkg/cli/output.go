package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"

	"github.com/haivivi/koe/pkg/storage"
)

// OutputFormat selects how structured results are printed.
type OutputFormat string

const (
	FormatYAML  OutputFormat = "yaml"
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	// FormatRaw writes []byte and string results unchanged.
	FormatRaw OutputFormat = "raw"
)

// ErrNoOutput is returned when binary data has nowhere to go.
var ErrNoOutput = errors.New("cli: output location is required for binary data (use -o)")

// OutputOptions configures [Output].
type OutputOptions struct {
	Format OutputFormat

	// File is a local path or s3:// location. Empty means Writer, or
	// stdout when Writer is nil.
	File string

	// Indent is the JSON indentation; two spaces when empty.
	Indent string

	Writer io.Writer

	// S3 resolves s3:// destinations.
	S3 *storage.S3Config
}

// Output renders result and writes it to the configured destination. Files
// are replaced as a whole, so a failed render never truncates an existing
// file.
func Output(ctx context.Context, result any, opts OutputOptions) error {
	if opts.File == "" {
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		return render(w, result, opts)
	}
	var buf bytes.Buffer
	if err := render(&buf, result, opts); err != nil {
		return err
	}
	return WriteFile(ctx, opts.File, opts.S3, buf.Bytes())
}

func render(w io.Writer, result any, opts OutputOptions) error {
	switch opts.Format {
	case FormatJSON:
		return renderJSON(w, result, opts.Indent)
	case FormatYAML, "":
		return renderYAML(w, result)
	case FormatRaw:
		return renderRaw(w, result)
	case FormatTable:
		return renderTable(w, result)
	default:
		return fmt.Errorf("cli: unsupported output format %q", opts.Format)
	}
}

func renderJSON(w io.Writer, result any, indent string) error {
	enc := json.NewEncoder(w)
	if indent == "" {
		indent = "  "
	}
	enc.SetIndent("", indent)
	return enc.Encode(result)
}

func renderYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("cli: format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// renderTable falls back to YAML for results that are not [Tabular].
func renderTable(w io.Writer, result any) error {
	t, ok := result.(Tabular)
	if !ok {
		return renderYAML(w, result)
	}
	headers, rows := t.Table()
	_, err := fmt.Fprintln(w, RenderTable(NewStyles(DefaultTheme), headers, rows))
	return err
}

func renderRaw(w io.Writer, result any) error {
	switch v := result.(type) {
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		_, err := io.WriteString(w, v)
		return err
	default:
		return renderYAML(w, result)
	}
}

// WriteFile replaces the file at a local path or s3:// location with data.
// Local files are written through a temporary file and renamed into place.
func WriteFile(ctx context.Context, location string, s3cfg *storage.S3Config, data []byte) error {
	if location == "" {
		return ErrNoOutput
	}
	store, path, err := storage.Resolve(location, s3cfg)
	if err != nil {
		return err
	}
	if err := storage.WriteFile(ctx, store, path, data); err != nil {
		return fmt.Errorf("cli: write %s: %w", location, err)
	}
	return nil
}

var (
	successMark = lipgloss.NewStyle().Foreground(DefaultTheme.Primary).Render("✓")
	infoMark    = lipgloss.NewStyle().Foreground(DefaultTheme.Dim).Render("ℹ")
	warnMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb86c")).Render("⚠")
	errorLabel  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5555")).Render("Error:")
)

// PrintSuccess prints a message prefixed with a check mark.
func PrintSuccess(format string, args ...any) {
	fmt.Println(successMark, fmt.Sprintf(format, args...))
}

// PrintError prints to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorLabel, fmt.Sprintf(format, args...))
}

func PrintInfo(format string, args ...any) {
	fmt.Println(infoMark, fmt.Sprintf(format, args...))
}

func PrintWarning(format string, args ...any) {
	fmt.Println(warnMark, fmt.Sprintf(format, args...))
}

// PrintVerbose prints to stderr when verbose is set.
func PrintVerbose(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}
