package cli

import (
	"bytes"
	"context"
	"errors"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type styleRow struct {
	Speaker string `json:"speaker" yaml:"speaker"`
	Style   uint32 `json:"style" yaml:"style"`
}

type styleList []styleRow

func (l styleList) Table() ([]string, [][]string) {
	rows := make([][]string, len(l))
	for i, r := range l {
		rows[i] = []string{r.Speaker, strconv.FormatUint(uint64(r.Style), 10)}
	}
	return []string{"SPEAKER", "STYLE"}, rows
}

func TestOutput_Formats(t *testing.T) {
	data := styleRow{Speaker: "zundamon", Style: 3}
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatYAML, "speaker: zundamon"},
		{"", "speaker: zundamon"},
		{FormatJSON, `"speaker": "zundamon"`},
		{FormatRaw, "style: 3"},
		{FormatTable, "speaker: zundamon"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Output(context.Background(), data, OutputOptions{Format: tt.format, Writer: &buf}); err != nil {
				t.Fatalf("Output error: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("Output = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestOutput_Raw(t *testing.T) {
	for _, data := range []any{[]byte("RIFF...."), "RIFF...."} {
		var buf bytes.Buffer
		if err := Output(context.Background(), data, OutputOptions{Format: FormatRaw, Writer: &buf}); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "RIFF...." {
			t.Errorf("Output(%T) = %q", data, buf.String())
		}
	}
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	rows := styleList{{"zundamon", 3}, {"metan", 2}}
	if err := Output(context.Background(), rows, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"SPEAKER", "STYLE", "zundamon", "metan"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(context.Background(), "data", OutputOptions{Format: "invalid", Writer: &buf}); err == nil {
		t.Error("Output should fail for unsupported format")
	}
}

func TestOutput_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.json")
	if err := Output(context.Background(), styleRow{Speaker: "a", Style: 1}, OutputOptions{Format: FormatJSON, File: path, Indent: "    "}); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got styleRow
	if err := json.Unmarshal(content, &got); err != nil {
		t.Fatalf("Invalid JSON in file: %v", err)
	}
	if got.Speaker != "a" || !strings.Contains(string(content), "    ") {
		t.Errorf("file = %s", content)
	}
}

func TestOutput_FailedRenderKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Output(context.Background(), "x", OutputOptions{Format: "invalid", File: path}); err == nil {
		t.Fatal("Output should fail for unsupported format")
	}
	content, _ := os.ReadFile(path)
	if string(content) != "old" {
		t.Errorf("file = %q, want it untouched", content)
	}
}

func TestWriteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.wav")
	data := []byte{0x52, 0x49, 0x46, 0x46}
	if err := WriteFile(ctx, path, nil, data); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(content, data) {
		t.Errorf("content = %v, %v", content, err)
	}
	if err := WriteFile(ctx, "", nil, data); !errors.Is(err, ErrNoOutput) {
		t.Errorf("empty location: err = %v, want ErrNoOutput", err)
	}
	if err := WriteFile(ctx, "s3://bucket/out.wav", nil, data); err == nil {
		t.Error("s3 location without configuration should fail")
	}
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"q.yaml", "speaker: zundamon\nstyle: 3\n"},
		{"q.json", `{"speaker":"zundamon","style":3}`},
		{"q", `{"speaker":"zundamon","style":3}`},
		{"-", "speaker: zundamon\nstyle: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got styleRow
			if err := ParseRequest([]byte(tt.data), tt.name, &got); err != nil {
				t.Fatal(err)
			}
			if got != (styleRow{"zundamon", 3}) {
				t.Errorf("got %+v", got)
			}
		})
	}
	var v styleRow
	if err := ParseRequest([]byte("{not json"), "q.json", &v); err == nil {
		t.Error("ParseRequest should fail on malformed JSON")
	}
}

func TestLoadRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.yaml")
	if err := os.WriteFile(path, []byte("speaker: metan\nstyle: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var got styleRow
	ctx := context.Background()
	if err := LoadRequest(ctx, path, nil, &got); err != nil {
		t.Fatal(err)
	}
	if got.Speaker != "metan" {
		t.Errorf("got %+v", got)
	}
	if err := LoadRequest(ctx, path+".missing", nil, &got); err == nil {
		t.Error("LoadRequest should fail for a missing file")
	}
}
