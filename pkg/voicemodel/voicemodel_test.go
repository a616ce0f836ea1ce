package voicemodel

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/haivivi/koe/pkg/storage"
)

func testMetas() []SpeakerMeta {
	return []SpeakerMeta{{
		Name:        "Metan",
		SpeakerUUID: "7ffcb7ce-00ec-4bdc-82cd-45a8889e43ff",
		Version:     "0.1.0",
		Styles:      []StyleMeta{{ID: 2, Name: "normal"}, {ID: 0, Name: "sweet"}},
	}}
}

func testModel(t *testing.T) *VoiceModel {
	t.Helper()
	m, err := New("m1", testMetas(), map[string][]byte{
		WeightDecode:          []byte("decode-weights"),
		WeightPredictDuration: []byte("dur"),
	}, WithInnerIDs(map[StyleID]uint32{2: 1}))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		id    ID
		metas []SpeakerMeta
		opts  []Option
	}{
		{"empty id", "", testMetas(), nil},
		{"no speakers", "m", nil, nil},
		{"no styles", "m", []SpeakerMeta{{Name: "x"}}, nil},
		{"duplicate style", "m", []SpeakerMeta{
			{Name: "a", Styles: []StyleMeta{{ID: 1}}},
			{Name: "b", Styles: []StyleMeta{{ID: 1}}},
		}, nil},
		{"inner id for unknown style", "m", testMetas(), []Option{WithInnerIDs(map[StyleID]uint32{9: 0})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.metas, nil, tt.opts...)
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("err = %v, want ErrFormat", err)
			}
		})
	}
}

func TestModelIsImmutable(t *testing.T) {
	metas := testMetas()
	weights := map[string][]byte{"w": []byte("abc")}
	m, err := New("m", metas, weights)
	if err != nil {
		t.Fatal(err)
	}
	metas[0].Styles[0].Name = "changed"
	weights["w"][0] = 'X'

	got := m.Metas()
	if got[0].Styles[0].Name != "normal" {
		t.Errorf("model metas changed through caller slice: %q", got[0].Styles[0].Name)
	}
	got[0].Name = "mutated"
	if m.Metas()[0].Name != "Metan" {
		t.Error("Metas returned shared storage")
	}
	w, _ := m.Weight("w")
	if string(w) != "abc" {
		t.Errorf("weight = %q, want abc", w)
	}
}

func TestInnerID(t *testing.T) {
	m := testModel(t)
	tests := []struct {
		style StyleID
		want  uint32
		ok    bool
	}{
		{2, 1, true},
		{0, 0, true},
		{5, 0, false},
	}
	for _, tt := range tests {
		got, ok := m.InnerID(tt.style)
		if got != tt.want || ok != tt.ok {
			t.Errorf("InnerID(%d) = %d, %v, want %d, %v", tt.style, got, ok, tt.want, tt.ok)
		}
	}
	if ids := m.StyleIDs(); len(ids) != 2 || ids[0] != 0 || ids[1] != 2 {
		t.Errorf("StyleIDs = %v", ids)
	}
}

func TestPackParseRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		m := testModel(t)
		var buf bytes.Buffer
		if err := Pack(&buf, m, PackOptions{Compress: compress}); err != nil {
			t.Fatalf("Pack(compress=%v): %v", compress, err)
		}
		got, err := Parse(buf.Bytes())
		if err != nil {
			t.Fatalf("Parse(compress=%v): %v", compress, err)
		}
		if got.ID() == m.ID() || got.ID() == "" {
			t.Errorf("parsed id = %q, want a fresh id", got.ID())
		}
		if got.Metas()[0].SpeakerUUID != m.Metas()[0].SpeakerUUID {
			t.Errorf("metas mismatch: %+v", got.Metas())
		}
		if inner, _ := got.InnerID(2); inner != 1 {
			t.Errorf("InnerID(2) = %d, want 1", inner)
		}
		w, ok := got.Weight(WeightDecode)
		if !ok || string(w) != "decode-weights" {
			t.Errorf("decode weight = %q, %v", w, ok)
		}
	}
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.koe")
	var buf bytes.Buffer
	if err := Pack(&buf, testModel(t), PackOptions{Compress: true}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := FromPath(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := FromPath(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() == b.ID() {
		t.Error("two parses of the same file share an id")
	}

	_, err = FromPath(context.Background(), filepath.Join(dir, "missing.koe"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing file: err = %v, want ErrFileNotFound", err)
	}

	bad := filepath.Join(dir, "bad.koe")
	os.WriteFile(bad, []byte("not a model"), 0o644)
	if _, err := FromPath(context.Background(), bad); !errors.Is(err, ErrFormat) {
		t.Errorf("garbage file: err = %v, want ErrFormat", err)
	}
}

func TestParseVVM(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	add := func(name string, data []byte) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(data)
	}
	man, _ := json.Marshal(vvmManifest{
		ManifestVersion:           "0.0.0",
		PredictDurationFilename:   "predict_duration.onnx",
		PredictIntonationFilename: "predict_intonation.onnx",
		DecodeFilename:            "decode.onnx",
		StyleIDToModelInnerID:     map[string]uint32{"2": 0, "0": 1},
	})
	metas, _ := json.Marshal(testMetas())
	add("manifest.json", man)
	add("metas.json", metas)
	add("predict_duration.onnx", []byte("d"))
	add("predict_intonation.onnx", []byte("i"))
	add("decode.onnx", []byte("w"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	m, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if names := m.WeightNames(); len(names) != 3 {
		t.Errorf("WeightNames = %v", names)
	}
	if inner, _ := m.InnerID(0); inner != 1 {
		t.Errorf("InnerID(0) = %d, want 1", inner)
	}
}

func TestFromManifest(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	manifest := `metas:
  - name: Zundamon
    speaker_uuid: 388f246b-8c41-4ac1-8e2d-5d79f3ff56d9
    version: 0.1.0
    styles:
      - {id: 3, name: normal}
style_inner_ids:
  "3": 0
weights:
  decode: w/decode.onnx
`
	storage.WriteFile(ctx, store, "src/manifest.yaml", []byte(manifest))
	storage.WriteFile(ctx, store, "src/w/decode.onnx", []byte("onnx"))

	m, err := FromManifest(ctx, store, "src/manifest.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if m.Metas()[0].Name != "Zundamon" || !m.HasStyle(3) {
		t.Errorf("metas = %+v", m.Metas())
	}
	if m.WeightSize() != 4 {
		t.Errorf("WeightSize = %d, want 4", m.WeightSize())
	}
}
