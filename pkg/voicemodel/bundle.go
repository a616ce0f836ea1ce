package voicemodel

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/koe/pkg/storage"
)

// FormatVersion is the native bundle version written by [Pack].
const FormatVersion = 1

var (
	nativeMagic = []byte("KOEM")
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	zipMagic    = []byte("PK\x03\x04")
)

// maxDecodedSize bounds the decompressed size of a bundle.
const maxDecodedSize = 4 << 30

type manifest struct {
	FormatVersion int               `msgpack:"format_version"`
	Metas         []SpeakerMeta     `msgpack:"metas"`
	StyleInnerIDs map[string]uint32 `msgpack:"style_inner_ids,omitempty"`
}

type bundle struct {
	Manifest manifest          `msgpack:"manifest"`
	Weights  map[string][]byte `msgpack:"weights"`
}

// FromPath reads a bundle from the local filesystem and assigns it a fresh id.
func FromPath(ctx context.Context, path string) (*VoiceModel, error) {
	return FromStore(ctx, storage.NewFS(), path)
}

// FromStore reads a bundle from store and assigns it a fresh id.
func FromStore(ctx context.Context, store storage.FileStore, path string) (*VoiceModel, error) {
	data, err := storage.ReadFile(ctx, store, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("voicemodel: read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a bundle held in memory. Native bundles (plain or
// zstd-compressed) and VVM archives are accepted.
func Parse(data []byte) (*VoiceModel, error) {
	id := ID(uuid.NewString())
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		raw, err := decompress(data)
		if err != nil {
			return nil, err
		}
		if !bytes.HasPrefix(raw, nativeMagic) {
			return nil, fmt.Errorf("%w: compressed payload is not a native bundle", ErrFormat)
		}
		return parseNative(id, raw)
	case bytes.HasPrefix(data, nativeMagic):
		return parseNative(id, data)
	case bytes.HasPrefix(data, zipMagic):
		return parseVVM(id, data)
	}
	return nil, fmt.Errorf("%w: unrecognized header", ErrFormat)
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		return nil, fmt.Errorf("voicemodel: zstd: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrFormat, err)
	}
	return raw, nil
}

func parseNative(id ID, data []byte) (*VoiceModel, error) {
	var b bundle
	if err := msgpack.Unmarshal(data[len(nativeMagic):], &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if b.Manifest.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrFormat, b.Manifest.FormatVersion)
	}
	inner, err := parseInnerIDs(b.Manifest.StyleInnerIDs)
	if err != nil {
		return nil, err
	}
	return New(id, b.Manifest.Metas, b.Weights, WithInnerIDs(inner))
}

func parseInnerIDs(raw map[string]uint32) (map[StyleID]uint32, error) {
	out := make(map[StyleID]uint32, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: style id %q", ErrFormat, k)
		}
		out[StyleID(n)] = v
	}
	return out, nil
}

// vvmManifest is the manifest.json of a VVM archive.
type vvmManifest struct {
	ManifestVersion           string            `json:"manifest_version"`
	PredictDurationFilename   string            `json:"predict_duration_filename"`
	PredictIntonationFilename string            `json:"predict_intonation_filename"`
	DecodeFilename            string            `json:"decode_filename"`
	StyleIDToModelInnerID     map[string]uint32 `json:"style_id_to_model_inner_id"`
}

func parseVVM(id ID, data []byte) (*VoiceModel, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: vvm: %v", ErrFormat, err)
	}
	var man vvmManifest
	if err := readZipJSON(zr, "manifest.json", &man); err != nil {
		return nil, err
	}
	var metas []SpeakerMeta
	if err := readZipJSON(zr, "metas.json", &metas); err != nil {
		return nil, err
	}
	weights := make(map[string][]byte, 3)
	for name, file := range map[string]string{
		WeightPredictDuration:   man.PredictDurationFilename,
		WeightPredictIntonation: man.PredictIntonationFilename,
		WeightDecode:            man.DecodeFilename,
	} {
		if file == "" {
			return nil, fmt.Errorf("%w: vvm manifest lacks %s file", ErrFormat, name)
		}
		b, err := readZipFile(zr, file)
		if err != nil {
			return nil, err
		}
		weights[name] = b
	}
	inner, err := parseInnerIDs(man.StyleIDToModelInnerID)
	if err != nil {
		return nil, err
	}
	return New(id, metas, weights, WithInnerIDs(inner))
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: vvm: %s: %v", ErrFormat, name, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: vvm: %s: %v", ErrFormat, name, err)
	}
	return b, nil
}

func readZipJSON(zr *zip.Reader, name string, v any) error {
	b, err := readZipFile(zr, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: vvm: %s: %v", ErrFormat, name, err)
	}
	return nil
}

// PackOptions controls [Pack].
type PackOptions struct {
	// Compress wraps the bundle in a zstd frame.
	Compress bool
	// Level is the zstd level (1-22); zero picks the default.
	Level int
}

// Pack writes m as a native bundle. The model id is not stored; every parse
// assigns a new one.
func Pack(w io.Writer, m *VoiceModel, opts PackOptions) error {
	b := bundle{
		Manifest: manifest{
			FormatVersion: FormatVersion,
			Metas:         m.metas,
		},
		Weights: m.weights,
	}
	if len(m.innerIDs) > 0 {
		b.Manifest.StyleInnerIDs = make(map[string]uint32, len(m.innerIDs))
		for k, v := range m.innerIDMap() {
			b.Manifest.StyleInnerIDs[strconv.FormatUint(uint64(k), 10)] = v
		}
	}
	payload, err := msgpack.Marshal(&b)
	if err != nil {
		return fmt.Errorf("voicemodel: encode: %w", err)
	}
	raw := append(append([]byte(nil), nativeMagic...), payload...)
	if !opts.Compress {
		_, err = w.Write(raw)
		return err
	}

	level := zstd.SpeedDefault
	if opts.Level > 0 {
		level = zstd.EncoderLevelFromZstd(opts.Level)
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
	if err != nil {
		return fmt.Errorf("voicemodel: zstd: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
