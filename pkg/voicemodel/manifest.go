package voicemodel

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/haivivi/koe/pkg/storage"
)

// PackManifest is the YAML source of a bundle:
//
//	metas:
//	  - name: Metan
//	    speaker_uuid: 7ffcb7ce-...
//	    version: 0.1.0
//	    styles:
//	      - {id: 0, name: normal}
//	style_inner_ids:
//	  "0": 0
//	weights:
//	  predict_duration: duration.onnx
//	  predict_intonation: intonation.onnx
//	  decode: decode.onnx
//
// Weight paths are relative to the manifest.
type PackManifest struct {
	Metas         []SpeakerMeta     `yaml:"metas"`
	StyleInnerIDs map[string]uint32 `yaml:"style_inner_ids,omitempty"`
	Weights       map[string]string `yaml:"weights"`
}

// ParseManifestYAML decodes a pack manifest.
func ParseManifestYAML(data []byte) (*PackManifest, error) {
	var m PackManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrFormat, err)
	}
	if len(m.Metas) == 0 {
		return nil, fmt.Errorf("%w: manifest: no metas", ErrFormat)
	}
	return &m, nil
}

// FromManifest reads a pack manifest and its weight files from store and
// builds a model with a fresh id.
func FromManifest(ctx context.Context, store storage.FileStore, manifestPath string) (*VoiceModel, error) {
	data, err := storage.ReadFile(ctx, store, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("voicemodel: read manifest: %w", err)
	}
	man, err := ParseManifestYAML(data)
	if err != nil {
		return nil, err
	}
	dir := path.Dir(strings.ReplaceAll(manifestPath, "\\", "/"))
	weights := make(map[string][]byte, len(man.Weights))
	for name, file := range man.Weights {
		if !path.IsAbs(file) {
			file = path.Join(dir, file)
		}
		b, err := storage.ReadFile(ctx, store, file)
		if err != nil {
			return nil, fmt.Errorf("voicemodel: weight %s: %w", name, err)
		}
		weights[name] = b
	}
	inner, err := parseInnerIDs(man.StyleInnerIDs)
	if err != nil {
		return nil, err
	}
	return New(ID(uuid.NewString()), man.Metas, weights, WithInnerIDs(inner))
}
