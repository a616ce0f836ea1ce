// Package voicemodel holds immutable voice model bundles: speaker metadata
// plus opaque inference weights.
//
// A *VoiceModel is safe to share between goroutines and between
// synthesizers. Nothing in it changes after construction; accessors return
// copies.
package voicemodel

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Errors returned while building or reading a model.
var (
	ErrFileNotFound = errors.New("voicemodel: file not found")
	ErrFormat       = errors.New("voicemodel: invalid bundle format")
)

// Well-known weight names used by the inference backends.
const (
	WeightPredictDuration   = "predict_duration"
	WeightPredictIntonation = "predict_intonation"
	WeightDecode            = "decode"
)

// ID identifies a parsed model.
type ID string

// StyleID identifies a speaking style across all loaded models.
type StyleID uint32

// StyleMeta describes one style of a speaker.
type StyleMeta struct {
	ID   StyleID `json:"id" msgpack:"id" yaml:"id"`
	Name string  `json:"name" msgpack:"name" yaml:"name"`
}

// SpeakerMeta describes a speaker and its styles.
type SpeakerMeta struct {
	Name        string      `json:"name" msgpack:"name" yaml:"name"`
	SpeakerUUID string      `json:"speaker_uuid" msgpack:"speaker_uuid" yaml:"speaker_uuid"`
	Version     string      `json:"version" msgpack:"version" yaml:"version"`
	Styles      []StyleMeta `json:"styles" msgpack:"styles" yaml:"styles"`
}

// Clone returns a deep copy of m.
func (m SpeakerMeta) Clone() SpeakerMeta {
	m.Styles = slices.Clone(m.Styles)
	return m
}

// CloneMetas deep-copies a metadata list.
func CloneMetas(metas []SpeakerMeta) []SpeakerMeta {
	if metas == nil {
		return nil
	}
	out := make([]SpeakerMeta, len(metas))
	for i, m := range metas {
		out[i] = m.Clone()
	}
	return out
}

// VoiceModel is an immutable voice model.
type VoiceModel struct {
	id       ID
	metas    []SpeakerMeta
	innerIDs map[StyleID]uint32
	weights  map[string][]byte
}

// Option configures [New].
type Option func(*VoiceModel)

// WithInnerIDs maps public style ids to the speaker index the weights were
// trained with. Styles not in the map use their own id.
func WithInnerIDs(ids map[StyleID]uint32) Option {
	return func(m *VoiceModel) {
		for k, v := range ids {
			m.innerIDs[k] = v
		}
	}
}

// New builds a model from its parts. The slices and maps are copied. Style
// ids must be unique within the model.
func New(id ID, metas []SpeakerMeta, weights map[string][]byte, opts ...Option) (*VoiceModel, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty model id", ErrFormat)
	}
	if len(metas) == 0 {
		return nil, fmt.Errorf("%w: model %s has no speakers", ErrFormat, id)
	}
	m := &VoiceModel{
		id:       id,
		metas:    CloneMetas(metas),
		innerIDs: make(map[StyleID]uint32),
		weights:  make(map[string][]byte, len(weights)),
	}
	seen := make(map[StyleID]bool)
	for _, sp := range m.metas {
		if len(sp.Styles) == 0 {
			return nil, fmt.Errorf("%w: speaker %q has no styles", ErrFormat, sp.Name)
		}
		for _, st := range sp.Styles {
			if seen[st.ID] {
				return nil, fmt.Errorf("%w: duplicate style id %d in model %s", ErrFormat, st.ID, id)
			}
			seen[st.ID] = true
		}
	}
	for name, w := range weights {
		m.weights[name] = slices.Clone(w)
	}
	for _, opt := range opts {
		opt(m)
	}
	for style := range m.innerIDs {
		if !seen[style] {
			return nil, fmt.Errorf("%w: inner id for unknown style %d", ErrFormat, style)
		}
	}
	return m, nil
}

// ID returns the model id.
func (m *VoiceModel) ID() ID { return m.id }

// Metas returns a copy of the speaker metadata.
func (m *VoiceModel) Metas() []SpeakerMeta { return CloneMetas(m.metas) }

// StyleIDs returns every style id of the model in ascending order.
func (m *VoiceModel) StyleIDs() []StyleID {
	var ids []StyleID
	for _, sp := range m.metas {
		for _, st := range sp.Styles {
			ids = append(ids, st.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// HasStyle reports whether style belongs to the model.
func (m *VoiceModel) HasStyle(style StyleID) bool {
	for _, sp := range m.metas {
		for _, st := range sp.Styles {
			if st.ID == style {
				return true
			}
		}
	}
	return false
}

// InnerID returns the speaker index used by the weights for style.
func (m *VoiceModel) InnerID(style StyleID) (uint32, bool) {
	if !m.HasStyle(style) {
		return 0, false
	}
	if inner, ok := m.innerIDs[style]; ok {
		return inner, true
	}
	return uint32(style), true
}

// Weight returns a copy of the named weight blob.
func (m *VoiceModel) Weight(name string) ([]byte, bool) {
	w, ok := m.weights[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(w), true
}

// WeightNames lists the weight blobs in sorted order.
func (m *VoiceModel) WeightNames() []string {
	names := make([]string, 0, len(m.weights))
	for name := range m.weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WeightSize returns the total size of all weights in bytes.
func (m *VoiceModel) WeightSize() int64 {
	var n int64
	for _, w := range m.weights {
		n += int64(len(w))
	}
	return n
}

func (m *VoiceModel) innerIDMap() map[StyleID]uint32 {
	out := make(map[StyleID]uint32, len(m.innerIDs))
	for k, v := range m.innerIDs {
		out[k] = v
	}
	return out
}
