package synthesis

import (
	"fmt"

	"github.com/haivivi/koe/pkg/inference"
	"github.com/haivivi/koe/pkg/voicemodel"
)

// slot is one loaded model and the session running it.
type slot struct {
	model   *voicemodel.VoiceModel
	session inference.Session
}

// registry holds the loaded models. It is not locked; the Synthesizer
// serializes access.
type registry struct {
	slots  []*slot // load order
	byID   map[voicemodel.ID]*slot
	styles map[voicemodel.StyleID]*slot
}

func newRegistry() *registry {
	return &registry{
		byID:   make(map[voicemodel.ID]*slot),
		styles: make(map[voicemodel.StyleID]*slot),
	}
}

func (r *registry) check(m *voicemodel.VoiceModel) error {
	if _, ok := r.byID[m.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, m.ID())
	}
	for _, st := range m.StyleIDs() {
		if other, ok := r.styles[st]; ok {
			return fmt.Errorf("%w: style %d of model %s is served by %s", ErrDuplicateStyle, st, m.ID(), other.model.ID())
		}
	}
	return nil
}

func (r *registry) add(m *voicemodel.VoiceModel, sess inference.Session) {
	sl := &slot{model: m, session: sess}
	r.slots = append(r.slots, sl)
	r.byID[m.ID()] = sl
	for _, st := range m.StyleIDs() {
		r.styles[st] = sl
	}
}

func (r *registry) remove(id voicemodel.ID) (*slot, bool) {
	sl, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	for _, st := range sl.model.StyleIDs() {
		delete(r.styles, st)
	}
	for i, x := range r.slots {
		if x == sl {
			r.slots = append(r.slots[:i], r.slots[i+1:]...)
			break
		}
	}
	return sl, true
}

// style resolves a style id to its slot and the model's inner speaker id.
func (r *registry) style(st voicemodel.StyleID) (*slot, uint32, error) {
	sl, ok := r.styles[st]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %d", ErrStyleNotFound, st)
	}
	inner, _ := sl.model.InnerID(st)
	return sl, inner, nil
}

func (r *registry) metas() []voicemodel.SpeakerMeta {
	var out []voicemodel.SpeakerMeta
	for _, sl := range r.slots {
		out = append(out, sl.model.Metas()...)
	}
	return out
}
