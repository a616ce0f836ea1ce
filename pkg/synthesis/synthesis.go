// Package synthesis coordinates text-to-speech synthesis over loaded voice
// models.
//
// A Synthesizer owns a registry of voice models and the inference engine
// that runs them. Every method takes one fair lock for its whole duration,
// so a model can never be unloaded while a call is using it. Inference is
// therefore serial per Synthesizer; run several Synthesizers for
// parallelism.
//
// The pipeline goes text (or kana) -> accent phrases -> AudioQuery -> WAV:
//
//	s, _ := synthesis.New(ctx, analyzerCtx, synthesis.Options{})
//	_ = s.LoadVoiceModel(ctx, model)
//	q, _ := s.AudioQuery(ctx, "こんにちは", 0)
//	wav, _ := s.Synthesis(ctx, q, 0, nil)
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/haivivi/koe/pkg/analyzer"
	"github.com/haivivi/koe/pkg/inference"
	"github.com/haivivi/koe/pkg/voicemodel"
)

var (
	// ErrInitialization is returned when the inference engine cannot be set up.
	ErrInitialization = errors.New("synthesis: initialization failed")

	// ErrDuplicateModel is returned when loading a model whose id is already loaded.
	ErrDuplicateModel = errors.New("synthesis: model already loaded")

	// ErrDuplicateStyle is returned when a model declares a style id that a
	// loaded model already uses.
	ErrDuplicateStyle = errors.New("synthesis: style already loaded")

	// ErrModelNotFound is returned when unloading an unknown model.
	ErrModelNotFound = errors.New("synthesis: model not found")

	// ErrStyleNotFound is returned when a style id belongs to no loaded model.
	ErrStyleNotFound = errors.New("synthesis: style not found")

	// ErrSynthesis is returned when inference or rendering fails.
	ErrSynthesis = errors.New("synthesis: synthesis failed")

	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("synthesis: synthesizer closed")
)

// Options configures New.
type Options struct {
	// AccelerationMode selects the device. Auto falls back to the CPU.
	AccelerationMode inference.AccelerationMode

	// CPUNumThreads bounds CPU parallelism; zero lets the backend decide.
	CPUNumThreads int

	// Backend runs the models. Defaults to inference.DefaultBackend().
	Backend inference.Backend

	Logger *slog.Logger
}

// Synthesizer is the synthesis coordinator. It is safe for concurrent use.
type Synthesizer struct {
	sem      *semaphore.Weighted
	analyzer *analyzer.Context
	engine   inference.Engine
	logger   *slog.Logger

	// Guarded by sem.
	reg    *registry
	closed bool
}

// New initializes an inference engine and returns a ready Synthesizer that
// analyzes text with a. The analyzer may be shared with other
// Synthesizers.
func New(ctx context.Context, a *analyzer.Context, opts Options) (*Synthesizer, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil analyzer", ErrInitialization)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backend := opts.Backend
	if backend == nil {
		backend = inference.DefaultBackend()
	}
	engine, err := inference.Open(backend, opts.AccelerationMode, inference.EngineOptions{
		CPUNumThreads: opts.CPUNumThreads,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInitialization, backend.Name(), err)
	}
	logger.Info("synthesizer ready",
		"backend", backend.Name(),
		"device", engine.Device(),
		"mode", opts.AccelerationMode,
	)
	return &Synthesizer{
		sem:      semaphore.NewWeighted(1),
		analyzer: a,
		engine:   engine,
		logger:   logger,
		reg:      newRegistry(),
	}, nil
}

// NewFromDictDir loads the dictionary directory into a new analyzer and
// builds a Synthesizer on it.
func NewFromDictDir(ctx context.Context, dictDir string, opts Options) (*Synthesizer, error) {
	var aopts []analyzer.Option
	if opts.Logger != nil {
		aopts = append(aopts, analyzer.WithLogger(opts.Logger))
	}
	a, err := analyzer.New(ctx, dictDir, aopts...)
	if err != nil {
		return nil, err
	}
	return New(ctx, a, opts)
}

// lock waits for the coordinator lock. Waiters are served in arrival order.
// A caller whose ctx ends while waiting gives up without running.
func (s *Synthesizer) lock(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if s.closed {
		s.sem.Release(1)
		return ErrClosed
	}
	return nil
}

func (s *Synthesizer) unlock() {
	s.sem.Release(1)
}

// Analyzer returns the analyzer the Synthesizer reads text with.
func (s *Synthesizer) Analyzer() *analyzer.Context {
	return s.analyzer
}

// IsGPUMode reports whether inference runs on a GPU. It returns false after
// Close.
func (s *Synthesizer) IsGPUMode() bool {
	if err := s.lock(context.Background()); err != nil {
		return false
	}
	defer s.unlock()
	return s.engine.Device() == inference.GPU
}

// Metas returns the speakers of every loaded model, in load order.
func (s *Synthesizer) Metas() []voicemodel.SpeakerMeta {
	if err := s.lock(context.Background()); err != nil {
		return nil
	}
	defer s.unlock()
	return s.reg.metas()
}

// LoadVoiceModel registers model. It fails with ErrDuplicateModel if a
// model with the same id is loaded and with ErrDuplicateStyle if one of its
// styles is already served by another model. The registry is unchanged on
// error.
func (s *Synthesizer) LoadVoiceModel(ctx context.Context, model *voicemodel.VoiceModel) error {
	if model == nil {
		return fmt.Errorf("synthesis: nil voice model")
	}
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	if err := s.reg.check(model); err != nil {
		return err
	}
	sess, err := s.engine.Load(model)
	if err != nil {
		return fmt.Errorf("%w: load model %s: %w", ErrSynthesis, model.ID(), err)
	}
	s.reg.add(model, sess)
	s.logger.Info("voice model loaded", "model", model.ID(), "styles", len(model.StyleIDs()))
	return nil
}

// UnloadVoiceModel removes the model and closes its session. Style ids of
// the model are invalid for every later call.
func (s *Synthesizer) UnloadVoiceModel(ctx context.Context, id voicemodel.ID) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	sl, ok := s.reg.remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	if err := sl.session.Close(); err != nil {
		s.logger.Warn("close session", "model", id, "error", err)
	}
	s.logger.Info("voice model unloaded", "model", id)
	return nil
}

// IsLoadedVoiceModel reports whether a model with id is loaded.
func (s *Synthesizer) IsLoadedVoiceModel(id voicemodel.ID) bool {
	if err := s.lock(context.Background()); err != nil {
		return false
	}
	defer s.unlock()
	_, ok := s.reg.byID[id]
	return ok
}

// Close unloads every model and releases the engine. It waits for the call
// in progress, if any. Later calls fail with ErrClosed.
func (s *Synthesizer) Close() error {
	if err := s.lock(context.Background()); err != nil {
		return err
	}
	defer s.unlock()

	var errs []error
	for _, sl := range s.reg.slots {
		if err := sl.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("model %s: %w", sl.model.ID(), err))
		}
	}
	s.reg = newRegistry()
	if err := s.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	s.closed = true
	return errors.Join(errs...)
}
