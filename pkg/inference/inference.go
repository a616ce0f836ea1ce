// Package inference runs the acoustic models behind synthesis: phoneme
// duration, mora pitch and waveform decoding.
//
// A Backend opens an Engine on a device. An Engine turns a voice model into a
// Session, which owns whatever native resources the model needs and must be
// closed when the model is unloaded.
package inference

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/haivivi/koe/pkg/voicemodel"
)

// Audio layout of decoder output.
const (
	SampleRate      = 24000
	SamplesPerFrame = 256
	FrameRate       = float64(SampleRate) / SamplesPerFrame
)

// Errors returned by backends.
var (
	ErrDeviceUnavailable = errors.New("inference: device unavailable")
	ErrModel             = errors.New("inference: unusable model")
	ErrInput             = errors.New("inference: invalid input")
)

// Device is where inference runs.
type Device int

const (
	CPU Device = iota
	GPU
)

func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	}
	return fmt.Sprintf("Device(%d)", int(d))
}

// AccelerationMode selects the device.
type AccelerationMode int

const (
	// Auto uses the GPU when the backend can, otherwise the CPU.
	Auto AccelerationMode = iota
	// ForceCPU always uses the CPU.
	ForceCPU
	// ForceGPU fails when no GPU can be set up.
	ForceGPU
)

func (m AccelerationMode) String() string {
	switch m {
	case Auto:
		return "auto"
	case ForceCPU:
		return "cpu"
	case ForceGPU:
		return "gpu"
	}
	return fmt.Sprintf("AccelerationMode(%d)", int(m))
}

// ParseAccelerationMode parses "auto", "cpu" or "gpu".
func ParseAccelerationMode(s string) (AccelerationMode, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "cpu":
		return ForceCPU, nil
	case "gpu":
		return ForceGPU, nil
	}
	return 0, fmt.Errorf("inference: unknown acceleration mode %q", s)
}

// EngineOptions configures Backend.Open.
type EngineOptions struct {
	// CPUNumThreads bounds CPU parallelism; zero means backend default.
	CPUNumThreads int
	Logger        *slog.Logger
}

// Backend creates engines.
type Backend interface {
	Name() string
	SupportsGPU() bool
	Open(device Device, opts EngineOptions) (Engine, error)
}

// Engine is an initialized execution context.
type Engine interface {
	Device() Device
	// Load prepares a session for model. The model must not be modified by
	// the session.
	Load(model *voicemodel.VoiceModel) (Session, error)
	Close() error
}

// IntonationInput holds the per-mora features of the pitch model. All
// slices have one element per mora, including the leading and trailing
// pauses.
type IntonationInput struct {
	Vowels            []int64
	Consonants        []int64 // -1 when the mora has no consonant
	StartAccent       []int64
	EndAccent         []int64
	StartAccentPhrase []int64
	EndAccentPhrase   []int64
}

// Len returns the number of moras.
func (in *IntonationInput) Len() int { return len(in.Vowels) }

func (in *IntonationInput) validate() error {
	n := len(in.Vowels)
	for _, s := range [][]int64{in.Consonants, in.StartAccent, in.EndAccent, in.StartAccentPhrase, in.EndAccentPhrase} {
		if len(s) != n {
			return fmt.Errorf("%w: intonation feature lengths differ", ErrInput)
		}
	}
	return nil
}

// Session runs one model. Speaker is the inner id of the style.
type Session interface {
	// PredictDuration returns the length in seconds of every phoneme.
	PredictDuration(phonemes []int64, speaker uint32) ([]float32, error)
	// PredictIntonation returns the log-F0 of every mora; 0 means unvoiced.
	PredictIntonation(in IntonationInput, speaker uint32) ([]float32, error)
	// Decode renders frames to samples at SampleRate. f0 has one entry per
	// frame and phonemes one one-hot row per frame.
	Decode(f0 []float32, phonemes [][]float32, speaker uint32) ([]float32, error)
	Close() error
}

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Backend)
)

// Register makes a backend available by name.
func Register(b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[b.Name()] = b
}

// Lookup returns a registered backend.
func Lookup(name string) (Backend, bool) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[name]
	return b, ok
}

// Backends lists registered backend names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open initializes an engine on the device chosen by mode. Under Auto a GPU
// that fails to initialize falls back to the CPU.
func Open(b Backend, mode AccelerationMode, opts EngineOptions) (Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch mode {
	case ForceCPU:
		return b.Open(CPU, opts)
	case ForceGPU:
		if !b.SupportsGPU() {
			return nil, fmt.Errorf("%w: backend %s has no gpu support", ErrDeviceUnavailable, b.Name())
		}
		return b.Open(GPU, opts)
	case Auto:
		if b.SupportsGPU() {
			e, err := b.Open(GPU, opts)
			if err == nil {
				return e, nil
			}
			logger.Warn("gpu unavailable, falling back to cpu", "backend", b.Name(), "error", err)
		}
		return b.Open(CPU, opts)
	}
	return nil, fmt.Errorf("inference: unknown acceleration mode %d", mode)
}
