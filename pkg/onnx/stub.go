//go:build !onnxruntime

package onnx

// Available reports whether ONNX Runtime is linked in.
func Available() bool { return false }

// CUDAAvailable reports whether the CUDA execution provider can be used.
func CUDAAvailable() bool { return false }

// Env is unusable without ONNX Runtime.
type Env struct{}

// NewEnv returns ErrUnavailable.
func NewEnv(string) (*Env, error) { return nil, ErrUnavailable }

// NewSession returns ErrUnavailable.
func (e *Env) NewSession([]byte, *SessionOptions) (*Session, error) { return nil, ErrUnavailable }

// Close does nothing.
func (e *Env) Close() error { return nil }

// Session is unusable without ONNX Runtime.
type Session struct{}

// Run returns ErrUnavailable.
func (s *Session) Run([]string, []*Tensor, []string) ([]*Tensor, error) { return nil, ErrUnavailable }

// Close does nothing.
func (s *Session) Close() error { return nil }

// Tensor is unusable without ONNX Runtime.
type Tensor struct{}

// NewTensor returns ErrUnavailable.
func NewTensor([]int64, []float32) (*Tensor, error) { return nil, ErrUnavailable }

// NewInt64Tensor returns ErrUnavailable.
func NewInt64Tensor([]int64, []int64) (*Tensor, error) { return nil, ErrUnavailable }

// FloatData returns ErrUnavailable.
func (t *Tensor) FloatData() ([]float32, error) { return nil, ErrUnavailable }

// Shape returns ErrUnavailable.
func (t *Tensor) Shape() ([]int64, error) { return nil, ErrUnavailable }

// Close does nothing.
func (t *Tensor) Close() error { return nil }
