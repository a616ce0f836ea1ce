// Package onnx provides Go bindings for the ONNX Runtime C API.
//
// The bindings are compiled only with the onnxruntime build tag, which
// needs the ONNX Runtime headers and shared library:
//
//	go build -tags onnxruntime ./...
//
// Without the tag every constructor returns [ErrUnavailable] and
// [Available] reports false, so callers can fall back to another backend.
//
// Usage flow:
//
//	env, _ := onnx.NewEnv("koe")
//	defer env.Close()
//
//	session, _ := env.NewSession(modelData, &onnx.SessionOptions{IntraOpThreads: 4})
//	defer session.Close()
//
//	input, _ := onnx.NewInt64Tensor([]int64{1, 5}, phonemes)
//	defer input.Close()
//
//	outputs, _ := session.Run([]string{"phoneme_list"}, []*onnx.Tensor{input}, []string{"phoneme_length"})
//	lengths, _ := outputs[0].FloatData()
//
// Env is safe for concurrent use. Session.Run is thread-safe (ONNX Runtime
// uses internal locking).
package onnx

import "errors"

// ErrUnavailable is returned when the package was built without ONNX Runtime.
var ErrUnavailable = errors.New("onnx: built without onnxruntime support")

// SessionOptions configures a Session.
type SessionOptions struct {
	// IntraOpThreads bounds the threads used inside one operator; zero lets
	// ONNX Runtime decide.
	IntraOpThreads int

	// CUDA appends the CUDA execution provider on device CUDADevice.
	CUDA       bool
	CUDADevice int
}
