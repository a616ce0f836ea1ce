//go:build onnxruntime

package onnx

import (
	"math"
	"os"
	"testing"
)

func TestNewEnv(t *testing.T) {
	env, err := NewEnv("test")
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()
	if !Available() {
		t.Fatal("Available() = false with onnxruntime tag")
	}
}

func TestNewTensor(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	tensor, err := NewTensor([]int64{2, 3}, data)
	if err != nil {
		t.Fatal(err)
	}
	defer tensor.Close()

	shape, err := tensor.Shape()
	if err != nil {
		t.Fatal(err)
	}
	if len(shape) != 2 || shape[0] != 2 || shape[1] != 3 {
		t.Errorf("shape = %v, want [2,3]", shape)
	}

	out, err := tensor.FloatData()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 6 {
		t.Fatalf("len = %d, want 6", len(out))
	}
	for i, v := range out {
		if v != data[i] {
			t.Errorf("[%d] = %f, want %f", i, v, data[i])
		}
	}
}

func TestNewInt64Tensor(t *testing.T) {
	tensor, err := NewInt64Tensor([]int64{1, 4}, []int64{0, 23, 30, 4})
	if err != nil {
		t.Fatal(err)
	}
	defer tensor.Close()
	shape, err := tensor.Shape()
	if err != nil {
		t.Fatal(err)
	}
	if len(shape) != 2 || shape[1] != 4 {
		t.Errorf("shape = %v, want [1,4]", shape)
	}
}

func TestTensorBadData(t *testing.T) {
	if _, err := NewTensor([]int64{0}, nil); err == nil {
		t.Error("expected error for empty data")
	}
	if _, err := NewTensor([]int64{2, 3}, []float32{1, 2, 3}); err == nil {
		t.Error("expected error for short data")
	}
	if _, err := NewInt64Tensor([]int64{2, 3}, []int64{1}); err == nil {
		t.Error("expected error for short int64 data")
	}
}

func TestEnvDoubleClose(t *testing.T) {
	env, err := NewEnv("test")
	if err != nil {
		t.Fatal(err)
	}
	env.Close()
	env.Close()
}

// TestPredictDuration runs a VOICEVOX duration model when one is provided
// via KOE_ONNX_DURATION_MODEL.
func TestPredictDuration(t *testing.T) {
	path := os.Getenv("KOE_ONNX_DURATION_MODEL")
	if path == "" {
		t.Skip("KOE_ONNX_DURATION_MODEL not set")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	env, err := NewEnv("test")
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()

	session, err := env.NewSession(data, &SessionOptions{IntraOpThreads: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	phonemes := []int64{0, 23, 30, 4, 28, 21, 10, 21, 42, 7, 0}
	input, err := NewInt64Tensor([]int64{int64(len(phonemes))}, phonemes)
	if err != nil {
		t.Fatal(err)
	}
	defer input.Close()
	speaker, err := NewInt64Tensor([]int64{1}, []int64{0})
	if err != nil {
		t.Fatal(err)
	}
	defer speaker.Close()

	outputs, err := session.Run(
		[]string{"phoneme_list", "speaker_id"}, []*Tensor{input, speaker},
		[]string{"phoneme_length"},
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer outputs[0].Close()

	lengths, err := outputs[0].FloatData()
	if err != nil {
		t.Fatal(err)
	}
	if len(lengths) != len(phonemes) {
		t.Fatalf("len = %d, want %d", len(lengths), len(phonemes))
	}
	for i, v := range lengths {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("lengths[%d] = %f", i, v)
		}
	}
}
