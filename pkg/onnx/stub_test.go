//go:build !onnxruntime

package onnx

import (
	"errors"
	"testing"
)

func TestStubUnavailable(t *testing.T) {
	if Available() {
		t.Fatal("Available() = true without onnxruntime tag")
	}
	if _, err := NewEnv("test"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("NewEnv err = %v, want ErrUnavailable", err)
	}
	if _, err := NewInt64Tensor([]int64{1}, []int64{1}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("NewInt64Tensor err = %v, want ErrUnavailable", err)
	}
}
