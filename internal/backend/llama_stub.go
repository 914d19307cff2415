//go:build !llama

package backend

// This file provides a no-CGO stub for the llama backend. It is compiled
// when the 'llama' build tag is NOT set, keeping default builds and CI
// CGO-free. The real backend lives in llama.go (tagged 'llama').

import "errors"

// NewLlama fails fast: the llama runtime is not available in this build.
func NewLlama() (Backend, error) {
	return nil, errors.New("llama support not built (missing 'llama' build tag)")
}
