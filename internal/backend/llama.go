//go:build llama

package backend

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// Llama executes requests against an in-process llama.cpp model. One loaded
// model per instance; the execution thread serializes all calls so no
// internal locking is needed around Predict.
type Llama struct {
	mu     sync.Mutex
	models map[string]*llama.LLama
}

// NewLlama returns a llama.cpp-backed Backend. The model path and context
// size are read from the backend command-line config at initialize time.
func NewLlama() (Backend, error) {
	return &Llama{models: make(map[string]*llama.LLama)}, nil
}

func (b *Llama) Name() string { return "llama" }

func (b *Llama) InstanceInitialize(info InstanceInfo) error {
	path := strings.TrimSpace(info.Config["model_path"])
	if path == "" {
		return errors.New("llama backend: model_path not set in backend config")
	}
	ctxSize := 2048
	if v := info.Config["context_size"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ctxSize = n
		}
	}
	opts := []llama.ModelOption{llama.SetContext(ctxSize)}
	if info.Kind == "gpu" {
		opts = append(opts, llama.SetGPULayers(-1), llama.SetMainGPU(strconv.Itoa(info.DeviceID)))
	}
	m, err := llama.New(path, opts...)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.models[info.Name] = m
	b.mu.Unlock()
	return nil
}

func (b *Llama) Execute(info InstanceInfo, reqs []*Request) error {
	b.mu.Lock()
	m := b.models[info.Name]
	b.mu.Unlock()
	if m == nil {
		return errors.New("llama backend: instance not initialized: " + info.Name)
	}
	for _, r := range reqs {
		prompt := promptOf(r)
		_, err := m.Predict(prompt)
		r.Response().Complete(err)
	}
	return nil
}

func (b *Llama) InstanceFinalize(info InstanceInfo) error {
	b.mu.Lock()
	m := b.models[info.Name]
	delete(b.models, info.Name)
	b.mu.Unlock()
	if m != nil {
		m.Free()
	}
	return nil
}

// promptOf treats the first input's bytes as prompt text. Warm-up zero
// buffers yield an empty prompt, which llama.cpp accepts.
func promptOf(r *Request) string {
	ins := r.Inputs()
	if len(ins) == 0 {
		return ""
	}
	return strings.TrimRight(string(ins[0].Data), "\x00")
}
