package main

import (
	"sync"

	"instanced/internal/instance"
	"instanced/pkg/types"
)

// statusService aggregates the loaded models behind the httpapi.Service
// interface.
type statusService struct {
	mu     sync.Mutex
	models []*instance.Model
}

func newStatusService() *statusService { return &statusService{} }

func (s *statusService) add(m *instance.Model) {
	s.mu.Lock()
	s.models = append(s.models, m)
	s.mu.Unlock()
}

func (s *statusService) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.models {
		m.Close()
	}
	s.models = nil
}

func (s *statusService) Status() types.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := types.StatusResponse{Ready: len(s.models) > 0}
	for _, m := range s.models {
		st := m.Status()
		resp.Models = append(resp.Models, st)
		for _, inst := range st.Instances {
			if !inst.Passive && inst.State != "ready" {
				resp.Ready = false
			}
		}
	}
	return resp
}

func (s *statusService) Ready() bool { return s.Status().Ready }
