package common

import (
	"errors"
	"strings"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module flow is administratively halted. Keys
// are dotted, e.g. "vault" pauses everything and "vault.generate" a single
// action.
type PauseView interface {
	IsPaused(flow string) bool
}

// Guard rejects the call when either the module or the specific action is
// paused. A nil view means pausing is not configured.
func Guard(p PauseView, module, action string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	if action != "" && p.IsPaused(module+"."+action) {
		return ErrModulePaused
	}
	return nil
}

// PauseSet is a mutable PauseView safe for concurrent use.
type PauseSet struct {
	mu    sync.RWMutex
	flows map[string]struct{}
}

func NewPauseSet(flows ...string) *PauseSet {
	set := &PauseSet{flows: make(map[string]struct{})}
	for _, flow := range flows {
		set.Pause(flow)
	}
	return set
}

func (s *PauseSet) Pause(flow string) {
	trimmed := strings.ToLower(strings.TrimSpace(flow))
	if s == nil || trimmed == "" {
		return
	}
	s.mu.Lock()
	s.flows[trimmed] = struct{}{}
	s.mu.Unlock()
}

func (s *PauseSet) Resume(flow string) {
	trimmed := strings.ToLower(strings.TrimSpace(flow))
	if s == nil || trimmed == "" {
		return
	}
	s.mu.Lock()
	delete(s.flows, trimmed)
	s.mu.Unlock()
}

func (s *PauseSet) IsPaused(flow string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.flows[strings.ToLower(strings.TrimSpace(flow))]
	return ok
}
