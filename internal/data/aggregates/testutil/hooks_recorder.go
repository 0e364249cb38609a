package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/mes-backend/internal/data/aggregates"
)

// HooksRecorder captures aggregate hook signals in tests.
type HooksRecorder struct {
	mu sync.Mutex

	Operations []OperationEvent
	Conflicts  []string
	Retries    []string
	Rejections []RejectionEvent
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

type RejectionEvent struct {
	Name string
	Kind string
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{
		Name:     name,
		Status:   status,
		Duration: dur,
	})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, name)
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Retries = append(h.Retries, name)
}

func (h *HooksRecorder) IncRejection(name, kind string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Rejections = append(h.Rejections, RejectionEvent{Name: name, Kind: kind})
}

// RejectionKinds returns recorded kinds in order.
func (h *HooksRecorder) RejectionKinds() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.Rejections))
	for _, r := range h.Rejections {
		out = append(out, r.Kind)
	}
	return out
}
