package processing

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/headcount/internal/models"
)

// DeviceKey identifies a device across both variants. Camera and room ids
// live in separate namespaces, so the kind is part of the key.
type DeviceKey struct {
	Kind models.DeviceKind
	ID   int64
}

// Registry maps devices to their running workers and enforces the
// single-worker-per-device invariant. All mutation goes through its lock;
// Register and Deregister are linearizable per key.
type Registry struct {
	mu      sync.Mutex
	workers map[DeviceKey]*Worker
}

func NewRegistry() *Registry {
	return &Registry{workers: make(map[DeviceKey]*Worker)}
}

// Register claims the slot for key. It returns false when a worker is
// already registered, leaving the existing registration untouched.
func (r *Registry) Register(key DeviceKey, w *Worker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[key]; exists {
		return false
	}
	r.workers[key] = w
	return true
}

// Release removes the registration for key only if it still points at w.
// A worker's own exit path and an HTTP stop can race here; the identity
// check keeps a late release from evicting a successor worker.
func (r *Registry) Release(key DeviceKey, w *Worker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, exists := r.workers[key]; exists && cur == w {
		delete(r.workers, key)
		return true
	}
	return false
}

// Lookup returns the registered worker for key, if any.
func (r *Registry) Lookup(key DeviceKey) (*Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[key]
	return w, ok
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// WorkerInfo is a diagnostic view of one registration.
type WorkerInfo struct {
	WorkerID   uuid.UUID         `json:"worker_id"`
	DeviceKind models.DeviceKind `json:"device_kind"`
	DeviceID   int64             `json:"device_id"`
	DeviceName string            `json:"device_name"`
	StartedAt  time.Time         `json:"started_at"`
	Running    bool              `json:"running"`
}

// Snapshot returns a point-in-time view of all registered workers.
func (r *Registry) Snapshot() []WorkerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]WorkerInfo, 0, len(r.workers))
	for key, w := range r.workers {
		infos = append(infos, WorkerInfo{
			WorkerID:   w.id,
			DeviceKind: key.Kind,
			DeviceID:   key.ID,
			DeviceName: w.deviceName,
			StartedAt:  w.startedAt,
			Running:    w.running.Load(),
		})
	}
	return infos
}
