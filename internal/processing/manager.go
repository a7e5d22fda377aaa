package processing

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/headcount/internal/config"
	"github.com/your-org/headcount/internal/models"
	"github.com/your-org/headcount/internal/observability"
	"github.com/your-org/headcount/internal/vision"
)

// Manager orchestrates the processing lifecycle: it translates start/stop
// requests into worker spawn/teardown plus device status updates. It owns
// neither the durable records nor the workers; the registry owns the workers.
type Manager struct {
	registry  *Registry
	store     Store
	publisher Publisher
	snapshots Snapshots
	factory   vision.SourceFactory
	cfg       config.ProcessingConfig
}

func NewManager(registry *Registry, store Store, publisher Publisher, snapshots Snapshots, factory vision.SourceFactory, cfg config.ProcessingConfig) *Manager {
	return &Manager{
		registry:  registry,
		store:     store,
		publisher: publisher,
		snapshots: snapshots,
		factory:   factory,
		cfg:       cfg,
	}
}

// StartCamera spawns a worker for the camera. Returns ErrDeviceInactive when
// the camera's soft-enable flag is off, ErrAlreadyRunning when a worker is
// already registered, and StartError (camera marked offline) when the source
// cannot be opened. Returns as soon as the worker is registered and running;
// it does not wait for a first reading.
func (m *Manager) StartCamera(ctx context.Context, cam *models.Camera) error {
	if !cam.IsActive {
		return ErrDeviceInactive
	}

	key := DeviceKey{Kind: models.KindCamera, ID: cam.ID}
	w := newWorker(key, cam.Name, m.store, m.publisher, m.snapshots, m.registry, m.cfg)
	if !m.registry.Register(key, w) {
		return ErrAlreadyRunning
	}

	source, err := m.factory(cam.RTSPURL())
	if err != nil {
		m.registry.Release(key, w)
		if uerr := m.store.UpdateCameraStatus(ctx, cam.ID, models.CameraStatusOffline); uerr != nil {
			slog.Error("mark camera offline", "camera_id", cam.ID, "error", uerr)
		}
		return &StartError{Err: err}
	}

	w.source = source
	w.running.Store(true)
	observability.ActiveWorkers.Inc()
	go w.run()

	now := time.Now()
	if err := m.store.UpdateCameraStatus(ctx, cam.ID, models.CameraStatusActive); err != nil {
		slog.Error("mark camera active", "camera_id", cam.ID, "error", err)
	}
	if err := m.store.SetCameraLastConnection(ctx, cam.ID, now); err != nil {
		slog.Error("touch camera last_connection", "camera_id", cam.ID, "error", err)
	}

	slog.Info("processing started", "kind", key.Kind, "camera_id", cam.ID, "name", cam.Name)
	return nil
}

// StopCamera signals the camera's worker to exit and marks the camera
// inactive. An explicit stop always forces inactive, overriding a prior
// error status. Returns ErrNotRunning when no worker is registered.
func (m *Manager) StopCamera(ctx context.Context, id int64) error {
	key := DeviceKey{Kind: models.KindCamera, ID: id}
	w, ok := m.registry.Lookup(key)
	if !ok {
		return ErrNotRunning
	}

	w.Stop()
	m.registry.Release(key, w)

	if err := m.store.UpdateCameraStatus(ctx, id, models.CameraStatusInactive); err != nil {
		slog.Error("mark camera inactive", "camera_id", id, "error", err)
	}

	slog.Info("processing stopped", "kind", key.Kind, "camera_id", id)
	return nil
}

// StartRoom spawns a worker for the room's camera address. Same contract as
// StartCamera; a room that fails to start is marked offline.
func (m *Manager) StartRoom(ctx context.Context, room *models.Room) error {
	if !room.IsActive {
		return ErrDeviceInactive
	}

	key := DeviceKey{Kind: models.KindRoom, ID: room.ID}
	w := newWorker(key, room.Name, m.store, m.publisher, m.snapshots, m.registry, m.cfg)
	if !m.registry.Register(key, w) {
		return ErrAlreadyRunning
	}

	source, err := m.factory(room.CameraIP)
	if err != nil {
		m.registry.Release(key, w)
		if uerr := m.store.UpdateRoomStatus(ctx, room.ID, models.RoomStatusOffline); uerr != nil {
			slog.Error("mark room offline", "room_id", room.ID, "error", uerr)
		}
		return &StartError{Err: err}
	}

	w.source = source
	w.running.Store(true)
	observability.ActiveWorkers.Inc()
	go w.run()

	if err := m.store.UpdateRoomStatus(ctx, room.ID, models.RoomStatusActive); err != nil {
		slog.Error("mark room active", "room_id", room.ID, "error", err)
	}

	slog.Info("processing started", "kind", key.Kind, "room_id", room.ID, "name", room.Name)
	return nil
}

// StopRoom signals the room's worker to exit and marks the room inactive.
func (m *Manager) StopRoom(ctx context.Context, id int64) error {
	key := DeviceKey{Kind: models.KindRoom, ID: id}
	w, ok := m.registry.Lookup(key)
	if !ok {
		return ErrNotRunning
	}

	w.Stop()
	m.registry.Release(key, w)

	if err := m.store.UpdateRoomStatus(ctx, id, models.RoomStatusInactive); err != nil {
		slog.Error("mark room inactive", "room_id", id, "error", err)
	}

	slog.Info("processing stopped", "kind", key.Kind, "room_id", id)
	return nil
}

// IsRunning reports whether a worker is registered for the device.
func (m *Manager) IsRunning(kind models.DeviceKind, id int64) bool {
	_, ok := m.registry.Lookup(DeviceKey{Kind: kind, ID: id})
	return ok
}

// Snapshot returns a diagnostic view of all registered workers.
func (m *Manager) Snapshot() []WorkerInfo {
	return m.registry.Snapshot()
}

// StopAll stops every registered worker and waits for the loops to exit.
// Used on shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	for _, info := range m.registry.Snapshot() {
		key := DeviceKey{Kind: info.DeviceKind, ID: info.DeviceID}
		w, ok := m.registry.Lookup(key)
		if !ok {
			continue
		}
		w.Stop()
		m.registry.Release(key, w)
		select {
		case <-w.Done():
		case <-ctx.Done():
			return
		}
	}
}
