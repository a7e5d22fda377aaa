package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/headcount/internal/config"
	"github.com/your-org/headcount/internal/models"
	"github.com/your-org/headcount/internal/observability"
	"github.com/your-org/headcount/internal/vision"
)

// Store is the subset of the persistence layer the lifecycle needs: append
// readings and write device status fields. Status updates are field-scoped
// because the worker loop and HTTP handlers write the same rows concurrently.
type Store interface {
	InsertCount(ctx context.Context, c *models.Count) error
	UpdateCameraStatus(ctx context.Context, id int64, status models.CameraStatus) error
	SetCameraLastConnection(ctx context.Context, id int64, t time.Time) error
	UpdateRoomStatus(ctx context.Context, id int64, status models.RoomStatus) error
	SetRoomLastUpdated(ctx context.Context, id int64, t time.Time) error
}

// Publisher emits recorded readings to the message bus. May be nil.
type Publisher interface {
	PublishCount(ctx context.Context, kind models.DeviceKind, deviceID int64, count *models.Count) error
}

// Snapshots stores per-window frame snapshots. May be nil.
type Snapshots interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Worker runs the capture/aggregate loop for one device. It is transient:
// created by the manager on start, gone after stop or abnormal exit. Its exit
// path releases its own registry slot so a crash never leaves a stale
// registration behind.
type Worker struct {
	id         uuid.UUID
	key        DeviceKey
	deviceName string

	source    vision.Source
	store     Store
	publisher Publisher
	snapshots Snapshots
	registry  *Registry
	cfg       config.ProcessingConfig

	ctx       context.Context
	cancel    context.CancelFunc
	running   atomic.Bool
	startedAt time.Time
	done      chan struct{}
}

func newWorker(key DeviceKey, name string, store Store, publisher Publisher, snapshots Snapshots, registry *Registry, cfg config.ProcessingConfig) *Worker {
	// The worker outlives the HTTP request that spawned it, so its context
	// is rooted in Background, cancelled only by Stop.
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		id:         uuid.New(),
		key:        key,
		deviceName: name,
		store:      store,
		publisher:  publisher,
		snapshots:  snapshots,
		registry:   registry,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		startedAt:  time.Now(),
		done:       make(chan struct{}),
	}
}

// Stop signals the loop to exit. Cooperative: the flag is observed at the top
// of each iteration and the context unblocks any in-flight read.
func (w *Worker) Stop() {
	w.running.Store(false)
	w.cancel()
}

// Done is closed when the loop has fully exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) run() {
	defer close(w.done)
	defer func() {
		_ = w.source.Close()
		w.registry.Release(w.key, w)
		w.running.Store(false)
		observability.ActiveWorkers.Dec()
		slog.Info("worker stopped", "kind", w.key.Kind, "device_id", w.key.ID, "name", w.deviceName)
	}()

	slog.Debug("worker loop started", "kind", w.key.Kind, "device_id", w.key.ID, "name", w.deviceName)

	windowStart := time.Now()
	maxCount := 0
	frames := 0
	var inferenceSum time.Duration
	var lastSnapshot []byte
	failures := 0

	for w.running.Load() {
		readCtx, cancel := context.WithTimeout(w.ctx, w.cfg.ReadTimeout)
		det, err := w.source.Next(readCtx)
		cancel()

		if err != nil {
			if w.ctx.Err() != nil {
				// Stop requested; status handling is the caller's.
				return
			}
			if vision.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
				failures++
				observability.CaptureErrors.WithLabelValues(string(w.key.Kind)).Inc()
				slog.Warn("transient capture error",
					"kind", w.key.Kind, "device_id", w.key.ID, "failures", failures, "error", err)
				if failures > w.cfg.MaxRetries {
					w.markErrored("capture failed after retries")
					return
				}
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(time.Duration(failures) * 100 * time.Millisecond):
				}
				continue
			}
			slog.Error("fatal capture error", "kind", w.key.Kind, "device_id", w.key.ID, "error", err)
			w.markErrored(err.Error())
			return
		}

		failures = 0
		frames++
		if det.PersonCount > maxCount {
			maxCount = det.PersonCount
		}
		inferenceSum += det.InferenceTime
		if det.Snapshot != nil {
			lastSnapshot = det.Snapshot
		}
		observability.FramesProcessed.WithLabelValues(string(w.key.Kind)).Inc()
		observability.InferenceDuration.Observe(det.InferenceTime.Seconds())

		if time.Since(windowStart) >= w.cfg.Window {
			w.flush(maxCount, frames, inferenceSum, lastSnapshot)
			windowStart = time.Now()
			maxCount, frames, inferenceSum, lastSnapshot = 0, 0, 0, nil
		}
	}
}

// flush records one reading for the closed window: the maximum observed count
// (conservative against missed detections) and the mean per-frame inference
// latency.
func (w *Worker) flush(maxCount, frames int, inferenceSum time.Duration, snapshot []byte) {
	if frames == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count := &models.Count{
		PeopleCount:     maxCount,
		FramesProcessed: frames,
		InferenceTimeMs: float64(inferenceSum.Microseconds()) / float64(frames) / 1000.0,
	}
	if w.key.Kind == models.KindRoom {
		count.RoomID = &w.key.ID
	} else {
		count.CameraID = &w.key.ID
	}

	if snapshot != nil && w.snapshots != nil {
		key := fmt.Sprintf("snapshots/%s/%d/%s.jpg", w.key.Kind, w.key.ID, uuid.New())
		if err := w.snapshots.Put(ctx, key, snapshot, "image/jpeg"); err != nil {
			slog.Warn("store snapshot", "kind", w.key.Kind, "device_id", w.key.ID, "error", err)
		} else {
			count.SnapshotKey = key
		}
	}

	if err := w.store.InsertCount(ctx, count); err != nil {
		slog.Error("record count", "kind", w.key.Kind, "device_id", w.key.ID, "error", err)
		return
	}

	if w.key.Kind == models.KindRoom {
		if err := w.store.SetRoomLastUpdated(ctx, w.key.ID, count.Timestamp); err != nil {
			slog.Warn("touch room last_updated", "room_id", w.key.ID, "error", err)
		}
	} else {
		if err := w.store.SetCameraLastConnection(ctx, w.key.ID, count.Timestamp); err != nil {
			slog.Warn("touch camera last_connection", "camera_id", w.key.ID, "error", err)
		}
	}

	if w.publisher != nil {
		if err := w.publisher.PublishCount(ctx, w.key.Kind, w.key.ID, count); err != nil {
			slog.Warn("publish count", "kind", w.key.Kind, "device_id", w.key.ID, "error", err)
		}
	}

	observability.CountsRecorded.WithLabelValues(string(w.key.Kind)).Inc()
	slog.Info("count recorded",
		"kind", w.key.Kind, "device_id", w.key.ID, "people", count.PeopleCount, "frames", count.FramesProcessed)
}

// markErrored records a terminal capture failure on the device row. Rooms
// have no error status, so they go offline instead.
func (w *Worker) markErrored(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if w.key.Kind == models.KindRoom {
		err = w.store.UpdateRoomStatus(ctx, w.key.ID, models.RoomStatusOffline)
	} else {
		err = w.store.UpdateCameraStatus(ctx, w.key.ID, models.CameraStatusError)
	}
	if err != nil {
		slog.Error("mark device errored", "kind", w.key.Kind, "device_id", w.key.ID, "error", err)
	}
	slog.Error("worker giving up", "kind", w.key.Kind, "device_id", w.key.ID, "reason", reason)
}
