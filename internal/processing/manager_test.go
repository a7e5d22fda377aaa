package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/your-org/headcount/internal/config"
	"github.com/your-org/headcount/internal/models"
	"github.com/your-org/headcount/internal/vision"
)

// fakeStore records status writes and appended counts in memory.
type fakeStore struct {
	mu             sync.Mutex
	cameraStatus   map[int64]models.CameraStatus
	roomStatus     map[int64]models.RoomStatus
	counts         []models.Count
	lastConnection map[int64]time.Time
	lastUpdated    map[int64]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cameraStatus:   make(map[int64]models.CameraStatus),
		roomStatus:     make(map[int64]models.RoomStatus),
		lastConnection: make(map[int64]time.Time),
		lastUpdated:    make(map[int64]time.Time),
	}
}

func (s *fakeStore) InsertCount(ctx context.Context, c *models.Count) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = int64(len(s.counts) + 1)
	c.Timestamp = time.Now()
	s.counts = append(s.counts, *c)
	return nil
}

func (s *fakeStore) UpdateCameraStatus(ctx context.Context, id int64, status models.CameraStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameraStatus[id] = status
	return nil
}

func (s *fakeStore) SetCameraLastConnection(ctx context.Context, id int64, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastConnection[id] = t
	return nil
}

func (s *fakeStore) UpdateRoomStatus(ctx context.Context, id int64, status models.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomStatus[id] = status
	return nil
}

func (s *fakeStore) SetRoomLastUpdated(ctx context.Context, id int64, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdated[id] = t
	return nil
}

func (s *fakeStore) cameraStatusOf(id int64) models.CameraStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameraStatus[id]
}

func (s *fakeStore) roomStatusOf(id int64) models.RoomStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomStatus[id]
}

func (s *fakeStore) recordedCounts() []models.Count {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Count, len(s.counts))
	copy(out, s.counts)
	return out
}

// scriptedSource replays a fixed sequence of steps, then blocks until the
// read context is cancelled.
type scriptStep struct {
	det   vision.Detection
	err   error
	delay time.Duration
}

type scriptedSource struct {
	mu    sync.Mutex
	steps []scriptStep
	idx   int
}

func (s *scriptedSource) Next(ctx context.Context) (vision.Detection, error) {
	s.mu.Lock()
	if s.idx < len(s.steps) {
		step := s.steps[s.idx]
		s.idx++
		s.mu.Unlock()
		if step.delay > 0 {
			select {
			case <-ctx.Done():
				return vision.Detection{}, ctx.Err()
			case <-time.After(step.delay):
			}
		}
		return step.det, step.err
	}
	s.mu.Unlock()
	<-ctx.Done()
	return vision.Detection{}, ctx.Err()
}

func (s *scriptedSource) Close() error { return nil }

func scriptFactory(steps []scriptStep) vision.SourceFactory {
	return func(uri string) (vision.Source, error) {
		return &scriptedSource{steps: steps}, nil
	}
}

func testConfig() config.ProcessingConfig {
	return config.ProcessingConfig{
		Window:      50 * time.Millisecond,
		MaxRetries:  3,
		ReadTimeout: 5 * time.Second,
	}
}

func testCamera(id int64) *models.Camera {
	return &models.Camera{
		ID:        id,
		Name:      fmt.Sprintf("cam-%d", id),
		IPAddress: "192.168.1.50",
		Port:      554,
		RTSPPath:  "/stream1",
		IsActive:  true,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestManager_StartStopStart(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry()
	m := NewManager(registry, store, nil, nil, scriptFactory(nil), testConfig())
	ctx := context.Background()
	cam := testCamera(1)

	if err := m.StartCamera(ctx, cam); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if got := store.cameraStatusOf(1); got != models.CameraStatusActive {
		t.Errorf("expected status active after start, got %s", got)
	}
	if !m.IsRunning(models.KindCamera, 1) {
		t.Error("expected worker registered after start")
	}

	if err := m.StopCamera(ctx, 1); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if got := store.cameraStatusOf(1); got != models.CameraStatusInactive {
		t.Errorf("expected status inactive after stop, got %s", got)
	}

	// No residual registration: a second start must succeed.
	if err := m.StartCamera(ctx, cam); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if err := m.StopCamera(ctx, 1); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestManager_StartInactiveCamera(t *testing.T) {
	store := newFakeStore()
	m := NewManager(NewRegistry(), store, nil, nil, scriptFactory(nil), testConfig())

	cam := testCamera(1)
	cam.IsActive = false

	if err := m.StartCamera(context.Background(), cam); !errors.Is(err, ErrDeviceInactive) {
		t.Fatalf("expected ErrDeviceInactive, got %v", err)
	}
}

func TestManager_StopNotRunning(t *testing.T) {
	store := newFakeStore()
	store.cameraStatus[7] = models.CameraStatusOffline
	m := NewManager(NewRegistry(), store, nil, nil, scriptFactory(nil), testConfig())

	if err := m.StopCamera(context.Background(), 7); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	// Status untouched by a failed stop.
	if got := store.cameraStatusOf(7); got != models.CameraStatusOffline {
		t.Errorf("expected status offline to be preserved, got %s", got)
	}
}

func TestManager_ConcurrentStartsExactlyOneWins(t *testing.T) {
	store := newFakeStore()
	m := NewManager(NewRegistry(), store, nil, nil, scriptFactory(nil), testConfig())
	cam := testCamera(1)

	const n = 20
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.StartCamera(context.Background(), cam)
		}()
	}
	wg.Wait()
	close(results)

	started, alreadyRunning := 0, 0
	for err := range results {
		switch {
		case err == nil:
			started++
		case errors.Is(err, ErrAlreadyRunning):
			alreadyRunning++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if started != 1 {
		t.Errorf("expected exactly 1 successful start, got %d", started)
	}
	if alreadyRunning != n-1 {
		t.Errorf("expected %d AlreadyRunning, got %d", n-1, alreadyRunning)
	}

	_ = m.StopCamera(context.Background(), 1)
}

func TestManager_StartFailureMarksOffline(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry()
	dialErr := errors.New("connection refused")
	failing := func(uri string) (vision.Source, error) { return nil, dialErr }
	m := NewManager(registry, store, nil, nil, failing, testConfig())
	cam := testCamera(1)

	err := m.StartCamera(context.Background(), cam)
	var se *StartError
	if !errors.As(err, &se) {
		t.Fatalf("expected StartError, got %v", err)
	}
	if got := store.cameraStatusOf(1); got != models.CameraStatusOffline {
		t.Errorf("expected status offline after failed start, got %s", got)
	}
	if registry.Len() != 0 {
		t.Errorf("expected empty registry after failed start, got %d entries", registry.Len())
	}

	// The failed start must not block a later successful one.
	m2 := NewManager(registry, store, nil, nil, scriptFactory(nil), testConfig())
	if err := m2.StartCamera(context.Background(), cam); err != nil {
		t.Fatalf("start after failure: %v", err)
	}
	_ = m2.StopCamera(context.Background(), 1)
}

func TestManager_CrashedWorkerLeavesRegistryConsistent(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry()
	fatal := []scriptStep{{err: errors.New("stream closed")}}
	m := NewManager(registry, store, nil, nil, scriptFactory(fatal), testConfig())
	cam := testCamera(1)

	if err := m.StartCamera(context.Background(), cam); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// The worker hits the fatal error and must deregister itself.
	waitFor(t, 2*time.Second, func() bool { return registry.Len() == 0 })

	if got := store.cameraStatusOf(1); got != models.CameraStatusError {
		t.Errorf("expected status error after fatal capture failure, got %s", got)
	}

	// A fresh start supersedes the dead registration.
	m2 := NewManager(registry, store, nil, nil, scriptFactory(nil), testConfig())
	if err := m2.StartCamera(context.Background(), cam); err != nil {
		t.Fatalf("start after crash: %v", err)
	}
	_ = m2.StopCamera(context.Background(), 1)
}

func TestManager_RoomLifecycle(t *testing.T) {
	store := newFakeStore()
	m := NewManager(NewRegistry(), store, nil, nil, scriptFactory(nil), testConfig())
	ctx := context.Background()
	room := &models.Room{ID: 3, Name: "Lab 1", CameraIP: "10.0.0.5", IsActive: true}

	if err := m.StartRoom(ctx, room); err != nil {
		t.Fatalf("start room: %v", err)
	}
	if got := store.roomStatusOf(3); got != models.RoomStatusActive {
		t.Errorf("expected room active, got %s", got)
	}

	if err := m.StartRoom(ctx, room); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	if err := m.StopRoom(ctx, 3); err != nil {
		t.Fatalf("stop room: %v", err)
	}
	if got := store.roomStatusOf(3); got != models.RoomStatusInactive {
		t.Errorf("expected room inactive after stop, got %s", got)
	}

	if err := m.StopRoom(ctx, 3); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestManager_RoomStartFailureMarksOffline(t *testing.T) {
	store := newFakeStore()
	failing := func(uri string) (vision.Source, error) { return nil, errors.New("no route to host") }
	m := NewManager(NewRegistry(), store, nil, nil, failing, testConfig())
	room := &models.Room{ID: 9, Name: "Lab 2", CameraIP: "10.0.0.9", IsActive: true}

	err := m.StartRoom(context.Background(), room)
	var se *StartError
	if !errors.As(err, &se) {
		t.Fatalf("expected StartError, got %v", err)
	}
	if got := store.roomStatusOf(9); got != models.RoomStatusOffline {
		t.Errorf("expected room offline after failed start, got %s", got)
	}
}
