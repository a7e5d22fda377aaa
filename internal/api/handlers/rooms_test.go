package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/headcount/internal/models"
	"github.com/your-org/headcount/internal/processing"
	"github.com/your-org/headcount/internal/storage"
)

type fakeRoomStore struct {
	mu     sync.Mutex
	rooms  map[int64]*models.Room
	nextID int64
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{rooms: make(map[int64]*models.Room)}
}

func (s *fakeRoomStore) CreateRoom(ctx context.Context, r *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	if r.Status == "" {
		r.Status = models.RoomStatusInactive
	}
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	s.rooms[r.ID] = &cp
	return nil
}

func (s *fakeRoomStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *room
	return &cp, nil
}

func (s *fakeRoomStore) ListRooms(ctx context.Context, status string, isActive *bool) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Room
	for _, room := range s.rooms {
		if status != "" && string(room.Status) != status {
			continue
		}
		if isActive != nil && room.IsActive != *isActive {
			continue
		}
		out = append(out, *room)
	}
	return out, nil
}

func (s *fakeRoomStore) UpdateRoom(ctx context.Context, id int64, patch storage.RoomPatch) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	if patch.Name != nil {
		room.Name = *patch.Name
	}
	if patch.CameraIP != nil {
		room.CameraIP = *patch.CameraIP
	}
	if patch.IsActive != nil {
		room.IsActive = *patch.IsActive
	}
	cp := *room
	return &cp, nil
}

func (s *fakeRoomStore) DeleteRoom(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return fmt.Errorf("room not found")
	}
	delete(s.rooms, id)
	return nil
}

func (s *fakeRoomStore) setStatus(id int64, status models.RoomStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[id]; ok {
		room.Status = status
	}
}

func newRoomTestRouter(db *fakeRoomStore, counts *fakeCountStore, lc *fakeLifecycle) *gin.Engine {
	r := gin.New()
	h := NewRoomHandler(db, counts, lc, nil)
	r.POST("/v1/rooms", h.Create)
	r.GET("/v1/rooms/:id", h.Get)
	r.POST("/v1/rooms/:id/stop", h.Stop)
	r.GET("/v1/rooms/:id/counts", h.Counts)
	return r
}

func TestRoomCreateAutoStarts(t *testing.T) {
	db := newFakeRoomStore()
	lc := newFakeLifecycle()
	lc.onStartRoom = func(room *models.Room) {
		db.setStatus(room.ID, models.RoomStatusActive)
	}
	r := newRoomTestRouter(db, &fakeCountStore{}, lc)

	w := doJSON(t, r, http.MethodPost, "/v1/rooms", map[string]interface{}{
		"name": "Conference A", "camera_ip": "10.0.0.9",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !lc.IsRunning(models.KindRoom, 1) {
		t.Error("expected room worker to be started")
	}
	if !strings.Contains(w.Body.String(), `"status":"active"`) {
		t.Errorf("expected re-read active status in response: %s", w.Body.String())
	}
}

func TestRoomCreateSurvivesStartFailure(t *testing.T) {
	db := newFakeRoomStore()
	lc := newFakeLifecycle()
	lc.startRoomErr = &processing.StartError{Err: fmt.Errorf("dial rtsp: refused")}
	lc.onStartRoom = func(room *models.Room) {
		db.setStatus(room.ID, models.RoomStatusOffline)
	}
	r := newRoomTestRouter(db, &fakeCountStore{}, lc)

	w := doJSON(t, r, http.MethodPost, "/v1/rooms", map[string]interface{}{
		"name": "Conference A", "camera_ip": "10.0.0.9",
	})
	// Creation succeeds even when the worker cannot start.
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"status":"offline"`) {
		t.Errorf("expected offline status in response: %s", w.Body.String())
	}

	room, _ := db.GetRoom(context.Background(), 1)
	if room == nil {
		t.Fatal("expected room to be persisted")
	}
}

func TestRoomStopNotRunning(t *testing.T) {
	db := newFakeRoomStore()
	r := newRoomTestRouter(db, &fakeCountStore{}, newFakeLifecycle())

	_ = db.CreateRoom(context.Background(), &models.Room{Name: "Conference A", CameraIP: "10.0.0.9", IsActive: true})

	w := doJSON(t, r, http.MethodPost, "/v1/rooms/1/stop", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No processing running") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/v1/rooms/99/stop", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", w.Code)
	}
}

func TestRoomResponseCarriesLatestCount(t *testing.T) {
	db := newFakeRoomStore()
	roomID := int64(1)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	counts := &fakeCountStore{counts: []models.Count{
		{ID: 1, RoomID: &roomID, PeopleCount: 12, Timestamp: ts},
	}}
	r := newRoomTestRouter(db, counts, newFakeLifecycle())

	_ = db.CreateRoom(context.Background(), &models.Room{Name: "Conference A", CameraIP: "10.0.0.9", IsActive: true})

	w := doJSON(t, r, http.MethodGet, "/v1/rooms/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"latest_count":12`) {
		t.Errorf("expected latest count in response: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"latest_count_timestamp":"2025-06-01T12:00:00Z"`) {
		t.Errorf("expected latest count timestamp in response: %s", w.Body.String())
	}
}
