package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/headcount/internal/models"
	"github.com/your-org/headcount/internal/processing"
	"github.com/your-org/headcount/internal/storage"
	"github.com/your-org/headcount/pkg/dto"
)

// RoomStore is the persistence surface the room handlers need.
// *storage.PostgresStore satisfies it.
type RoomStore interface {
	CreateRoom(ctx context.Context, r *models.Room) error
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	ListRooms(ctx context.Context, status string, isActive *bool) ([]models.Room, error)
	UpdateRoom(ctx context.Context, id int64, patch storage.RoomPatch) (*models.Room, error)
	DeleteRoom(ctx context.Context, id int64) error
}

type RoomHandler struct {
	db        RoomStore
	counts    CountStore
	lifecycle Lifecycle
	snapshots SnapshotPruner
}

func NewRoomHandler(db RoomStore, counts CountStore, lifecycle Lifecycle, snapshots SnapshotPruner) *RoomHandler {
	return &RoomHandler{db: db, counts: counts, lifecycle: lifecycle, snapshots: snapshots}
}

// Create persists the room and auto-starts its worker. A start failure leaves
// the room persisted with status offline; creation still succeeds.
func (h *RoomHandler) Create(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	room := &models.Room{
		Name:     req.Name,
		CameraIP: req.CameraIP,
		IsActive: isActive,
	}

	if err := h.db.CreateRoom(c.Request.Context(), room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	slog.Info("room created", "room_id", room.ID, "name", room.Name)

	if err := h.lifecycle.StartRoom(c.Request.Context(), room); err != nil {
		slog.Error("start room processing", "room_id", room.ID, "error", err)
	}

	// Re-read for the status the lifecycle just wrote.
	if fresh, err := h.db.GetRoom(c.Request.Context(), room.ID); err == nil && fresh != nil {
		room = fresh
	}

	c.JSON(http.StatusCreated, h.roomToResponse(c.Request.Context(), room))
}

func (h *RoomHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	room, err := h.db.GetRoom(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	c.JSON(http.StatusOK, h.roomToResponse(c.Request.Context(), room))
}

func (h *RoomHandler) List(c *gin.Context) {
	status := c.Query("status")
	var isActive *bool
	if v := c.Query("is_active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid is_active"})
			return
		}
		isActive = &b
	}

	rooms, err := h.db.ListRooms(c.Request.Context(), status, isActive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.RoomResponse, 0, len(rooms))
	for i := range rooms {
		resp = append(resp, h.roomToResponse(c.Request.Context(), &rooms[i]))
	}

	c.JSON(http.StatusOK, dto.RoomListResponse{Rooms: resp, Total: len(resp)})
}

func (h *RoomHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.db.UpdateRoom(c.Request.Context(), id, storage.RoomPatch{
		Name:     req.Name,
		CameraIP: req.CameraIP,
		IsActive: req.IsActive,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	c.JSON(http.StatusOK, h.roomToResponse(c.Request.Context(), room))
}

func (h *RoomHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.lifecycle.StopRoom(c.Request.Context(), id); err != nil && !errors.Is(err, processing.ErrNotRunning) {
		slog.Warn("stop room before delete", "room_id", id, "error", err)
	}

	if err := h.db.DeleteRoom(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if h.snapshots != nil {
		prefix := fmt.Sprintf("snapshots/%s/%d/", models.KindRoom, id)
		if err := h.snapshots.DeletePrefix(c.Request.Context(), prefix); err != nil {
			slog.Warn("prune room snapshots", "room_id", id, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *RoomHandler) Stop(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	room, err := h.db.GetRoom(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	switch err := h.lifecycle.StopRoom(c.Request.Context(), id); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "Camera processing stopped"})
	case errors.Is(err, processing.ErrNotRunning):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No processing running"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *RoomHandler) Counts(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	room, err := h.db.GetRoom(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	limit := parseLimit(c)
	counts, err := h.counts.ListCounts(c.Request.Context(), models.KindRoom, id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.CountResponse, 0, len(counts))
	for i := range counts {
		resp = append(resp, countToResponse(&counts[i]))
	}

	c.JSON(http.StatusOK, dto.CountListResponse{Counts: resp, Total: len(resp)})
}

func (h *RoomHandler) roomToResponse(ctx context.Context, room *models.Room) dto.RoomResponse {
	resp := dto.RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		CameraIP:  room.CameraIP,
		IsActive:  room.IsActive,
		Status:    string(room.Status),
		CreatedAt: room.CreatedAt.Format(timeLayout),
		UpdatedAt: room.UpdatedAt.Format(timeLayout),
	}
	if room.LastUpdated != nil {
		resp.LastUpdated = room.LastUpdated.Format(timeLayout)
	}
	if latest, err := h.counts.LatestCount(ctx, models.KindRoom, room.ID); err == nil && latest != nil {
		resp.LatestCount = latest.PeopleCount
		resp.LatestCountTimestamp = latest.Timestamp.Format(timeLayout)
	}
	return resp
}
