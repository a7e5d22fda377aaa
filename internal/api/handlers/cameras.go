package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/headcount/internal/models"
	"github.com/your-org/headcount/internal/processing"
	"github.com/your-org/headcount/internal/storage"
	"github.com/your-org/headcount/pkg/dto"
)

// CameraStore is the persistence surface the camera handlers need.
// *storage.PostgresStore satisfies it.
type CameraStore interface {
	CreateCamera(ctx context.Context, cam *models.Camera) error
	GetCamera(ctx context.Context, id int64) (*models.Camera, error)
	GetOrCreateCameraByIP(ctx context.Context, cam *models.Camera) (bool, error)
	SetCameraLastConnection(ctx context.Context, id int64, t time.Time) error
	ListCameras(ctx context.Context, status string, isActive *bool) ([]models.Camera, error)
	UpdateCamera(ctx context.Context, id int64, patch storage.CameraPatch) (*models.Camera, error)
	DeleteCamera(ctx context.Context, id int64) error
}

// Lifecycle is the processing control surface. *processing.Manager satisfies it.
type Lifecycle interface {
	StartCamera(ctx context.Context, cam *models.Camera) error
	StopCamera(ctx context.Context, id int64) error
	StartRoom(ctx context.Context, room *models.Room) error
	StopRoom(ctx context.Context, id int64) error
	IsRunning(kind models.DeviceKind, id int64) bool
}

// SnapshotPruner removes stored snapshot objects by key prefix.
// *storage.SnapshotStore satisfies it. May be nil.
type SnapshotPruner interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

type CameraHandler struct {
	db        CameraStore
	counts    CountStore
	lifecycle Lifecycle
	snapshots SnapshotPruner
}

func NewCameraHandler(db CameraStore, counts CountStore, lifecycle Lifecycle, snapshots SnapshotPruner) *CameraHandler {
	return &CameraHandler{db: db, counts: counts, lifecycle: lifecycle, snapshots: snapshots}
}

func (h *CameraHandler) Create(c *gin.Context) {
	var req dto.CreateCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	cam := &models.Camera{
		Name:             req.Name,
		IPAddress:        req.IPAddress,
		Port:             req.Port,
		Username:         req.Username,
		Password:         req.Password,
		RTSPPath:         req.RTSPPath,
		IsActive:         isActive,
		ResolutionWidth:  req.ResolutionWidth,
		ResolutionHeight: req.ResolutionHeight,
		FPS:              req.FPS,
		Location:         req.Location,
	}

	if err := h.db.CreateCamera(c.Request.Context(), cam); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, cameraToResponse(cam))
}

func (h *CameraHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	cam, err := h.db.GetCamera(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cam == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	c.JSON(http.StatusOK, cameraToResponse(cam))
}

func (h *CameraHandler) List(c *gin.Context) {
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

	cameras, err := h.db.ListCameras(c.Request.Context(), status, isActive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.CameraResponse, 0, len(cameras))
	for i := range cameras {
		resp = append(resp, cameraToResponse(&cameras[i]))
	}

	c.JSON(http.StatusOK, dto.CameraListResponse{Cameras: resp, Total: len(resp)})
}

func (h *CameraHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.UpdateCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cam, err := h.db.UpdateCamera(c.Request.Context(), id, storage.CameraPatch{
		Name:      req.Name,
		IPAddress: req.IPAddress,
		Port:      req.Port,
		Username:  req.Username,
		Password:  req.Password,
		RTSPPath:  req.RTSPPath,
		IsActive:  req.IsActive,
		Location:  req.Location,
		FPS:       req.FPS,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cam == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	c.JSON(http.StatusOK, cameraToResponse(cam))
}

func (h *CameraHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	// Stop the worker first if running.
	if err := h.lifecycle.StopCamera(c.Request.Context(), id); err != nil && !errors.Is(err, processing.ErrNotRunning) {
		slog.Warn("stop camera before delete", "camera_id", id, "error", err)
	}

	if err := h.db.DeleteCamera(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if h.snapshots != nil {
		prefix := fmt.Sprintf("snapshots/%s/%d/", models.KindCamera, id)
		if err := h.snapshots.DeletePrefix(c.Request.Context(), prefix); err != nil {
			slog.Warn("prune camera snapshots", "camera_id", id, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *CameraHandler) Start(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	cam, err := h.db.GetCamera(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cam == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	switch err := h.lifecycle.StartCamera(c.Request.Context(), cam); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "Processing started"})
	case errors.Is(err, processing.ErrDeviceInactive):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Camera is not active"})
	case errors.Is(err, processing.ErrAlreadyRunning):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Processing already running"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *CameraHandler) Stop(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	cam, err := h.db.GetCamera(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cam == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	switch err := h.lifecycle.StopCamera(c.Request.Context(), id); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "Processing stopped"})
	case errors.Is(err, processing.ErrNotRunning):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No processing running"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *CameraHandler) LatestCount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	cam, err := h.db.GetCamera(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cam == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	latest, err := h.counts.LatestCount(c.Request.Context(), models.KindCamera, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "No counts available yet"})
		return
	}

	c.JSON(http.StatusOK, countToResponse(latest))
}

func (h *CameraHandler) Counts(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	cam, err := h.db.GetCamera(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cam == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	limit := parseLimit(c)
	counts, err := h.counts.ListCounts(c.Request.Context(), models.KindCamera, id, limit)
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

// Connect finds or creates a camera and starts processing for it in one call.
func (h *CameraHandler) Connect(c *gin.Context) {
	var req dto.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var cam *models.Camera
	switch {
	case req.CameraID != nil:
		existing, err := h.db.GetCamera(c.Request.Context(), *req.CameraID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Camera with ID %d not found", *req.CameraID)})
			return
		}
		cam = existing
		slog.Info("connecting to existing camera", "camera_id", cam.ID, "name", cam.Name)

	case req.IP != "":
		name := req.Name
		if name == "" {
			name = "Camera_" + req.IP
		}
		cam = &models.Camera{
			Name:      name,
			IPAddress: req.IP,
			Port:      req.Port,
			RTSPPath:  req.RTSPPath,
			IsActive:  true,
		}
		created, err := h.db.GetOrCreateCameraByIP(c.Request.Context(), cam)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if created {
			slog.Info("created camera", "camera_id", cam.ID, "name", cam.Name)
		} else {
			slog.Info("found existing camera", "camera_id", cam.ID, "name", cam.Name)
		}

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "camera_id or ip is required"})
		return
	}

	switch err := h.lifecycle.StartCamera(c.Request.Context(), cam); {
	case err == nil, errors.Is(err, processing.ErrAlreadyRunning):
		if errors.Is(err, processing.ErrAlreadyRunning) {
			// Already running counts as connected; refresh the connection mark.
			if terr := h.db.SetCameraLastConnection(c.Request.Context(), cam.ID, time.Now()); terr != nil {
				slog.Warn("touch camera last_connection", "camera_id", cam.ID, "error", terr)
			}
		}
		c.JSON(http.StatusOK, dto.ConnectResponse{
			Status:     "connected",
			CameraID:   cam.ID,
			CameraName: cam.Name,
			IPAddress:  cam.IPAddress,
			Message:    "Camera connected and processing started",
		})
	case errors.Is(err, processing.ErrDeviceInactive):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Camera is not active"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start camera processing"})
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func parseLimit(c *gin.Context) int {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	return limit
}

func cameraToResponse(cam *models.Camera) dto.CameraResponse {
	resp := dto.CameraResponse{
		ID:               cam.ID,
		Name:             cam.Name,
		IPAddress:        cam.IPAddress,
		Port:             cam.Port,
		RTSPPath:         cam.RTSPPath,
		RTSPURL:          cam.RTSPURL(),
		Status:           string(cam.Status),
		IsActive:         cam.IsActive,
		ResolutionWidth:  cam.ResolutionWidth,
		ResolutionHeight: cam.ResolutionHeight,
		FPS:              cam.FPS,
		Location:         cam.Location,
		CreatedAt:        cam.CreatedAt.Format(timeLayout),
		UpdatedAt:        cam.UpdatedAt.Format(timeLayout),
	}
	if cam.LastConnection != nil {
		resp.LastConnection = cam.LastConnection.Format(timeLayout)
	}
	return resp
}

const timeLayout = "2006-01-02T15:04:05Z"
