package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/headcount/internal/models"
	"github.com/your-org/headcount/pkg/dto"
)

// CountStore is the read surface over recorded readings.
// *storage.PostgresStore satisfies it.
type CountStore interface {
	GetCount(ctx context.Context, id int64) (*models.Count, error)
	LatestCount(ctx context.Context, kind models.DeviceKind, deviceID int64) (*models.Count, error)
	ListCounts(ctx context.Context, kind models.DeviceKind, deviceID int64, limit int) ([]models.Count, error)
	ListAllCounts(ctx context.Context, cameraID *int64, limit int) ([]models.Count, error)
}

// SnapshotReader fetches stored snapshot objects. *storage.SnapshotStore
// satisfies it.
type SnapshotReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type CountHandler struct {
	counts    CountStore
	snapshots SnapshotReader
}

func NewCountHandler(counts CountStore, snapshots SnapshotReader) *CountHandler {
	return &CountHandler{counts: counts, snapshots: snapshots}
}

// List serves the read-only count listing, optionally filtered by camera.
func (h *CountHandler) List(c *gin.Context) {
	var cameraID *int64
	if v := c.Query("camera_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid camera_id"})
			return
		}
		cameraID = &id
	}

	counts, err := h.counts.ListAllCounts(c.Request.Context(), cameraID, parseLimit(c))
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

// Snapshot streams the frame snapshot attached to a reading, if any.
func (h *CountHandler) Snapshot(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	count, err := h.counts.GetCount(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if count == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "count not found"})
		return
	}
	if count.SnapshotKey == "" || h.snapshots == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for this count"})
		return
	}

	data, err := h.snapshots.Get(c.Request.Context(), count.SnapshotKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func countToResponse(count *models.Count) dto.CountResponse {
	resp := dto.CountResponse{
		ID:              count.ID,
		CameraID:        count.CameraID,
		RoomID:          count.RoomID,
		PeopleCount:     count.PeopleCount,
		FramesProcessed: count.FramesProcessed,
		InferenceTimeMs: count.InferenceTimeMs,
		Timestamp:       count.Timestamp.Format(timeLayout),
	}
	if count.SnapshotKey != "" {
		resp.SnapshotURL = "/v1/counts/" + strconv.FormatInt(count.ID, 10) + "/snapshot"
	}
	return resp
}
