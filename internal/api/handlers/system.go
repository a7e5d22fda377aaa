package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/headcount/internal/processing"
)

// Pinger is anything with backend connectivity to report.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WorkerSnapshotter exposes the worker registry's diagnostic view.
// *processing.Manager satisfies it.
type WorkerSnapshotter interface {
	Snapshot() []processing.WorkerInfo
}

type SystemHandler struct {
	db      Pinger
	minio   Pinger
	nats    func() error
	workers WorkerSnapshotter
}

func NewSystemHandler(db, minio Pinger, nats func() error, workers WorkerSnapshotter) *SystemHandler {
	return &SystemHandler{db: db, minio: minio, nats: nats, workers: workers}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := h.minio.Ping(ctx); err != nil {
		checks["minio"] = err.Error()
		healthy = false
	} else {
		checks["minio"] = "ok"
	}

	if err := h.nats(); err != nil {
		checks["nats"] = err.Error()
		healthy = false
	} else {
		checks["nats"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}

// Workers reports all currently registered device workers.
func (h *SystemHandler) Workers(c *gin.Context) {
	infos := h.workers.Snapshot()
	c.JSON(http.StatusOK, gin.H{"workers": infos, "total": len(infos)})
}
