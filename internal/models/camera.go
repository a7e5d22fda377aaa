package models

import (
	"fmt"
	"time"
)

type CameraStatus string

const (
	CameraStatusActive   CameraStatus = "active"
	CameraStatusInactive CameraStatus = "inactive"
	CameraStatusOffline  CameraStatus = "offline"
	CameraStatusError    CameraStatus = "error"
)

type Camera struct {
	ID               int64        `json:"id" db:"id"`
	Name             string       `json:"name" db:"name"`
	IPAddress        string       `json:"ip_address" db:"ip_address"`
	Port             int          `json:"port" db:"port"`
	Username         string       `json:"username" db:"username"`
	Password         string       `json:"password" db:"password"`
	RTSPPath         string       `json:"rtsp_path" db:"rtsp_path"`
	Status           CameraStatus `json:"status" db:"status"`
	IsActive         bool         `json:"is_active" db:"is_active"`
	ResolutionWidth  int          `json:"resolution_width" db:"resolution_width"`
	ResolutionHeight int          `json:"resolution_height" db:"resolution_height"`
	FPS              int          `json:"fps" db:"fps"`
	Location         string       `json:"location" db:"location"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
	LastConnection   *time.Time   `json:"last_connection,omitempty" db:"last_connection"`
}

// RTSPURL derives the connection URL from the stored fields.
// Credentials are embedded only when both username and password are set.
func (c *Camera) RTSPURL() string {
	if c.Username != "" && c.Password != "" {
		return fmt.Sprintf("rtsp://%s:%s@%s:%d%s", c.Username, c.Password, c.IPAddress, c.Port, c.RTSPPath)
	}
	return fmt.Sprintf("rtsp://%s:%d%s", c.IPAddress, c.Port, c.RTSPPath)
}
