package models

import "time"

type RoomStatus string

const (
	RoomStatusActive   RoomStatus = "active"
	RoomStatusInactive RoomStatus = "inactive"
	RoomStatusOffline  RoomStatus = "offline"
)

type Room struct {
	ID          int64      `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	CameraIP    string     `json:"camera_ip" db:"camera_ip"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	Status      RoomStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	LastUpdated *time.Time `json:"last_updated,omitempty" db:"last_updated"`
}
