package models

import "time"

// Count is one aggregate people-count reading for a camera or a room.
// Exactly one of CameraID and RoomID is set. Rows are append-only.
type Count struct {
	ID              int64     `json:"id" db:"id"`
	CameraID        *int64    `json:"camera_id,omitempty" db:"camera_id"`
	RoomID          *int64    `json:"room_id,omitempty" db:"room_id"`
	PeopleCount     int       `json:"people_count" db:"people_count"`
	FramesProcessed int       `json:"frames_processed" db:"frames_processed"`
	InferenceTimeMs float64   `json:"inference_time_ms" db:"inference_time_ms"`
	SnapshotKey     string    `json:"snapshot_key,omitempty" db:"snapshot_key"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
}

// DeviceKind tags which variant of device a worker or count belongs to.
type DeviceKind string

const (
	KindCamera DeviceKind = "camera"
	KindRoom   DeviceKind = "room"
)
