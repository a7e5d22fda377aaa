package dto

type CountResponse struct {
	ID              int64   `json:"id"`
	CameraID        *int64  `json:"camera_id,omitempty"`
	RoomID          *int64  `json:"room_id,omitempty"`
	PeopleCount     int     `json:"people_count"`
	FramesProcessed int     `json:"frames_processed"`
	InferenceTimeMs float64 `json:"inference_time_ms"`
	SnapshotURL     string  `json:"snapshot_url,omitempty"`
	Timestamp       string  `json:"timestamp"`
}

type CountListResponse struct {
	Counts []CountResponse `json:"counts"`
	Total  int             `json:"total"`
}

// WSEvent is the message the hub broadcasts when a reading is recorded.
type WSEvent struct {
	Type string        `json:"type"`
	Kind string        `json:"kind"`
	Data CountResponse `json:"data"`
}
