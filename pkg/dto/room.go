package dto

type CreateRoomRequest struct {
	Name     string `json:"name" binding:"required"`
	CameraIP string `json:"camera_ip" binding:"required"`
	IsActive *bool  `json:"is_active"`
}

type UpdateRoomRequest struct {
	Name     *string `json:"name"`
	CameraIP *string `json:"camera_ip"`
	IsActive *bool   `json:"is_active"`
}

type RoomResponse struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	CameraIP             string `json:"camera_ip"`
	IsActive             bool   `json:"is_active"`
	Status               string `json:"status"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
	LastUpdated          string `json:"last_updated,omitempty"`
	LatestCount          int    `json:"latest_count"`
	LatestCountTimestamp string `json:"latest_count_timestamp,omitempty"`
}

type RoomListResponse struct {
	Rooms []RoomResponse `json:"rooms"`
	Total int            `json:"total"`
}
