package dto

type CreateCameraRequest struct {
	Name             string `json:"name" binding:"required"`
	IPAddress        string `json:"ip_address" binding:"required"`
	Port             int    `json:"port"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	RTSPPath         string `json:"rtsp_path"`
	IsActive         *bool  `json:"is_active"`
	ResolutionWidth  int    `json:"resolution_width"`
	ResolutionHeight int    `json:"resolution_height"`
	FPS              int    `json:"fps"`
	Location         string `json:"location"`
}

type UpdateCameraRequest struct {
	Name      *string `json:"name"`
	IPAddress *string `json:"ip_address"`
	Port      *int    `json:"port"`
	Username  *string `json:"username"`
	Password  *string `json:"password"`
	RTSPPath  *string `json:"rtsp_path"`
	IsActive  *bool   `json:"is_active"`
	Location  *string `json:"location"`
	FPS       *int    `json:"fps"`
}

type CameraResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	IPAddress        string `json:"ip_address"`
	Port             int    `json:"port"`
	RTSPPath         string `json:"rtsp_path"`
	RTSPURL          string `json:"rtsp_url"`
	Status           string `json:"status"`
	IsActive         bool   `json:"is_active"`
	ResolutionWidth  int    `json:"resolution_width"`
	ResolutionHeight int    `json:"resolution_height"`
	FPS              int    `json:"fps"`
	Location         string `json:"location,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
	LastConnection   string `json:"last_connection,omitempty"`
}

type CameraListResponse struct {
	Cameras []CameraResponse `json:"cameras"`
	Total   int              `json:"total"`
}

// ConnectRequest carries either an existing camera id or the parameters to
// find-or-create one by IP.
type ConnectRequest struct {
	CameraID *int64 `json:"camera_id"`
	IP       string `json:"ip"`
	Name     string `json:"name"`
	Port     int    `json:"port"`
	RTSPPath string `json:"rtsp_path"`
}

type ConnectResponse struct {
	Status     string `json:"status"`
	CameraID   int64  `json:"camera_id"`
	CameraName string `json:"camera_name"`
	IPAddress  string `json:"ip_address"`
	Message    string `json:"message"`
}
