package models

import "testing"

func TestCameraRTSPURL(t *testing.T) {
	tests := []struct {
		name   string
		camera Camera
		want   string
	}{
		{
			name: "without credentials",
			camera: Camera{
				IPAddress: "192.168.1.50",
				Port:      554,
				RTSPPath:  "/stream1",
			},
			want: "rtsp://192.168.1.50:554/stream1",
		},
		{
			name: "with credentials",
			camera: Camera{
				IPAddress: "192.168.1.50",
				Port:      554,
				Username:  "u",
				Password:  "p",
				RTSPPath:  "/stream1",
			},
			want: "rtsp://u:p@192.168.1.50:554/stream1",
		},
		{
			name: "username without password omits credentials",
			camera: Camera{
				IPAddress: "10.0.0.5",
				Port:      8554,
				Username:  "admin",
				RTSPPath:  "/live",
			},
			want: "rtsp://10.0.0.5:8554/live",
		},
		{
			name: "empty path",
			camera: Camera{
				IPAddress: "10.0.0.5",
				Port:      554,
			},
			want: "rtsp://10.0.0.5:554",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.camera.RTSPURL(); got != tt.want {
				t.Errorf("RTSPURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
