package model

import "time"

// Stats is a point-in-time snapshot of the processing counters.
type Stats struct {
	TotalProcessed  int64     `json:"total_processed"`
	ImagesProcessed int64     `json:"images_processed"`
	VideosProcessed int64     `json:"videos_processed"`
	TextsProcessed  int64     `json:"texts_processed"`
	Errors          int64     `json:"errors"`
	StartTime       time.Time `json:"start_time"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
}

// Capabilities reports which media backends are usable on this host.
type Capabilities struct {
	Image      bool `json:"image"`
	Transcoder bool `json:"transcoder"`
}
