package watermark

import (
	"time"

	"go.uber.org/atomic"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

// stats holds process-wide counters. Only the Service mutates them.
type stats struct {
	total  atomic.Int64
	images atomic.Int64
	videos atomic.Int64
	texts  atomic.Int64
	errors atomic.Int64
	start  time.Time
}

func newStats(start time.Time) *stats {
	return &stats{start: start}
}

func (s *stats) image() { s.images.Inc(); s.total.Inc() }
func (s *stats) video() { s.videos.Inc(); s.total.Inc() }
func (s *stats) text()  { s.texts.Inc(); s.total.Inc() }
func (s *stats) fail()  { s.errors.Inc() }

func (s *stats) snapshot(now time.Time) model.Stats {
	return model.Stats{
		TotalProcessed:  s.total.Load(),
		ImagesProcessed: s.images.Load(),
		VideosProcessed: s.videos.Load(),
		TextsProcessed:  s.texts.Load(),
		Errors:          s.errors.Load(),
		StartTime:       s.start,
		UptimeSeconds:   now.Sub(s.start).Seconds(),
	}
}
