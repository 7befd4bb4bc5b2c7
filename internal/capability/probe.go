// Package capability detects, once at startup, which media backends this host can use.
package capability

import (
	"os/exec"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

// Result is the outcome of a probe.
type Result struct {
	model.Capabilities
	FFmpegPath string // absolute path of the transcoder, empty when unavailable
}

// Probe checks for the transcoder binary. Image support is compiled in.
func Probe(ffmpeg string) Result {
	res := Result{Capabilities: model.Capabilities{Image: true}}

	path, err := exec.LookPath(ffmpeg)
	if err != nil {
		zlog.Logger.Warn().
			Err(err).
			Str("ffmpeg", ffmpeg).
			Msg("transcoder not found, videos will pass through unmodified")
		return res
	}

	res.Transcoder = true
	res.FFmpegPath = path
	zlog.Logger.Info().Str("ffmpeg", path).Msg("transcoder available")

	return res
}
