package processor

import (
	"fmt"
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// fontSource parses the configured TTF once and hands out fresh faces,
// since a truetype face must not be shared between goroutines.
type fontSource struct {
	path string

	once sync.Once
	font *truetype.Font
	err  error
}

func newFontSource(path string) *fontSource {
	return &fontSource{path: path}
}

func (s *fontSource) load() {
	if s.path != "" {
		data, err := os.ReadFile(s.path)
		if err == nil {
			s.font, err = truetype.Parse(data)
		}
		if err == nil {
			return
		}
		zlog.Logger.Warn().Err(err).Str("font", s.path).Msg("failed to load font, using embedded Go Regular")
	}

	s.font, s.err = truetype.Parse(goregular.TTF)
}

// Face returns a new face of the given point size.
func (s *fontSource) Face(size int) (font.Face, error) {
	s.once.Do(s.load)
	if s.err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", s.err)
	}

	return truetype.NewFace(s.font, &truetype.Options{Size: float64(size)}), nil
}
