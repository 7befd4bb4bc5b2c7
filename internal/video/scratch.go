package video

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// scratchNames returns unique input and output paths for one transcode.
func scratchNames(dir string, groupID int64, now time.Time) (string, string) {
	stem := fmt.Sprintf("%d_%d_%s", groupID, now.UnixNano(), uuid.NewString()[:8])
	return filepath.Join(dir, "input_"+stem+".mp4"), filepath.Join(dir, "output_"+stem+".mp4")
}

func removeQuietly(paths ...string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

// SweepScratch deletes transcode leftovers from dir, e.g. after a crash,
// and returns how many files were removed.
func SweepScratch(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read scratch dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasPrefix(name, "input_") || strings.HasPrefix(name, "output_")) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		removed++
	}

	return removed, nil
}
