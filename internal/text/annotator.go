// Package text appends a group's signature to outgoing captions and messages.
package text

import (
	"strings"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

const separator = "\n\n"

// Annotator adds the configured text suffix. It holds no state.
type Annotator struct{}

// New returns an Annotator.
func New() *Annotator { return &Annotator{} }

// Apply returns text with the group's suffix appended after a blank line,
// and whether anything was added.
func (Annotator) Apply(text string, cfg model.GroupConfig) (string, bool) {
	if !cfg.CaptionActive() {
		return text, false
	}

	suffix := strings.TrimSpace(cfg.TextContent)
	if strings.TrimSpace(text) == "" {
		return suffix, true
	}

	return text + separator + suffix, true
}
