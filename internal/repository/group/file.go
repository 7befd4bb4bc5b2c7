package group

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

const (
	filePrefix = "group_"
	fileSuffix = ".json"
)

// FilePersister stores one JSON document per group in a directory.
type FilePersister struct {
	dir string
}

// NewFilePersister creates the directory if needed.
func NewFilePersister(dir string) (*FilePersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config dir %s: %w", dir, err)
	}

	return &FilePersister{dir: dir}, nil
}

func (p *FilePersister) path(groupID int64) string {
	return filepath.Join(p.dir, filePrefix+strconv.FormatInt(groupID, 10)+fileSuffix)
}

// Save writes cfg atomically: a temp file is renamed over the previous version.
func (p *FilePersister) Save(_ context.Context, cfg model.GroupConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("save: failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(p.dir, ".group-*.tmp")
	if err != nil {
		return fmt.Errorf("save: failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save: failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save: failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), p.path(cfg.GroupID)); err != nil {
		return fmt.Errorf("save: failed to replace config: %w", err)
	}

	return nil
}

// Delete removes the group's file. A missing file is not an error.
func (p *FilePersister) Delete(_ context.Context, groupID int64) error {
	if err := os.Remove(p.path(groupID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete: failed to remove config: %w", err)
	}

	return nil
}

// LoadAll reads every group file. Unreadable or invalid files are logged and skipped.
func (p *FilePersister) LoadAll(_ context.Context) ([]model.GroupConfig, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("load: failed to read config dir: %w", err)
	}

	cfgs := make([]model.GroupConfig, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}

		id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix), 10, 64)
		if err != nil {
			zlog.Logger.Warn().Str("file", name).Msg("skipping group config with malformed name")
			continue
		}

		cfg, err := readConfig(filepath.Join(p.dir, name), id)
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("file", name).Msg("skipping unreadable group config")
			continue
		}

		cfgs = append(cfgs, cfg)
	}

	return cfgs, nil
}

// readConfig decodes a group file over the defaults, so fields missing from
// older files keep sensible values.
func readConfig(path string, groupID int64) (model.GroupConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.GroupConfig{}, err
	}

	cfg := model.NewGroupConfig(groupID)
	if err := json.Unmarshal(data, &cfg); err != nil {
		return model.GroupConfig{}, err
	}
	cfg.GroupID = groupID

	return cfg, nil
}
