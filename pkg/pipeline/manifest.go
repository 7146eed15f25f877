package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/scoreframes/pkg/buildinfo"
	"github.com/matzehuels/scoreframes/pkg/errors"
)

// Manifest describes a completed run. Frame paths are relative to the
// workspace root so the directory can be moved or served as is.
type Manifest struct {
	RunID     string         `json:"run_id"`
	CreatedAt time.Time      `json:"created_at"`
	Build     buildinfo.Info `json:"build"`
	ScoreID   string         `json:"score_id,omitempty"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Polarity  string         `json:"polarity"`
	Frames    []Frame        `json:"frames"`
	Skipped   []Skip         `json:"skipped"`
	Options   Options        `json:"options"`
}

func newManifest(res *Result, opts Options, scoreID string) *Manifest {
	m := &Manifest{
		RunID:     res.RunID,
		CreatedAt: time.Now().UTC(),
		Build:     buildinfo.Current(),
		ScoreID:   scoreID,
		Width:     opts.Width,
		Height:    opts.Height,
		Polarity:  string(opts.Polarity),
		Frames:    make([]Frame, 0, len(res.Frames)),
		Skipped:   append([]Skip{}, res.Skipped...),
		Options:   opts,
	}
	for _, f := range res.Frames {
		if rel, err := filepath.Rel(res.Workspace.Root, f.Path); err == nil {
			f.Path = filepath.ToSlash(rel)
		}
		m.Frames = append(m.Frames, f)
	}
	return m
}

// WriteManifest writes m as indented JSON.
func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode manifest")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeWorkspace, err, "write %s", path)
	}
	return nil
}

// ReadManifest loads the manifest of the run rooted at dir.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, err, "parse %s", path)
	}
	return &m, nil
}
