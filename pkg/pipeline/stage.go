package pipeline

import (
	"fmt"

	"github.com/matzehuels/scoreframes/pkg/score"
)

// Stage is a step of the per-range state machine.
type Stage int

const (
	StageInit Stage = iota
	StageSegmenting
	StageRendering
	StageFiltering
	StageNormalizing
	StageCropping
	StageEnhancing
	StageAnnotating
	StageBinarizing
	StageDone
)

var stageNames = [...]string{
	StageInit:        "Init",
	StageSegmenting:  "Segmenting",
	StageRendering:   "Rendering",
	StageFiltering:   "Filtering",
	StageNormalizing: "Normalizing",
	StageCropping:    "Cropping",
	StageEnhancing:   "Enhancing",
	StageAnnotating:  "Annotating",
	StageBinarizing:  "Binarizing",
	StageDone:        "Done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError reports the range and stage at which a run aborted. It wraps
// the underlying coded error, so errors.Is(err, code) keeps working.
type StageError struct {
	Range score.MeasureRange
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("measures %s: %s: %v", e.Range, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

func stageErr(r score.MeasureRange, s Stage, err error) error {
	return &StageError{Range: r, Stage: s, Err: err}
}
