package workflow

import (
	"cardflow/internal/queue"
	"cardflow/internal/stage"
)

// StageSet bundles the concrete stage handlers the manager dispatches to.
// A nil handler leaves its job type unsupported.
type StageSet struct {
	OCR       stage.Handler
	Classify  stage.Handler
	Valuation stage.Handler
}

func (s StageSet) byType() map[queue.JobType]stage.Handler {
	handlers := make(map[queue.JobType]stage.Handler, 3)
	if s.OCR != nil {
		handlers[queue.JobOCR] = s.OCR
	}
	if s.Classify != nil {
		handlers[queue.JobClassify] = s.Classify
	}
	if s.Valuation != nil {
		handlers[queue.JobValuation] = s.Valuation
	}
	return handlers
}

// stageOrder is the pipeline order used when reporting stage health.
var stageOrder = []queue.JobType{queue.JobOCR, queue.JobClassify, queue.JobValuation}
