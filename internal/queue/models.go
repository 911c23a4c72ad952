package queue

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// AssetStatus represents the lifecycle of a card asset.
type AssetStatus string

const (
	AssetOCRPending       AssetStatus = "OCR_PENDING"
	AssetOCRComplete      AssetStatus = "OCR_COMPLETE"
	AssetValuationPending AssetStatus = "VALUATION_PENDING"
	AssetReady            AssetStatus = "READY"
	AssetError            AssetStatus = "ERROR"
)

var allAssetStatuses = []AssetStatus{
	AssetOCRPending,
	AssetOCRComplete,
	AssetValuationPending,
	AssetReady,
	AssetError,
}

// AllAssetStatuses returns asset statuses in pipeline order.
func AllAssetStatuses() []AssetStatus {
	out := make([]AssetStatus, len(allAssetStatuses))
	copy(out, allAssetStatuses)
	return out
}

// BatchStatus represents the aggregate state of a batch.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "PROCESSING"
	BatchReady      BatchStatus = "READY"
)

// JobType names the pipeline stage a job runs.
type JobType string

const (
	JobOCR       JobType = "OCR"
	JobClassify  JobType = "CLASSIFY"
	JobValuation JobType = "VALUATION"
)

// JobStatus represents the lifecycle of a processing job.
type JobStatus string

const (
	JobQueued   JobStatus = "QUEUED"
	JobRunning  JobStatus = "RUNNING"
	JobComplete JobStatus = "COMPLETE"
	JobFailed   JobStatus = "FAILED"
)

var allJobStatuses = []JobStatus{JobQueued, JobRunning, JobComplete, JobFailed}

// AllJobStatuses returns job statuses in lifecycle order.
func AllJobStatuses() []JobStatus {
	out := make([]JobStatus, len(allJobStatuses))
	copy(out, allJobStatuses)
	return out
}

// ParseJobStatus converts a user-supplied string into a JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range allJobStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the job status can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobComplete || s == JobFailed
}

// Asset is one photographed card moving through the pipeline.
type Asset struct {
	ID                 int64
	BatchID            int64
	Status             AssetStatus
	ImageRef           string
	OCRText            string
	OCRRaw             string
	OCRConfidence      float64
	AttributesJSON     string
	ClassificationJSON string
	PlayerID           *int64
	MatchConfidence    float64
	MatchJSON          string
	ValuationAmount    float64
	ValuationCurrency  string
	ValuationSource    string
	ValuationLink      string
	EbaySoldURL        string
	MarketplaceURL     string
	ThumbnailRef       string
	ErrorMessage       string
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FileName returns the base name of the image reference.
func (a *Asset) FileName() string {
	if a == nil {
		return ""
	}
	ref := strings.TrimSpace(a.ImageRef)
	if ref == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(ref, "\\", "/"))
}

// ClearError resets the error message for a successful transition.
func (a *Asset) ClearError() {
	a.ErrorMessage = ""
}

// Fail moves the asset to ERROR with a non-empty message.
func (a *Asset) Fail(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "stage failed"
	}
	a.Status = AssetError
	a.ErrorMessage = message
}

// Validate checks that the error message is set exactly when the asset is in ERROR.
func (a *Asset) Validate() error {
	hasMessage := strings.TrimSpace(a.ErrorMessage) != ""
	if a.Status == AssetError && !hasMessage {
		return fmt.Errorf("asset %d: status ERROR requires an error message", a.ID)
	}
	if a.Status != AssetError && hasMessage {
		return fmt.Errorf("asset %d: error message set while status is %s", a.ID, a.Status)
	}
	return nil
}

// Batch groups assets uploaded together.
type Batch struct {
	ID             int64
	Name           string
	TotalCount     int
	ProcessedCount int
	Status         BatchStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Job is a queued unit of work binding an asset to a stage.
type Job struct {
	ID           int64
	AssetID      int64
	Type         JobType
	Status       JobStatus
	Payload      string
	Attempts     int
	ErrorMessage string
	ClaimedBy    string
	ClaimedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Team is a roster team used by identity matching.
type Team struct {
	ID           int64
	Name         string
	Abbreviation string
	Sport        string
}

// Player is a roster entry used by identity matching.
type Player struct {
	ID       int64
	FullName string
	TeamID   *int64
	TeamName string
	Sport    string
	AltNames []string
}
