package http

import (
	"time"

	"github.com/sawpanic/viralrisk/internal/application"
	"github.com/sawpanic/viralrisk/internal/config/risk"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Details   []string  `json:"details,omitempty"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse reports whether the engine can serve predictions
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	Version       string            `json:"version,omitempty"`
	Uptime        string            `json:"uptime"`
	Goroutines    int               `json:"goroutines"`
	ConfigVersion string            `json:"config_version,omitempty"`
	Providers     map[string]string `json:"providers,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// BatchPredictRequest is the body of POST /predict/batch
type BatchPredictRequest struct {
	Items []application.PredictRequest `json:"items"`
}

// BatchResponse summarises a batch run
type BatchResponse struct {
	Results   []application.BatchResult `json:"results"`
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
}

// UpdateConfigRequest is the body of PATCH /config
type UpdateConfigRequest struct {
	Changes     risk.Partial `json:"changes"`
	Description string       `json:"description"`
	Author      string       `json:"author"`
}

// RollbackRequest is the body of POST /config/rollback
type RollbackRequest struct {
	VersionID string `json:"versionId"`
	Author    string `json:"author"`
}

// VersionResponse acknowledges a configuration write
type VersionResponse struct {
	VersionID string `json:"versionId"`
	Status    string `json:"status"`
}

// HistoryResponse lists version ids oldest first
type HistoryResponse struct {
	Versions []string `json:"versions"`
}

// StartABTestRequest is the body of POST /abtests
type StartABTestRequest struct {
	Name         string      `json:"name"`
	ConfigA      risk.Config `json:"configA"`
	ConfigB      risk.Config `json:"configB"`
	TrafficSplit float64     `json:"trafficSplit"`
}

// ABTestCreated acknowledges a started test
type ABTestCreated struct {
	TestID string `json:"testId"`
}

// ABTestListResponse lists test ids
type ABTestListResponse struct {
	Tests []string `json:"tests"`
}

// ResolveResponse reports the arm chosen for a subject
type ResolveResponse struct {
	TestID    string      `json:"testId"`
	SubjectID string      `json:"subjectId"`
	Arm       string      `json:"arm"`
	Config    risk.Config `json:"config"`
}

// TrainRequest is the body of POST /train. Missing bounds default to the
// configured lookback window ending now.
type TrainRequest struct {
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	MinEngagement   *int64    `json:"minEngagement,omitempty"`
	ValidationSplit float64   `json:"validationSplit,omitempty"`
	Publish         bool      `json:"publish"`
	Author          string    `json:"author,omitempty"`
}
