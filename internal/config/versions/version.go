package versions

import (
	"fmt"
	"strings"
	"time"

	"github.com/sawpanic/viralrisk/internal/config/risk"
)

// State is the lifecycle position of a configuration version
type State string

const (
	StateProposed   State = "proposed"
	StateValidated  State = "validated"
	StateActive     State = "active"
	StateSuperseded State = "superseded"
)

// Performance holds validation metrics attached to trainer-produced versions
type Performance struct {
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	MacroF1        float64 `json:"macroF1"`
	ValidationSize int     `json:"validationSize"`
}

// ConfigVersion is an identified, immutable snapshot of a risk configuration.
// Only the activation fields change after publication.
type ConfigVersion struct {
	ID          string       `json:"id"`
	Config      risk.Config  `json:"config"`
	CreatedAt   time.Time    `json:"createdAt"`
	CreatedBy   string       `json:"createdBy"`
	Description string       `json:"description"`
	Performance *Performance `json:"performance,omitempty"`
	IsActive    bool         `json:"isActive"`
	State       State        `json:"state"`
	ActivatedAt *time.Time   `json:"activatedAt,omitempty"`
	ActivatedBy string       `json:"activatedBy,omitempty"`
}

func (v ConfigVersion) clone() ConfigVersion {
	out := v
	out.Config = v.Config.Clone()
	if v.Performance != nil {
		p := *v.Performance
		out.Performance = &p
	}
	return out
}

const (
	idPrefix = "v1-"
	idLayout = "20060102T150405.000000000Z"
)

// nextVersionID returns a timestamp id strictly greater than last
func nextVersionID(now time.Time, last string) string {
	t := now.UTC()
	if last != "" {
		if prev, err := time.Parse(idLayout, strings.TrimPrefix(last, idPrefix)); err == nil && !t.After(prev) {
			t = prev.Add(time.Nanosecond)
		}
	}
	return idPrefix + t.Format(idLayout)
}

// NotFoundError reports an unknown version or test id
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

const (
	KindVersion = "config version"
	KindABTest  = "ab test"
)
