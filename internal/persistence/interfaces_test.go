package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeRange_Validate(t *testing.T) {
	base := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		tr      TimeRange
		wantErr bool
	}{
		{name: "valid_range", tr: TimeRange{From: base, To: base.Add(time.Hour)}},
		{name: "same_time", tr: TimeRange{From: base, To: base}},
		{name: "zero_times", tr: TimeRange{}},
		{name: "inverted", tr: TimeRange{From: base, To: base.Add(-time.Minute)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tr.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnalyzedItem_Engagement(t *testing.T) {
	item := AnalyzedItem{Likes: 10, Shares: 3, Comments: 2}
	assert.Equal(t, int64(15), item.Engagement())
}
