package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/viralrisk/internal/config"
	"github.com/sawpanic/viralrisk/internal/domain/content"
)

func testProviderConfig() config.ProviderConfig {
	return config.ProviderConfig{
		RPS:       1000,
		Burst:     1000,
		TimeoutMS: 1000,
		Circuit: config.CircuitConfig{
			FailureThreshold: 3,
			HalfOpenRequests: 1,
			OpenTimeoutMS:    60000,
		},
		Enabled: true,
	}
}

func TestHTTPClient_Sentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sentiment", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "viralrisk-test", r.Header.Get("User-Agent"))

		var req textRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "this product is awful", req.Text)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"label":"NEGATIVE","confidence":1.4}`))
	}))
	defer srv.Close()

	c := NewHTTPClient("sentiment", srv.URL+"/", "viralrisk-test", time.Second)
	res, err := c.AnalyzeSentiment(context.Background(), "this product is awful")
	require.NoError(t, err)
	assert.Equal(t, content.SentimentNegative, res.Label)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestHTTPClient_Emotions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emotions", r.URL.Path)
		w.Write([]byte(`{"emotions":[{"emotion":"Anger","confidence":0.8},{"emotion":"joy","confidence":-0.2}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient("emotion", srv.URL, "", time.Second)
	res, err := c.AnalyzeEmotions(context.Background(), "grr")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, content.EmotionScore{Emotion: "anger", Confidence: 0.8}, res[0])
	assert.Equal(t, 0.0, res[1].Confidence)
}

func TestHTTPClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantType string
		status   int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model offline", http.StatusServiceUnavailable)
			},
			wantType: ErrTypeHTTP,
			status:   http.StatusServiceUnavailable,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"label":`))
			},
			wantType: ErrTypeDecode,
		},
		{
			name: "unknown label",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"label":"mixed","confidence":0.5}`))
			},
			wantType: ErrTypeDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewHTTPClient("sentiment", srv.URL, "", time.Second)
			_, err := c.AnalyzeSentiment(context.Background(), "x")

			var up *UpstreamProviderError
			require.ErrorAs(t, err, &up)
			assert.Equal(t, "sentiment", up.Provider)
			assert.Equal(t, tt.wantType, up.Type)
			assert.Equal(t, tt.status, up.StatusCode)
		})
	}
}

func TestGuard_OpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	failing := SentimentFunc(func(ctx context.Context, text string) (content.SentimentResult, error) {
		atomic.AddInt32(&calls, 1)
		return content.SentimentResult{}, errors.New("connection refused")
	})

	g := GuardedSentiment{Guard: NewGuard("sentiment", testProviderConfig()), Next: failing}

	for i := 0; i < 3; i++ {
		_, err := g.AnalyzeSentiment(context.Background(), "x")
		var up *UpstreamProviderError
		require.ErrorAs(t, err, &up)
		assert.Equal(t, ErrTypeTransport, up.Type)
	}
	assert.Equal(t, "open", g.Guard.State())

	_, err := g.AnalyzeSentiment(context.Background(), "x")
	var up *UpstreamProviderError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, ErrTypeCircuit, up.Type)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGuard_PassesThroughSuccess(t *testing.T) {
	ok := EmotionFunc(func(ctx context.Context, text string) ([]content.EmotionScore, error) {
		return []content.EmotionScore{{Emotion: "fear", Confidence: 0.4}}, nil
	})
	g := GuardedEmotion{Guard: NewGuard("emotion", testProviderConfig()), Next: ok}

	res, err := g.AnalyzeEmotions(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Equal(t, "closed", g.Guard.State())
	assert.Equal(t, "emotion", g.Guard.Name())
}

func TestGuard_KeepsUpstreamErrorDetail(t *testing.T) {
	inner := &UpstreamProviderError{Provider: "sentiment", Type: ErrTypeHTTP, StatusCode: 502, Err: errors.New("bad gateway")}
	g := NewGuard("sentiment", testProviderConfig())

	err := g.Do(context.Background(), func(context.Context) error { return inner })
	var up *UpstreamProviderError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, 502, up.StatusCode)
}

func TestGuard_CancelledWhileWaiting(t *testing.T) {
	cfg := testProviderConfig()
	cfg.RPS = 0.001
	cfg.Burst = 1
	g := NewGuard("sentiment", cfg)

	require.NoError(t, g.Do(context.Background(), func(context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := g.Do(ctx, func(context.Context) error { return nil })

	var up *UpstreamProviderError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, ErrTypeRateLimit, up.Type)
}

func TestGuard_ReportsStateChanges(t *testing.T) {
	g := NewGuard("emotion", testProviderConfig())
	var states []string
	g.OnStateChange(func(provider, state string) {
		assert.Equal(t, "emotion", provider)
		states = append(states, state)
	})

	for i := 0; i < 3; i++ {
		_ = g.Do(context.Background(), func(context.Context) error { return errors.New("timeout") })
	}
	assert.Equal(t, []string{"open"}, states)
}

func TestUpstream(t *testing.T) {
	err := Upstream("sentiment", errors.New("boom"))
	var up *UpstreamProviderError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, ErrTypeTransport, up.Type)

	inner := &UpstreamProviderError{Provider: "emotion", Type: ErrTypeDecode, Err: errors.New("bad json")}
	assert.Same(t, inner, Upstream("sentiment", inner))
}
