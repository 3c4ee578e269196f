package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sawpanic/viralrisk/internal/domain/content"
)

// HTTPClient calls a classifier service exposing JSON endpoints:
//
//	POST {base}/sentiment {"text": ...} -> {"label": ..., "confidence": ...}
//	POST {base}/emotions  {"text": ...} -> {"emotions": [{"emotion": ..., "confidence": ...}]}
type HTTPClient struct {
	name      string
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewHTTPClient creates a classifier client
func NewHTTPClient(name, baseURL, userAgent string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		name:      name,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

type textRequest struct {
	Text string `json:"text"`
}

type emotionsResponse struct {
	Emotions []content.EmotionScore `json:"emotions"`
}

// AnalyzeSentiment implements SentimentProvider
func (c *HTTPClient) AnalyzeSentiment(ctx context.Context, text string) (content.SentimentResult, error) {
	var out content.SentimentResult
	if err := c.post(ctx, "/sentiment", text, &out); err != nil {
		return content.SentimentResult{}, err
	}

	out.Label = content.Sentiment(strings.ToLower(string(out.Label)))
	switch out.Label {
	case content.SentimentPositive, content.SentimentNeutral, content.SentimentNegative:
	default:
		return content.SentimentResult{}, &UpstreamProviderError{
			Provider: c.name,
			Type:     ErrTypeDecode,
			Err:      fmt.Errorf("unknown sentiment label %q", out.Label),
		}
	}
	out.Confidence = clampConfidence(out.Confidence)
	return out, nil
}

// AnalyzeEmotions implements EmotionProvider
func (c *HTTPClient) AnalyzeEmotions(ctx context.Context, text string) ([]content.EmotionScore, error) {
	var out emotionsResponse
	if err := c.post(ctx, "/emotions", text, &out); err != nil {
		return nil, err
	}
	for i := range out.Emotions {
		out.Emotions[i].Emotion = strings.ToLower(out.Emotions[i].Emotion)
		out.Emotions[i].Confidence = clampConfidence(out.Emotions[i].Confidence)
	}
	return out.Emotions, nil
}

func (c *HTTPClient) post(ctx context.Context, path, text string, dst interface{}) error {
	body, err := json.Marshal(textRequest{Text: text})
	if err != nil {
		return &UpstreamProviderError{Provider: c.name, Type: ErrTypeTransport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &UpstreamProviderError{Provider: c.name, Type: ErrTypeTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &UpstreamProviderError{Provider: c.name, Type: ErrTypeTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UpstreamProviderError{
			Provider:   c.name,
			Type:       ErrTypeHTTP,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d error: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &UpstreamProviderError{Provider: c.name, Type: ErrTypeDecode, Err: err}
	}
	return nil
}

func clampConfidence(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
