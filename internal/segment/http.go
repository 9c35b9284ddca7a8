package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"wordgames/internal/config"
	"wordgames/internal/observability"
	contextutils "wordgames/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

type segmentRequest struct {
	Text string `json:"text"`
}

type segmentResponse struct {
	Words []string `json:"words"`
}

// HTTPSegmenter calls an external segmentation service.
// The service accepts {"text": "..."} and answers {"words": [...]}.
type HTTPSegmenter struct {
	url        string
	client     *http.Client
	exceptions *Exceptions
	logger     *observability.Logger
}

// NewHTTPSegmenter creates a traced client for the configured service
func NewHTTPSegmenter(cfg config.SegmenterConfig, exceptions *Exceptions, logger *observability.Logger) *HTTPSegmenter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultSegmenterTimeout
	}
	return &HTTPSegmenter{
		url: cfg.URL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		exceptions: exceptions,
		logger:     logger,
	}
}

// Segment implements Segmenter
func (s *HTTPSegmenter) Segment(ctx context.Context, text string) (result0 []string, err error) {
	ctx, span := observability.TraceFunction(ctx, "segment", "http_segment", attribute.Int("text.length", len(text)))
	defer observability.FinishSpan(span, &err)

	body, err := json.Marshal(segmentRequest{Text: text})
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrSegmentationFailed, "failed to encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrSegmentationFailed, "failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrSegmentationFailed, "segmentation service unreachable: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close segmentation response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, contextutils.WrapErrorf(contextutils.ErrSegmentationFailed, "segmentation service returned %d: %s", resp.StatusCode, string(snippet))
	}

	var decoded segmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrSegmentationFailed, "failed to decode segmentation response: %v", err)
	}

	words := s.exceptions.Apply(decoded.Words)
	span.SetAttributes(attribute.Int("words.count", len(words)))
	return words, nil
}
