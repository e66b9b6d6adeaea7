package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/errors"
	"github.com/Deven-0012/Cloud-281/internal/logging"
)

// HTTPClassifier calls a remote inference endpoint over HTTP. The caller's
// timeout is imposed per request; a model that is slow or unreachable is a
// transient condition and the queue layer redrives the job.
type HTTPClassifier struct {
	endpoint     string
	modelVersion string
	taxonomy     map[string]bool
	client       *http.Client
	logger       *slog.Logger
}

// NewHTTPClassifier creates a classifier client from settings.
func NewHTTPClassifier(settings *conf.ClassifierSettings) *HTTPClassifier {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	taxonomy := make(map[string]bool, len(settings.Taxonomy))
	for _, label := range settings.Taxonomy {
		taxonomy[label] = true
	}

	logger := logging.ForService("classifier")
	if logger == nil {
		logger = slog.Default().With("service", "classifier")
	}

	return &HTTPClassifier{
		endpoint:     settings.Endpoint,
		modelVersion: settings.ModelVersion,
		taxonomy:     taxonomy,
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// inferenceResponse is the wire shape returned by the scoring service.
type inferenceResponse struct {
	ModelVersion string       `json:"model_version"`
	Predictions  []Prediction `json:"predictions"`
}

// Classify sends the capture to the inference endpoint and validates the
// returned predictions against the configured taxonomy.
func (c *HTTPClassifier) Classify(ctx context.Context, audio []byte) (*Result, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryClassifier).
			Build()
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.client.Do(req)
	if err != nil {
		category := errors.CategoryNetwork
		if ctx.Err() != nil || isTimeout(err) {
			category = errors.CategoryTimeout
		}
		return nil, errors.New(err).
			Component("classifier").
			Category(category).
			Context("endpoint", c.endpoint).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.Newf("inference endpoint returned %d", resp.StatusCode).
			Component("classifier").
			Category(errors.CategoryNetwork).
			Context("endpoint", c.endpoint).
			Build()
	}
	if resp.StatusCode != http.StatusOK {
		// 4xx means the capture itself was rejected; retrying won't help.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("inference endpoint rejected capture: %d %s", resp.StatusCode, body).
			Component("classifier").
			Category(errors.CategoryClassifier).
			Build()
	}

	var wire inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryClassifier).
			Build()
	}

	if err := c.validate(wire.Predictions); err != nil {
		return nil, err
	}

	version := wire.ModelVersion
	if version == "" {
		version = c.modelVersion
	}

	result := &Result{
		ModelVersion: version,
		Predictions:  wire.Predictions,
		Elapsed:      time.Since(start),
	}

	c.logger.Debug("capture scored",
		"predictions", len(result.Predictions),
		"model_version", version,
		"elapsed_ms", result.Elapsed.Milliseconds())

	return result, nil
}

// validate rejects predictions outside the configured taxonomy or the [0,1]
// confidence range. A model emitting either is misconfigured, not flaky.
func (c *HTTPClassifier) validate(predictions []Prediction) error {
	for i := range predictions {
		p := &predictions[i]
		if p.Confidence < 0 || p.Confidence > 1 {
			return errors.Newf("confidence %f out of range for label %s", p.Confidence, p.Label).
				Component("classifier").
				Category(errors.CategoryValidation).
				Build()
		}
		if len(c.taxonomy) > 0 && !c.taxonomy[p.Label] {
			return errors.Newf("label %q not in taxonomy", p.Label).
				Component("classifier").
				Category(errors.CategoryValidation).
				Build()
		}
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

var _ Classifier = (*HTTPClassifier)(nil)
