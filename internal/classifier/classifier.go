// Package classifier wraps the external sound scoring model. The pipeline
// treats it as an opaque function from audio bytes to ranked label
// predictions; feature extraction and model internals live elsewhere.
package classifier

import (
	"context"
	"time"
)

// Prediction is one scored label for one analysis window of a capture.
type Prediction struct {
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	WindowStart int     `json:"window_start"` // seconds into the capture
	WindowEnd   int     `json:"window_end"`
}

// Result carries the predictions for a capture plus scoring metadata.
type Result struct {
	ModelVersion string        `json:"model_version"`
	Predictions  []Prediction  `json:"predictions"`
	Elapsed      time.Duration `json:"-"`
}

// Classifier scores an audio capture.
type Classifier interface {
	Classify(ctx context.Context, audio []byte) (*Result, error)
}
