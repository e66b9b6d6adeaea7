package classifier

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/errors"
)

func newTestClassifier(t *testing.T) *HTTPClassifier {
	t.Helper()

	c := NewHTTPClassifier(&conf.ClassifierSettings{
		Endpoint:      "http://model.test/classify",
		Timeout:       time.Second,
		ModelVersion:  "v2",
		Taxonomy:      []string{"siren", "engine_fault", "glass_break"},
		MinConfidence: 0.1,
	})
	httpmock.ActivateNonDefault(c.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestClassifyParsesPredictions(t *testing.T) {
	c := newTestClassifier(t)

	httpmock.RegisterResponder(http.MethodPost, "http://model.test/classify",
		httpmock.NewStringResponder(200, `{
			"model_version": "v3",
			"predictions": [
				{"label": "siren", "confidence": 0.95, "window_start": 0, "window_end": 3},
				{"label": "engine_fault", "confidence": 0.42, "window_start": 3, "window_end": 6}
			]
		}`))

	result, err := c.Classify(context.Background(), []byte("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "v3", result.ModelVersion)
	require.Len(t, result.Predictions, 2)
	assert.Equal(t, "siren", result.Predictions[0].Label)
	assert.InDelta(t, 0.95, result.Predictions[0].Confidence, 1e-9)
	assert.Equal(t, 3, result.Predictions[1].WindowStart)
}

func TestClassifyServerErrorIsRetryable(t *testing.T) {
	c := newTestClassifier(t)

	httpmock.RegisterResponder(http.MethodPost, "http://model.test/classify",
		httpmock.NewStringResponder(503, "overloaded"))

	_, err := c.Classify(context.Background(), []byte("RIFF"))
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}

func TestClassifyBadRequestIsPermanent(t *testing.T) {
	c := newTestClassifier(t)

	httpmock.RegisterResponder(http.MethodPost, "http://model.test/classify",
		httpmock.NewStringResponder(422, "unsupported codec"))

	_, err := c.Classify(context.Background(), []byte("not audio"))
	require.Error(t, err)
	assert.False(t, errors.IsRetryable(err))
}

func TestClassifyRejectsUnknownLabel(t *testing.T) {
	c := newTestClassifier(t)

	httpmock.RegisterResponder(http.MethodPost, "http://model.test/classify",
		httpmock.NewStringResponder(200, `{"predictions": [{"label": "dubstep", "confidence": 0.9}]}`))

	_, err := c.Classify(context.Background(), []byte("RIFF"))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestClassifyRejectsOutOfRangeConfidence(t *testing.T) {
	c := newTestClassifier(t)

	httpmock.RegisterResponder(http.MethodPost, "http://model.test/classify",
		httpmock.NewStringResponder(200, `{"predictions": [{"label": "siren", "confidence": 1.7}]}`))

	_, err := c.Classify(context.Background(), []byte("RIFF"))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestClassifyFallsBackToConfiguredModelVersion(t *testing.T) {
	c := newTestClassifier(t)

	httpmock.RegisterResponder(http.MethodPost, "http://model.test/classify",
		httpmock.NewStringResponder(200, `{"predictions": []}`))

	result, err := c.Classify(context.Background(), []byte("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "v2", result.ModelVersion)
}
