package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodcell-ai-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestClient_Classify(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/classify", r.URL.Path)
		buf := make([]byte, 16)
		n, _ := r.Body.Read(buf)
		gotBody = buf[:n]
		json.NewEncoder(w).Encode(inferenceResponse{
			Predictions: [][]float64{
				{0.9, 0.02, 0.02, 0.02, 0.02, 0.01, 0.01},
				{0.02, 0.9, 0.02, 0.02, 0.02, 0.01, 0.01},
			},
		})
	}))
	defer server.Close()

	client := NewClient(domain.ClassifierConfig{URL: server.URL, Timeout: 5 * time.Second}, testLogger())

	predictions, err := client.Classify(context.Background(), []byte("imagebytes"))
	require.NoError(t, err)
	require.Len(t, predictions, 2)
	assert.Equal(t, []byte("imagebytes"), gotBody)

	class, score := predictions[0].ArgMax()
	assert.Equal(t, int(domain.ClassNeutrophil), class)
	assert.Equal(t, 0.9, score)
}

func TestClient_ClassifyRejectsWrongVectorWidth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(inferenceResponse{
			Predictions: [][]float64{{0.5, 0.5}},
		})
	}))
	defer server.Close()

	client := NewClient(domain.ClassifierConfig{URL: server.URL, Timeout: 5 * time.Second}, testLogger())

	_, err := client.Classify(context.Background(), []byte("image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 7")
}

func TestClient_ClassifyServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(inferenceResponse{Error: "model not loaded"})
	}))
	defer server.Close()

	client := NewClient(domain.ClassifierConfig{URL: server.URL, Timeout: 5 * time.Second}, testLogger())

	_, err := client.Classify(context.Background(), []byte("image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestMockClassifier_DeterministicTally(t *testing.T) {
	mock := NewMockClassifier(testLogger())

	first, err := mock.Classify(context.Background(), []byte("anything"))
	require.NoError(t, err)
	second, err := mock.Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	votes := make(map[int]int)
	for _, p := range first {
		class, score := p.ArgMax()
		votes[class]++
		assert.GreaterOrEqual(t, score, 0.88)
	}

	assert.Equal(t, 68, votes[int(domain.ClassNeutrophil)])
	assert.Equal(t, 22, votes[int(domain.ClassLymphocyte)])
	assert.Equal(t, 7, votes[int(domain.ClassMonocyte)])
	assert.Equal(t, 2, votes[int(domain.ClassEosinophil)])
	assert.Equal(t, 1, votes[int(domain.ClassBasophil)])
	assert.Equal(t, 160, votes[int(domain.ClassPlatelet)])
	assert.Equal(t, 153, votes[int(domain.ClassRBC)])
}
