package detect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Detect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req detectRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		assert.NoError(t, err)
		assert.Equal(t, "room-1", req.RoomID)
		assert.Equal(t, 75.0, req.ConfidenceThreshold)
		assert.Equal(t, []byte("frame-data"), req.Image)

		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(detectResponse{
			Success:    true,
			Occupied:   true,
			Confidence: 91.5,
			BoundingBoxes: []BoundingBox{
				{X: 120, Y: 60, Width: 90, Height: 140, Confidence: 91.5},
			},
			ProcessingTimeMs: 340,
		})
		assert.NoError(t, err)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	out, err := client.Detect(context.Background(), []byte("frame-data"), "room-1", 75)
	require.NoError(t, err)

	assert.True(t, out.Occupied)
	assert.Equal(t, 91.5, out.Confidence)
	require.Len(t, out.BoundingBoxes, 1)
	assert.Equal(t, 120, out.BoundingBoxes[0].X)
	assert.Equal(t, int64(340), out.ProcessingTimeMs)
}

func TestHTTPClient_NormalizesUnitScaleConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(detectResponse{
			Success:    true,
			Occupied:   true,
			Confidence: 0.82,
			BoundingBoxes: []BoundingBox{
				{X: 10, Y: 20, Width: 30, Height: 40, Confidence: 0.82},
			},
		})
		assert.NoError(t, err)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	out, err := client.Detect(context.Background(), []byte("frame"), "room-1", 75)
	require.NoError(t, err)

	assert.InDelta(t, 82.0, out.Confidence, 0.001)
	require.Len(t, out.BoundingBoxes, 1)
	assert.InDelta(t, 82.0, out.BoundingBoxes[0].Confidence, 0.001)
}

func TestHTTPClient_EmptyFrame(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:0")
	_, err := client.Detect(context.Background(), nil, "room-1", 75)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHTTPClient_BackendFailures(t *testing.T) {
	testCases := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "non-2xx response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model unavailable", http.StatusServiceUnavailable)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "success=false reply",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(detectResponse{Success: false, Error: "no frame decoded"})
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			client := NewHTTPClient(server.URL)
			_, err := client.Detect(context.Background(), []byte("frame"), "room-1", 75)
			require.Error(t, err)

			var backendErr *BackendError
			require.ErrorAs(t, err, &backendErr)
			assert.Equal(t, tc.wantStatus, backendErr.StatusCode)
		})
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		json.NewEncoder(w).Encode(detectResponse{Success: true})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Detect(ctx, []byte("frame"), "room-1", 75)
	assert.ErrorIs(t, err, ErrTimeout)
}
