// Package detect defines the detection client contract: one call per frame,
// a typed error taxonomy, and no internal retries. Retry policy belongs to
// the caller.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// BoundingBox locates a detected person within a frame. Confidence is on the
// 0-100 percent scale, like every confidence value in this module.
type BoundingBox struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Outcome is a successful detection result.
type Outcome struct {
	Occupied         bool          `json:"occupied"`
	Confidence       float64       `json:"confidence"` // percent, 0-100
	BoundingBoxes    []BoundingBox `json:"boundingBoxes,omitempty"`
	ProcessingTimeMs int64         `json:"processingTimeMs"`
}

// Client submits a captured frame for occupancy detection. The caller bounds
// the call with a context deadline; an exceeded deadline surfaces as
// ErrTimeout.
type Client interface {
	Detect(ctx context.Context, frame []byte, roomID string, confidenceThreshold float64) (Outcome, error)
}

// detectRequest is the wire format of the backend's detect endpoint.
type detectRequest struct {
	Image               []byte  `json:"image"`
	RoomID              string  `json:"roomId"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
}

// detectResponse models the backend's reply. Confidence may arrive on either
// the 0-1 or 0-100 scale depending on the backend revision; it is normalized
// to percent at this boundary.
type detectResponse struct {
	Success          bool          `json:"success"`
	Occupied         bool          `json:"occupied"`
	Confidence       float64       `json:"confidence"`
	BoundingBoxes    []BoundingBox `json:"boundingBoxes"`
	ProcessingTimeMs int64         `json:"processingTimeMs"`
	Error            string        `json:"error"`
}

// HTTPClient calls a real detection model service over HTTP.
type HTTPClient struct {
	url    string
	client *http.Client
}

// NewHTTPClient creates a detection client for the backend at url. The
// request deadline comes from the caller's context, so no client-level
// timeout is set here.
func NewHTTPClient(url string) *HTTPClient {
	return &HTTPClient{
		url:    url,
		client: &http.Client{},
	}
}

// Detect submits one frame and returns the backend's verdict.
func (c *HTTPClient) Detect(ctx context.Context, frame []byte, roomID string, confidenceThreshold float64) (Outcome, error) {
	if len(frame) == 0 {
		return Outcome{}, ErrInvalidInput
	}

	body, err := json.Marshal(detectRequest{
		Image:               frame,
		RoomID:              roomID,
		ConfidenceThreshold: confidenceThreshold,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to marshal detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Outcome{}, ErrTimeout
		}
		return Outcome{}, &BackendError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Outcome{}, &BackendError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	var dr detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return Outcome{}, &BackendError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed payload: %v", err)}
	}
	if !dr.Success {
		return Outcome{}, &BackendError{StatusCode: resp.StatusCode, Message: dr.Error}
	}

	out := Outcome{
		Occupied:         dr.Occupied,
		Confidence:       normalizeConfidence(dr.Confidence),
		BoundingBoxes:    dr.BoundingBoxes,
		ProcessingTimeMs: dr.ProcessingTimeMs,
	}
	for i := range out.BoundingBoxes {
		out.BoundingBoxes[i].Confidence = normalizeConfidence(out.BoundingBoxes[i].Confidence)
	}
	if out.ProcessingTimeMs == 0 {
		out.ProcessingTimeMs = time.Since(start).Milliseconds()
	}
	return out, nil
}

// normalizeConfidence maps a backend confidence onto the canonical 0-100
// scale. Some backend revisions report unit-scale values.
func normalizeConfidence(v float64) float64 {
	if v <= 1.0 {
		return v * 100
	}
	if v > 100 {
		return 100
	}
	return v
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
