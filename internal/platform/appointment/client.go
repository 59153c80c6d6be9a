// Package appointment submits appointment-creation requests to the external
// scheduling service.
package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusScheduled is the only status this service creates appointments with.
const StatusScheduled = "Scheduled"

// Request is the payload accepted by the appointment-creation endpoint.
type Request struct {
	ClinicID            int64  `json:"clinicId"`
	UserID              int64  `json:"userId"`
	PackageID           int64  `json:"packageId"`
	PackageName         string `json:"packageName"`
	SessionDate         string `json:"sessionDate"`
	SessionTime         string `json:"sessionTime"`
	CoachID             int64  `json:"coachId"`
	Status              string `json:"status"`
	PatientID           int64  `json:"patientId"`
	VisitID             int64  `json:"visitId"`
	OriginatingUniqueID string `json:"originatingUniqueId"`
}

// Response captures what the endpoint returned for one submission.
type Response struct {
	StatusCode int           `json:"status_code"`
	Body       string        `json:"body"`
	Duration   time.Duration `json:"duration_ns"`
}

// Submitter is implemented by Client and test doubles.
type Submitter interface {
	Submit(ctx context.Context, req Request) (*Response, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) ClientOption {
	return func(cl *Client) { cl.token = token }
}

// Client posts appointment requests as JSON. It never retries.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client posting to baseURL + "/appointments". The timeout
// bounds each submission.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(baseURL, "/") + "/appointments",
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit posts one request. A transport failure or a non-2xx status is an
// error; the Response is still returned when the endpoint answered.
func (c *Client) Submit(ctx context.Context, in Request) (*Response, error) {
	if in.Status == "" {
		in.Status = StatusScheduled
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal appointment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build appointment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post appointment: %w", err)
	}
	defer resp.Body.Close()

	// Read at most 1KB of response body.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	out := &Response{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Duration:   time.Since(start),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, fmt.Errorf("appointment endpoint returned %d: %s", resp.StatusCode, out.Body)
	}
	return out, nil
}
