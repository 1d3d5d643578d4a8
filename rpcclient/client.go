// Package rpcclient is the distributed-client side of the kangaroo
// server protocol: configure a search, request a work range, submit
// distinguished points, and poll for a solution found by any client.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tos-network/kangaroo/dp"
)

// DefaultTimeout bounds a single HTTP call.
const DefaultTimeout = 30 * time.Second

// DefaultWorkBackoff is how long a client sleeps after get_work reports
// no assignable work before retrying.
const DefaultWorkBackoff = 30 * time.Second

// Client talks to a kangarooserver over JSON/HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client targeting baseURL (e.g. "http://localhost:8080"),
// with a per-request timeout of DefaultTimeout.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Work describes one assigned search range.
type Work struct {
	RangeID    string   `json:"range_id"`
	StartRange string   `json:"start_range"`
	EndRange   string   `json:"end_range"`
	BitRange   int      `json:"bit_range"`
	DPBits     int      `json:"dp_bits"`
	PubKey     string   `json:"pubkey"`
}

type configureRequest struct {
	StartRange string `json:"start_range"`
	EndRange   string `json:"end_range"`
	PubKey     string `json:"pubkey"`
	DPBits     int    `json:"dp_bits"`
	RangeSize  string `json:"range_size"`
}

type configureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ConfigureSearch administratively partitions the search [startRange,
// endRange) into per-client ranges of rangeSize.
func (c *Client) ConfigureSearch(ctx context.Context, startRange, endRange, pubKey, rangeSize string, dpBits int) (string, error) {
	req := configureRequest{StartRange: startRange, EndRange: endRange, PubKey: pubKey, DPBits: dpBits, RangeSize: rangeSize}
	var resp configureResponse
	if err := c.postJSON(ctx, "/api/configure", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return resp.Message, fmt.Errorf("rpcclient: configure_search rejected: %s", resp.Message)
	}
	return resp.Message, nil
}

type getWorkRequest struct {
	ClientID string `json:"client_id"`
}

type getWorkResponse struct {
	Success bool  `json:"success"`
	Work    *Work `json:"work,omitempty"`
}

// GetWork requests a work range for clientID. ok=false means no work is
// currently assignable; the caller should retry after DefaultWorkBackoff.
func (c *Client) GetWork(ctx context.Context, clientID string) (work Work, ok bool, err error) {
	req := getWorkRequest{ClientID: clientID}
	var resp getWorkResponse
	if err := c.postJSON(ctx, "/api/get_work", req, &resp); err != nil {
		return Work{}, false, err
	}
	if !resp.Success || resp.Work == nil {
		return Work{}, false, nil
	}
	return *resp.Work, true, nil
}

// Point is the wire shape of one submitted distinguished point.
type Point struct {
	XCoord   string `json:"x_coord"`
	Distance string `json:"distance"`
	KangType int    `json:"kang_type"`
}

type submitPointsRequest struct {
	ClientID string  `json:"client_id"`
	Points   []Point `json:"points"`
}

type submitPointsResponse struct {
	Status          string `json:"status"`
	Solution        string `json:"solution,omitempty"`
	PointsProcessed int    `json:"points_processed,omitempty"`
}

// SubmitPoints ships records to the server. status is "ok" or "solved";
// a transport/parse failure is returned as err and the caller must keep
// the batch pending for retry — this call never clears caller state.
func (c *Client) SubmitPoints(ctx context.Context, clientID string, records []dp.Record) (status string, solution string, err error) {
	points := make([]Point, len(records))
	for i, rec := range records {
		key := rec.Key()
		points[i] = Point{
			XCoord:   fmt.Sprintf("%X", key[:]),
			Distance: rec.Distance().Hex(),
			KangType: int(rec.Type()),
		}
	}
	req := submitPointsRequest{ClientID: clientID, Points: points}
	var resp submitPointsResponse
	if err := c.postJSON(ctx, "/api/submit_points", req, &resp); err != nil {
		return "", "", err
	}
	return resp.Status, resp.Solution, nil
}

type statusResponse struct {
	Solved   bool   `json:"solved"`
	Solution string `json:"solution,omitempty"`
}

// Status polls for out-of-band solved detection.
func (c *Client) Status(ctx context.Context) (solved bool, solution string, err error) {
	var resp statusResponse
	if err := c.getJSON(ctx, "/api/status", &resp); err != nil {
		return false, "", err
	}
	return resp.Solved, resp.Solution, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("rpcclient: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("rpcclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("rpcclient: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpcclient: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpcclient: %s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rpcclient: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
