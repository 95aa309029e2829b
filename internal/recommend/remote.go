package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultHealthTimeout = 5 * time.Second
)

// Remote is a client of the external recommendation service.
type Remote struct {
	BaseURL       string
	Timeout       time.Duration
	HealthTimeout time.Duration
	HTTPClient    *http.Client
	// Sides is the part-to-side table returned seatings are checked against.
	Sides part.Table
}

// NewRemote creates a client for the service at baseURL.
func NewRemote(baseURL string, timeout, healthTimeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}
	return &Remote{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Timeout:       timeout,
		HealthTimeout: healthTimeout,
		HTTPClient:    http.DefaultClient,
		Sides:         part.DefaultTable(),
	}
}

type memberJSON struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Part       part.Part `json:"part"`
	Height     *int      `json:"height"`
	Experience *int      `json:"experience"`
	IsLeader   bool      `json:"is_leader"`
}

type requestJSON struct {
	Members    []memberJSON `json:"members"`
	GridLayout *grid.Layout `json:"grid_layout,omitempty"`
}

// Health is the service's self-reported status.
type Health struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	ModelLoaded       bool   `json:"modelLoaded"`
	DatabaseConnected bool   `json:"databaseConnected"`
}

// Ready reports whether the service can serve recommendations.
func (h Health) Ready() bool {
	return h.Status == "healthy" && h.ModelLoaded
}

// Recommend posts the roster to /api/v1/recommend. Any transport failure,
// timeout, non-2xx status, malformed body or seating that breaks the grid
// rules is reported as ErrServiceUnavailable.
func (r *Remote) Recommend(ctx context.Context, req Request) (Result, error) {
	body := requestJSON{GridLayout: req.Layout}
	for _, m := range req.Members {
		mj := memberJSON{ID: m.ID, Name: m.Name, Part: m.Part, IsLeader: m.IsLeader}
		if m.Height > 0 {
			h := m.Height
			mj.Height = &h
		}
		if m.Experience > 0 {
			e := m.Experience
			mj.Experience = &e
		}
		body.Members = append(body.Members, mj)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("recommend: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/api/v1/recommend", bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("recommend: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client().Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrServiceUnavailable, resp.StatusCode, detail(resp.Body))
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if err := r.check(out.State, req.Members); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	out.Source = SourceRemote
	return out, nil
}

// check rejects a returned seating that does not fit its own layout, seats
// someone who was not asked for, or breaks the part zones.
func (r *Remote) check(s arrangement.State, members []Member) error {
	if err := grid.Validate(s.Layout); err != nil {
		return err
	}
	known := make(map[string]part.Part, len(members))
	for _, m := range members {
		known[m.ID] = m.Part
	}
	for _, a := range s.Assignments() {
		if err := grid.CheckPosition(s.Layout, a.Pos); err != nil {
			return fmt.Errorf("member %s: %w", a.MemberID, err)
		}
		p, ok := known[a.MemberID]
		if !ok {
			return fmt.Errorf("member %s was not in the request", a.MemberID)
		}
		if p != a.Part {
			return fmt.Errorf("member %s seated as %s, sings %s", a.MemberID, a.Part, p)
		}
	}
	return arrangement.CheckInvariants(s, r.Sides)
}

// Health fetches /api/v1/health.
func (r *Remote) Health(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, r.HealthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/api/v1/health", nil)
	if err != nil {
		return Health{}, fmt.Errorf("recommend: build health request: %w", err)
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("%w: health status %d", ErrServiceUnavailable, resp.StatusCode)
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return h, nil
}

func (r *Remote) client() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return http.DefaultClient
}

// detail extracts the "detail" field of an error body, falling back to the
// raw text.
func detail(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var v struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &v) == nil && v.Detail != "" {
		return v.Detail
	}
	return strings.TrimSpace(string(raw))
}
