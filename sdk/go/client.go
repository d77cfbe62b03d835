package consulairesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Consulaire HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Request represents the API service request model.
type Request struct {
	ID              string         `json:"id"`
	Number          string         `json:"number"`
	Status          string         `json:"status"`
	DisplayStatus   string         `json:"display_status"`
	Priority        string         `json:"priority"`
	ServiceID       string         `json:"service_id"`
	OrganizationID  string         `json:"organization_id"`
	ProfileID       string         `json:"profile_id"`
	RequesterID     string         `json:"requester_id"`
	AssignedAgentID *string        `json:"assigned_agent_id,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	DocumentIDs     []string       `json:"document_ids"`
	CreatedAt       string         `json:"created_at"`
	SubmittedAt     *string        `json:"submitted_at,omitempty"`
	AssignedAt      *string        `json:"assigned_at,omitempty"`
	CompletedAt     *string        `json:"completed_at,omitempty"`
}

// Note represents a request note.
type Note struct {
	ID        int64  `json:"id"`
	RequestID string `json:"request_id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
}

// Activity represents an audit log entry.
type Activity struct {
	ID        int64          `json:"id"`
	RequestID string         `json:"request_id"`
	Type      string         `json:"type"`
	ActorID   string         `json:"actor_id"`
	Payload   map[string]any `json:"payload"`
	TS        string         `json:"ts"`
}

// Mission represents a directory entry, optionally ranked by distance.
type Mission struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	CountryCode string   `json:"country_code"`
	City        string   `json:"city"`
	Longitude   float64  `json:"longitude"`
	Latitude    float64  `json:"latitude"`
	DistanceKm  *float64 `json:"distance_km,omitempty"`
}

// Jurisdiction is the resolver response.
type Jurisdiction struct {
	Missions                []Mission `json:"missions"`
	NearestConsulateGeneral *Mission  `json:"nearest_consulate_general,omitempty"`
	NearestEmbassy          *Mission  `json:"nearest_embassy,omitempty"`
	Effective               *Mission  `json:"effective,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedRequests wraps the request listing.
type PaginatedRequests struct {
	Items  []Request `json:"items"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// CreateRequest opens a draft request.
func (c *Client) CreateRequest(ctx context.Context, serviceID, profileID string, data map[string]any) (Request, error) {
	body := map[string]any{
		"service_id": serviceID,
		"profile_id": profileID,
	}
	if data != nil {
		body["data"] = data
	}
	var resp Request
	err := c.do(ctx, http.MethodPost, "v0/requests", body, &resp)
	return resp, err
}

// GetRequest fetches a request by id.
func (c *Client) GetRequest(ctx context.Context, id string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodGet, "v0/requests/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// GetRequestByNumber fetches a request by its REQ- number.
func (c *Client) GetRequestByNumber(ctx context.Context, number string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodGet, "v0/requests/by-number/"+url.PathEscape(number), nil, &resp)
	return resp, err
}

// ListRequests returns a page of requests filtered by status.
func (c *Client) ListRequests(ctx context.Context, statuses []string, limit, offset int) (PaginatedRequests, error) {
	q := url.Values{}
	if len(statuses) > 0 {
		q.Set("status", strings.Join(statuses, ","))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", offset))
	}
	endpoint := "v0/requests"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp PaginatedRequests
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Submit moves a draft to submitted.
func (c *Client) Submit(ctx context.Context, id string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodPost, "v0/requests/"+url.PathEscape(id)+"/submit", nil, &resp)
	return resp, err
}

// Assign routes a request to an agent.
func (c *Client) Assign(ctx context.Context, id, agentID string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodPost, "v0/requests/"+url.PathEscape(id)+"/assign", map[string]any{"agent_id": agentID}, &resp)
	return resp, err
}

// ChangeStatus moves a request along the transition table.
func (c *Client) ChangeStatus(ctx context.Context, id, status, reason string) (Request, error) {
	body := map[string]any{"status": status}
	if reason != "" {
		body["reason"] = reason
	}
	var resp Request
	err := c.do(ctx, http.MethodPatch, "v0/requests/"+url.PathEscape(id)+"/status", body, &resp)
	return resp, err
}

// Reject terminates a request with an optional reason.
func (c *Client) Reject(ctx context.Context, id, reason string) (Request, error) {
	body := map[string]any{}
	if reason != "" {
		body["reason"] = reason
	}
	var resp Request
	err := c.do(ctx, http.MethodPost, "v0/requests/"+url.PathEscape(id)+"/reject", body, &resp)
	return resp, err
}

// Complete closes a validated request.
func (c *Client) Complete(ctx context.Context, id string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodPost, "v0/requests/"+url.PathEscape(id)+"/complete", nil, &resp)
	return resp, err
}

// AddNote appends a note to a request.
func (c *Client) AddNote(ctx context.Context, id, noteType, content string) (Note, error) {
	body := map[string]any{"type": noteType, "content": content}
	var resp Note
	err := c.do(ctx, http.MethodPost, "v0/requests/"+url.PathEscape(id)+"/notes", body, &resp)
	return resp, err
}

// Notes lists the notes on a request.
func (c *Client) Notes(ctx context.Context, id string, citizenOnly bool) ([]Note, error) {
	endpoint := "v0/requests/" + url.PathEscape(id) + "/notes"
	if citizenOnly {
		endpoint += "?citizen_only=true"
	}
	var resp []Note
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Activities returns the audit history of a request.
func (c *Client) Activities(ctx context.Context, id string) ([]Activity, error) {
	var resp []Activity
	err := c.do(ctx, http.MethodGet, "v0/requests/"+url.PathEscape(id)+"/activities", nil, &resp)
	return resp, err
}

// AddDocument attaches a document reference.
func (c *Client) AddDocument(ctx context.Context, id, documentID string) (Request, error) {
	var resp Request
	endpoint := "v0/requests/" + url.PathEscape(id) + "/documents/" + url.PathEscape(documentID)
	err := c.do(ctx, http.MethodPut, endpoint, nil, &resp)
	return resp, err
}

// RemoveDocument detaches a document reference.
func (c *Client) RemoveDocument(ctx context.Context, id, documentID string) (Request, error) {
	var resp Request
	endpoint := "v0/requests/" + url.PathEscape(id) + "/documents/" + url.PathEscape(documentID)
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp, err
}

// Counts returns per-status request counts.
func (c *Client) Counts(ctx context.Context, organizationID string) (map[string]int, error) {
	endpoint := "v0/requests/counts"
	if organizationID != "" {
		endpoint += "?organization_id=" + url.QueryEscape(organizationID)
	}
	var resp map[string]int
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Missions lists the mission directory.
func (c *Client) Missions(ctx context.Context) ([]Mission, error) {
	var resp []Mission
	err := c.do(ctx, http.MethodGet, "v0/missions", nil, &resp)
	return resp, err
}

// ResolveJurisdiction ranks the directory for a position.
func (c *Client) ResolveJurisdiction(ctx context.Context, lon, lat float64) (Jurisdiction, error) {
	endpoint := fmt.Sprintf("v0/missions/jurisdiction?lon=%g&lat=%g", lon, lat)
	var resp Jurisdiction
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
