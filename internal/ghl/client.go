// Package ghl wraps the external scheduling platform's calendar API.
package ghl

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

// apiVersion is the Version header the platform requires on every call.
const apiVersion = "2021-04-15"

type Config struct {
	BaseURL    string
	Token      string
	LocationID string
	Timeout    time.Duration
}

// Client is an HTTP client for the external scheduling service. It is safe
// for concurrent use; all fields are read-only after construction.
type Client struct {
	baseURL    string
	token      string
	locationID string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		locationID: cfg.LocationID,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultLocationID returns the location configured at construction, used
// when an appointment carries no location of its own.
func (c *Client) DefaultLocationID() string {
	return c.locationID
}

type CreateEventRequest struct {
	CalendarID          string `json:"calendarId"`
	LocationID          string `json:"locationId"`
	ContactID           string `json:"contactId"`
	Title               string `json:"title"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	MeetingLocationType string `json:"meetingLocationType"`
	AppointmentStatus   string `json:"appointmentStatus"`
	Description         string `json:"description"`
}

type CreateEventResponse struct {
	ID string `json:"id"`
}

// CreateEvent mirrors an appointment into the external calendar and returns
// the event identifier the platform assigned.
func (c *Client) CreateEvent(ctx context.Context, req CreateEventRequest) (*CreateEventResponse, error) {
	if req.MeetingLocationType == "" {
		req.MeetingLocationType = "custom"
	}
	if req.AppointmentStatus == "" {
		req.AppointmentStatus = "confirmed"
	}
	if req.LocationID == "" {
		req.LocationID = c.locationID
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal event request: %w", err)
	}

	url := c.baseURL + "/calendars/events/appointments"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build event request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call scheduling service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read scheduling response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scheduling service returned %d: %s", resp.StatusCode, truncate(respBody, 512))
	}

	var out CreateEventResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode scheduling response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("scheduling service returned no event id")
	}

	return &out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
