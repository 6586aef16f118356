package dash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sabr2007/smart-tasker-bot/pkg/schedule"
	"github.com/sabr2007/smart-tasker-bot/pkg/task"
	"github.com/sabr2007/smart-tasker-bot/pkg/user"
)

// Client talks to the task API. It caches the session token it minted and
// throws it away on the first 401, re-authenticating with the platform
// init data before retrying once.
type Client struct {
	baseURL  string
	initData string
	http     *http.Client

	mu    sync.Mutex
	token string
}

// NewClient creates a Client for the given API base URL.
func NewClient(baseURL, initData string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		initData: initData,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// BucketsResponse is the server's bucketized view.
type BucketsResponse struct {
	Timezone    string `json:"timezone"`
	GeneratedAt string `json:"generated_at"`
	Buckets     []struct {
		Bucket string      `json:"bucket"`
		Tasks  []task.Task `json:"tasks"`
	} `json:"buckets"`
}

// CalendarResponse is one month of the server's calendar grid.
type CalendarResponse struct {
	Timezone string             `json:"timezone"`
	Year     int                `json:"year"`
	Month    int                `json:"month"`
	Weeks    []schedule.GridRow `json:"weeks"`
}

// CompleteResult reports a completion, including the occurrence a
// recurring task spawned.
type CompleteResult struct {
	OK        bool   `json:"ok"`
	NewTaskID string `json:"new_task_id"`
}

func (c *Client) ActiveTasks(ctx context.Context) ([]task.Task, error) {
	var out []task.Task
	err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &out)
	return out, err
}

func (c *Client) Buckets(ctx context.Context) (*BucketsResponse, error) {
	var out BucketsResponse
	if err := c.do(ctx, http.MethodGet, "/api/views/buckets", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Calendar(ctx context.Context, year, month int) (*CalendarResponse, error) {
	var out CalendarResponse
	path := fmt.Sprintf("/api/views/calendar?year=%d&month=%d", year, month)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTask(ctx context.Context, text, deadlineISO string) (*task.Task, error) {
	var out task.Task
	body := map[string]any{"text": text}
	if deadlineISO != "" {
		body["deadline_iso"] = deadlineISO
	}
	if err := c.do(ctx, http.MethodPost, "/api/tasks", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reschedule moves a task's deadline; an empty deadlineISO clears it. The
// clear is sent as an explicit null so the server drops the deadline
// instead of ignoring the field.
func (c *Client) Reschedule(ctx context.Context, taskID, deadlineISO string) (*task.Task, error) {
	var body map[string]any
	if deadlineISO == "" {
		body = map[string]any{"deadline_iso": nil}
	} else {
		body = map[string]any{"deadline_iso": deadlineISO}
	}
	var out task.Task
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+taskID, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Complete(ctx context.Context, taskID string) (*CompleteResult, error) {
	var out CompleteResult
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/complete", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Reopen(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/reopen", nil, nil)
}

func (c *Client) ArchiveTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/archive", nil, nil)
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+taskID, nil, nil)
}

func (c *Client) Me(ctx context.Context) (*user.Settings, error) {
	var out user.Settings
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetTimezone(ctx context.Context, tz string) (*user.Settings, error) {
	var out user.Settings
	if err := c.do(ctx, http.MethodPatch, "/api/users/me", map[string]any{"timezone": tz}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Timezones(ctx context.Context) ([]string, error) {
	var out struct {
		Common []string `json:"common"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/timezones", nil, &out); err != nil {
		return nil, err
	}
	return out.Common, nil
}

// do runs one authenticated request, decoding the response into out when
// out is non-nil. On a 401 the cached token is discarded and the request
// retried once with a fresh session.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.session(ctx, false)
	if err != nil {
		return err
	}

	status, respBody, err := c.roundTrip(ctx, method, path, body, token)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		token, err = c.session(ctx, true)
		if err != nil {
			return err
		}
		status, respBody, err = c.roundTrip(ctx, method, path, body, token)
		if err != nil {
			return err
		}
	}
	if status >= 400 {
		return &APIError{Status: status, Body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, token string) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	return resp.StatusCode, respBody, nil
}

// session returns the cached token, exchanging init data for a fresh one
// when there is none or when force is set.
func (c *Client) session(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && !force {
		return c.token, nil
	}
	c.token = ""

	b, _ := json.Marshal(map[string]string{"init_data": c.initData})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/session", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBody, &session); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	if session.Token == "" {
		return "", fmt.Errorf("session response has no token")
	}
	c.token = session.Token
	return c.token, nil
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Body)
}
