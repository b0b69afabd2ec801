package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// NotificationAPI is the set of request/response calls the session needs.
type NotificationAPI interface {
	CountSource
	ListNotifications(ctx context.Context, page, size int) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
}

// PublishRequest creates a notification. An empty UserID broadcasts a
// SYSTEM notification to every user.
type PublishRequest struct {
	UserID      string           `json:"user_id,omitempty"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Type        NotificationType `json:"type,omitempty"`
	ReferenceID *string          `json:"reference_id,omitempty"`
}

type PublishResult struct {
	Created int `json:"created"`
}

// APIClient talks to the notification REST endpoints.
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
}

func NewAPIClient(baseURL string, tokens TokenSource) *APIClient {
	return &APIClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
	}
}

func (c *APIClient) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// ListNotifications fetches one page, newest first. page is zero-based.
func (c *APIClient) ListNotifications(ctx context.Context, page, size int) ([]Notification, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	var out struct {
		Data []Notification `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/notifications?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *APIClient) MarkRead(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *APIClient) MarkAllRead(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPatch, "/notifications/read-all", nil, nil)
}

func (c *APIClient) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil, nil)
}

// Publish is an admin call.
func (c *APIClient) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	var out PublishResult
	err := c.doJSON(ctx, http.MethodPost, "/admin/notifications", req, &out)
	return out, err
}

// AdminDelete removes any user's notification.
func (c *APIClient) AdminDelete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/admin/notifications/"+url.PathEscape(id), nil, nil)
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
