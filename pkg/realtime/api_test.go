package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_Endpoints(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		calls = append(calls, r.Method+" "+r.URL.RequestURI())
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/notifications/unread-count":
			_, _ = w.Write([]byte(`{"count":4}`))
		case r.URL.Path == "/notifications" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"data":[{"id":"a","type":"SYSTEM","read":true}],"page":0,"size":10}`))
		case r.URL.Path == "/admin/notifications" && r.Method == http.MethodPost:
			var req PublishRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Hello", req.Title)
			assert.Empty(t, req.UserID)
			_, _ = w.Write([]byte(`{"created":3}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, StaticToken("tok"))
	ctx := context.Background()

	count, err := c.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	list, err := c.ListNotifications(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
	assert.True(t, list[0].Read)

	require.NoError(t, c.MarkRead(ctx, "a"))
	require.NoError(t, c.MarkAllRead(ctx))
	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.AdminDelete(ctx, "b"))

	res, err := c.Publish(ctx, PublishRequest{Title: "Hello", Message: "World"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)

	assert.Equal(t, []string{
		"GET /notifications/unread-count",
		"GET /notifications?page=0&size=10",
		"PATCH /notifications/a/read",
		"PATCH /notifications/read-all",
		"DELETE /notifications/a",
		"DELETE /admin/notifications/b",
		"POST /admin/notifications",
	}, calls)
}

func TestAPIClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/notifications/unread-count" {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		http.Error(w, "notification not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, StaticToken("tok"))

	_, err := c.UnreadCount(context.Background())
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	err = c.MarkRead(context.Background(), "missing")
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "notification not found", httpErr.Body)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestAPIClient_NoCredential(t *testing.T) {
	c := NewAPIClient("http://127.0.0.1:0", StaticToken(""))
	_, err := c.UnreadCount(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}
