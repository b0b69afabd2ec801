package realtime

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const DefaultStreamPath = "/notifications/stream"

// SSETransport opens a long-lived HTTP event stream. The credential travels
// in the `token` query parameter because browser EventSource clients cannot
// set headers; this exposes it to access logs and is a known weakness of the
// wire contract.
type SSETransport struct {
	baseURL    string
	path       string
	httpClient *http.Client
}

// NewSSETransport builds a transport for baseURL. client must not carry a
// request timeout; nil uses a plain http.Client.
func NewSSETransport(baseURL string, client *http.Client) *SSETransport {
	if client == nil {
		client = &http.Client{}
	}
	return &SSETransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       DefaultStreamPath,
		httpClient: client,
	}
}

func (t *SSETransport) Dial(ctx context.Context, credential string) (Stream, error) {
	u, err := url.Parse(t.baseURL + t.path)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	q := u.Query()
	q.Set("token", credential)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, &AuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, &TransportError{Op: "dial", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	return &sseStream{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

type sseStream struct {
	body      io.ReadCloser
	reader    *bufio.Reader
	closeOnce sync.Once
	closeErr  error
}

// Next reads frames until a complete event is dispatched. Comment lines
// (heartbeats) are skipped and `retry:` hints are ignored.
func (s *sseStream) Next(ctx context.Context) (Event, error) {
	var (
		name     string
		data     []string
		seenData bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, &TransportError{Op: "read", Err: err}
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Event{}, &TransportError{Op: "read", Err: err}
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if !seenData {
				name = ""
				continue
			}
			if name == "" {
				name = "message"
			}
			return Event{Name: name, Data: []byte(strings.Join(data, "\n"))}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
			seenData = true
		}
	}
}

func (s *sseStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
