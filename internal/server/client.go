package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// FetchStatus reads GET /status from a running server at baseURL.
func FetchStatus(ctx context.Context, baseURL string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request failed: %s", resp.Status)
	}
	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &status, nil
}

// Stream is a client connection to GET /events.
type Stream struct {
	conn *websocket.Conn
}

// DialEvents opens the event stream of the server at baseURL, replaying
// buffered messages after since.
func DialEvents(ctx context.Context, baseURL string, since uint64) (*Stream, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events"
	if since > 0 {
		u.RawQuery = "since=" + strconv.FormatUint(since, 10)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks for the next message. Pings from the server are answered by
// the websocket library while Next is reading.
func (s *Stream) Next() (Message, error) {
	var msg Message
	err := s.conn.ReadJSON(&msg)
	return msg, err
}

// Close closes the stream.
func (s *Stream) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
