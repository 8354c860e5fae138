package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/livekit/protocol/livekit"
	"google.golang.org/protobuf/proto"

	"github.com/chriscow/lk-voice/pkg/version"
)

var errNotConnected = errors.New("not connected")

// WebSocketClient speaks the agent dispatch protocol: binary frames holding
// protobuf WorkerMessage and ServerMessage values.
type WebSocketClient struct {
	url    string
	token  string
	conn   *websocket.Conn
	logger *slog.Logger
}

func NewWebSocketClient(serverURL, token string, logger *slog.Logger) *WebSocketClient {
	return &WebSocketClient{url: serverURL, token: token, logger: logger}
}

// agentURL turns a LiveKit server URL into the worker endpoint.
func agentURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/agent"
	return u.String(), nil
}

func (c *WebSocketClient) Connect(ctx context.Context) error {
	target, err := agentURL(c.url)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	header.Set("User-Agent", version.UserAgent())

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	c.logger.Debug("Connecting to WebSocket", slog.String("url", target))
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.logger.Info("WebSocket connected", slog.String("url", target))
	return nil
}

func (c *WebSocketClient) ReadMessage() (*livekit.ServerMessage, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	kind, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	if kind != websocket.BinaryMessage {
		return nil, fmt.Errorf("unexpected websocket message type %d", kind)
	}

	msg := &livekit.ServerMessage{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to decode server message: %w", err)
	}
	return msg, nil
}

func (c *WebSocketClient) WriteMessage(msg *livekit.WorkerMessage) error {
	if c.conn == nil {
		return errNotConnected
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode worker message: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the connection, unblocking a pending
// ReadMessage. It may be called concurrently with reads and writes.
func (c *WebSocketClient) Close() error {
	if c.conn == nil {
		return nil
	}

	c.logger.Info("Closing WebSocket connection")
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
