package landchat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/eldtechnologies/landchat/internal/models"
)

// Socket is a live connection joined to one user's room.
type Socket struct {
	conn *websocket.Conn
}

// Dial opens the websocket channel for userID.
func (c *Client) Dial(ctx context.Context, userID string) (*Socket, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket"
	u.RawQuery = url.Values{"userId": {userID}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return &Socket{conn: conn}, nil
}

// Send emits a sendMessage event. Delivery is confirmed by the receiveMessage
// event echoed back to every session of the sender.
func (s *Socket) Send(req SendRequest) error {
	frame, err := models.EncodeEvent(models.EventSendMessage, req)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// Next blocks until the next receiveMessage event. Error events from the
// server are returned as errors.
func (s *Socket) Next() (*models.ReceiveEvent, error) {
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}

		var env models.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			return nil, err
		}

		switch env.Event {
		case models.EventReceiveMessage:
			var event models.ReceiveEvent
			if err := json.Unmarshal(env.Data, &event); err != nil {
				return nil, err
			}
			return &event, nil
		case models.EventError:
			var event models.ErrorEvent
			if err := json.Unmarshal(env.Data, &event); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%s: %s", event.Code, event.Message)
		}
	}
}

// Close closes the connection.
func (s *Socket) Close() error {
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
