// Package ws connects the quiz engine to an external messaging gateway
// over a WebSocket, exchanging JSON frames. The gateway owns the actual
// chat network; this adapter only translates frames.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"groupquiz/internal/gateway"
)

type Config struct {
	URL string
}

// Frame is the wire format in both directions. Inbound types are "group"
// and "private"; outbound types are "send_group", "send_private" and
// "restrict".
type Frame struct {
	Type string `json:"type"`

	GroupID    string   `json:"group_id,omitempty"`
	SenderID   string   `json:"sender_id,omitempty"`
	SenderName string   `json:"sender_name,omitempty"`
	IsAdmin    bool     `json:"is_admin,omitempty"`
	Text       string   `json:"text,omitempty"`
	Mentions   []string `json:"mentions,omitempty"`

	UserID     string          `json:"user_id,omitempty"`
	Restricted bool            `json:"restricted,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type Adapter struct {
	conn *websocket.Conn

	// writeMu serializes writes; gorilla connections allow one concurrent
	// writer only.
	writeMu sync.Mutex

	// names caches sender display names seen on inbound frames, the only
	// name source a frame-based gateway offers.
	names sync.Map
}

func Dial(ctx context.Context, c Config) (*Adapter, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", c.URL, err)
	}

	return &Adapter{conn: conn}, nil
}

// Run reads frames and feeds them to the engine until ctx is cancelled or
// the connection drops.
func (a *Adapter) Run(ctx context.Context, inbound gateway.Inbound) error {
	go func() {
		<-ctx.Done()
		a.conn.Close()
	}()

	for {
		var f Frame
		if err := a.conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ws: read: %w", err)
		}

		if f.SenderID != "" && f.SenderName != "" {
			a.names.Store(f.SenderID, f.SenderName)
		}

		switch f.Type {
		case "group":
			cmd := gateway.GroupCommand{
				GroupID:          f.GroupID,
				SenderID:         f.SenderID,
				IsOwnerCandidate: f.IsAdmin,
				RawText:          f.Text,
				MentionedIDs:     f.Mentions,
			}
			go inbound.HandleGroupCommand(ctx, cmd)

		case "private":
			pm := gateway.PrivateMessage{
				SenderID: f.SenderID,
				RawText:  f.Text,
			}
			go inbound.HandlePrivateMessage(ctx, pm)

		default:
			slog.WarnContext(ctx, "ws: unknown frame type", "type", f.Type)
		}
	}
}

func (a *Adapter) SendToGroup(_ context.Context, groupID string, payload any) error {
	return a.write(Frame{Type: "send_group", GroupID: groupID}, payload)
}

func (a *Adapter) SendToPrivate(_ context.Context, userID string, payload any) error {
	return a.write(Frame{Type: "send_private", UserID: userID}, payload)
}

func (a *Adapter) SetGroupRestricted(_ context.Context, groupID string, restricted bool) error {
	return a.write(Frame{Type: "restrict", GroupID: groupID, Restricted: restricted}, nil)
}

func (a *Adapter) ResolveDisplayName(_ context.Context, userID string) (string, bool) {
	if v, ok := a.names.Load(userID); ok {
		return v.(string), true
	}
	return "", false
}

func (a *Adapter) write(f Frame, payload any) error {
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("ws: marshal payload: %v", err)
		}
		f.Payload = b
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if err := a.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("ws: write: %w", err)
	}
	return nil
}
