package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketTransport talks to the presence gateway. Each session is one
// websocket connection; the gateway pushes the full room state on change.
type WebSocketTransport struct {
	URL          string // e.g. ws://localhost:8081/ws/presence
	Dialer       *websocket.Dialer
	WriteTimeout time.Duration
}

func NewWebSocketTransport(gatewayURL string) *WebSocketTransport {
	return &WebSocketTransport{
		URL:          gatewayURL,
		Dialer:       websocket.DefaultDialer,
		WriteTimeout: 10 * time.Second,
	}
}

func (t *WebSocketTransport) Join(ctx context.Context, roomID, key string, payload []byte) (Session, error) {
	u, err := url.Parse(t.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	q := u.Query()
	q.Set("room", roomID)
	q.Set("key", key)
	u.RawQuery = q.Encode()

	conn, _, err := t.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial presence gateway: %w", err)
	}

	s := &wsSession{
		conn:         conn,
		writeTimeout: t.WriteTimeout,
		ch:           make(chan Snapshot, 1),
		done:         make(chan struct{}),
	}
	if err := s.send(ClientMessage{Type: MsgTrack, Payload: payload}); err != nil {
		conn.Close()
		return nil, err
	}
	go s.readLoop()

	log.Debug().Str("url", u.Redacted()).Msg("connected to presence gateway")
	return s, nil
}

type wsSession struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	ch           chan Snapshot
	done         chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *wsSession) readLoop() {
	defer close(s.done)
	defer close(s.ch)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Msg("presence gateway connection lost")
			}
			return
		}
		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("ignored malformed gateway message")
			continue
		}
		if msg.Type != MsgSync {
			continue
		}
		if msg.Members == nil {
			msg.Members = Snapshot{}
		}
		offer(s.ch, msg.Members)
	}
}

func (s *wsSession) send(msg ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode presence message: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write presence message: %w", err)
	}
	return nil
}

func (s *wsSession) Snapshots() <-chan Snapshot {
	return s.ch
}

func (s *wsSession) Update(ctx context.Context, payload []byte) error {
	return s.send(ClientMessage{Type: MsgTrack, Payload: payload})
}

func (s *wsSession) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.send(ClientMessage{Type: MsgUntrack})

		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "leaving"))
		s.writeMu.Unlock()

		select {
		case <-s.done:
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		if cerr := s.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	return err
}
