package presence

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type NATSConfig struct {
	URL           string
	Bucket        string
	TTL           time.Duration // Entries not refreshed within TTL disappear
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Bucket:        "POKER_PRESENCE",
		TTL:           30 * time.Second,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSTransport keeps presence in a JetStream key/value bucket. Keys are
// "<room>.<participant>"; each session heartbeats its own key and watches
// the room's keys.
type NATSTransport struct {
	nc    *nats.Conn
	kv    jetstream.KeyValue
	cfg   NATSConfig
	clock clockwork.Clock
}

func NewNATSTransport(ctx context.Context, cfg NATSConfig, clock clockwork.Clock) (*NATSTransport, error) {
	opts := []nats.Option{
		nats.Name("planning-poker-presence"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "planning poker room presence",
		History:     1,
		TTL:         cfg.TTL,
		Storage:     jetstream.MemoryStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure presence bucket: %w", err)
	}

	log.Info().Str("bucket", cfg.Bucket).Dur("ttl", cfg.TTL).Msg("presence bucket ready")
	return &NATSTransport{nc: nc, kv: kv, cfg: cfg, clock: clock}, nil
}

func (t *NATSTransport) Close() {
	t.nc.Close()
}

func (t *NATSTransport) Join(ctx context.Context, roomID, key string, payload []byte) (Session, error) {
	roomToken := encodeToken(roomID)
	entryKey := roomToken + "." + encodeToken(key)

	if _, err := t.kv.Put(ctx, entryKey, payload); err != nil {
		return nil, fmt.Errorf("put presence: %w", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	watcher, err := t.kv.Watch(sctx, roomToken+".*")
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch presence: %w", err)
	}

	s := &natsSession{
		t:        t,
		entryKey: entryKey,
		payload:  append([]byte(nil), payload...),
		ch:       make(chan Snapshot, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.run(sctx, watcher)
	return s, nil
}

type natsEntry struct {
	payload json.RawMessage
	seen    time.Time
}

type natsSession struct {
	t        *NATSTransport
	entryKey string
	ch       chan Snapshot
	cancel   context.CancelFunc
	done     chan struct{}

	mu      sync.Mutex
	payload []byte
}

func (s *natsSession) run(ctx context.Context, watcher jetstream.KeyWatcher) {
	defer close(s.done)
	defer close(s.ch)
	defer watcher.Stop()

	heartbeat := s.t.clock.NewTicker(s.heartbeatInterval())
	defer heartbeat.Stop()

	members := make(map[string]natsEntry)
	ready := false

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				log.Warn().Str("key", s.entryKey).Msg("presence watcher closed")
				return
			}
			if entry == nil {
				// initial values delivered
				ready = true
				offer(s.ch, snapshotOf(members))
				continue
			}
			key, ok := memberKey(entry.Key())
			if !ok {
				continue
			}
			switch entry.Operation() {
			case jetstream.KeyValuePut:
				members[key] = natsEntry{payload: entry.Value(), seen: s.t.clock.Now()}
			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				delete(members, key)
			}
			if ready {
				offer(s.ch, snapshotOf(members))
			}
		case <-heartbeat.Chan():
			s.refresh(ctx)
			if pruneStale(members, s.t.clock.Now(), s.t.cfg.TTL) && ready {
				offer(s.ch, snapshotOf(members))
			}
		}
	}
}

func (s *natsSession) heartbeatInterval() time.Duration {
	if s.t.cfg.TTL <= 0 {
		return 10 * time.Second
	}
	return s.t.cfg.TTL / 3
}

func (s *natsSession) refresh(ctx context.Context) {
	s.mu.Lock()
	payload := s.payload
	s.mu.Unlock()
	if _, err := s.t.kv.Put(ctx, s.entryKey, payload); err != nil {
		log.Error().Err(err).Str("key", s.entryKey).Msg("failed to refresh presence")
	}
}

func (s *natsSession) Snapshots() <-chan Snapshot {
	return s.ch
}

func (s *natsSession) Update(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	s.payload = append([]byte(nil), payload...)
	s.mu.Unlock()
	if _, err := s.t.kv.Put(ctx, s.entryKey, payload); err != nil {
		return fmt.Errorf("put presence: %w", err)
	}
	return nil
}

func (s *natsSession) Close(ctx context.Context) error {
	s.cancel()
	<-s.done
	if err := s.t.kv.Delete(ctx, s.entryKey); err != nil {
		return fmt.Errorf("delete presence: %w", err)
	}
	return nil
}

// pruneStale drops entries not refreshed within ttl. Expired KV entries
// produce no watch event, so the watcher has to age them out itself.
func pruneStale(members map[string]natsEntry, now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	pruned := false
	for k, e := range members {
		if now.Sub(e.seen) > ttl {
			delete(members, k)
			pruned = true
		}
	}
	return pruned
}

func snapshotOf(members map[string]natsEntry) Snapshot {
	out := make(Snapshot, len(members))
	for k, e := range members {
		out[k] = append(json.RawMessage(nil), e.payload...)
	}
	return out
}

// encodeToken makes an arbitrary id safe as a KV key segment.
func encodeToken(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func memberKey(entryKey string) (string, bool) {
	i := strings.LastIndexByte(entryKey, '.')
	if i < 0 {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(entryKey[i+1:])
	if err != nil {
		return "", false
	}
	return string(raw), true
}
