package identity

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Store owns the local participant profile. When the persister fails the
// store keeps working from memory and reports itself degraded.
type Store struct {
	persister Persister

	mu       sync.Mutex
	values   map[string]string
	loaded   bool
	degraded bool
}

func NewStore(p Persister) *Store {
	if p == nil {
		p = &MemoryPersister{}
	}
	return &Store{persister: p}
}

// GetOrCreate returns the profile, minting a device id on first use.
func (s *Store) GetOrCreate() models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	if s.values[KeyDeviceID] == "" {
		s.values[KeyDeviceID] = newDeviceID()
		s.save()
	}
	return s.participant()
}

// SetName stores a trimmed, non-empty display name.
func (s *Store) SetName(name string) (models.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Participant{}, models.NewValidationError("name", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if s.values[KeyDeviceID] == "" {
		s.values[KeyDeviceID] = newDeviceID()
	}
	s.values[KeyDisplayName] = name
	s.save()
	return s.participant(), nil
}

// SetSpectator switches between voting and watching.
func (s *Store) SetSpectator(spectator bool) models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if s.values[KeyDeviceID] == "" {
		s.values[KeyDeviceID] = newDeviceID()
	}
	s.values[KeySpectator] = strconv.FormatBool(spectator)
	s.save()
	return s.participant()
}

// Degraded reports whether the profile is only held in memory.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Store) load() {
	if s.loaded {
		return
	}
	s.loaded = true
	values, err := s.persister.Load()
	if err != nil {
		log.Warn().Err(err).Msg("profile storage unavailable, using in-memory profile")
		s.degraded = true
		values = nil
	}
	if values == nil {
		values = map[string]string{}
	}
	s.values = values
}

func (s *Store) save() {
	if s.degraded {
		return
	}
	if err := s.persister.Save(s.values); err != nil {
		log.Warn().Err(err).Msg("failed to persist profile, continuing in memory")
		s.degraded = true
	}
}

func (s *Store) participant() models.Participant {
	spectator, _ := strconv.ParseBool(s.values[KeySpectator])
	return models.Participant{
		ID:          s.values[KeyDeviceID],
		Name:        s.values[KeyDisplayName],
		IsSpectator: spectator,
	}
}

func newDeviceID() string {
	return "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
