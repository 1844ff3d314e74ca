package identity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenPersister struct{}

func (brokenPersister) Load() (map[string]string, error) { return nil, errors.New("storage disabled") }
func (brokenPersister) Save(map[string]string) error     { return errors.New("storage disabled") }

func TestGetOrCreateIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")

	first := NewStore(FilePersister{Path: path}).GetOrCreate()
	require.NotEmpty(t, first.ID)
	assert.Contains(t, first.ID, "user_")
	assert.False(t, first.IsSpectator)

	again := NewStore(FilePersister{Path: path}).GetOrCreate()
	assert.Equal(t, first.ID, again.ID)
}

func TestSetNameAndSpectatorPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profile.yaml")
	s := NewStore(FilePersister{Path: path})
	id := s.GetOrCreate().ID

	p, err := s.SetName("  Ada  ")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	p = s.SetSpectator(true)
	assert.True(t, p.IsSpectator)

	reloaded := NewStore(FilePersister{Path: path}).GetOrCreate()
	assert.Equal(t, models.Participant{ID: id, Name: "Ada", IsSpectator: true}, reloaded)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "display_name: Ada")
}

func TestSetNameRejectsBlank(t *testing.T) {
	s := NewStore(nil)
	_, err := s.SetName("   ")
	assert.True(t, models.IsValidation(err))
}

func TestDegradedProfileStillWorks(t *testing.T) {
	s := NewStore(brokenPersister{})

	p := s.GetOrCreate()
	assert.NotEmpty(t, p.ID)
	assert.True(t, s.Degraded())

	renamed, err := s.SetName("Grace")
	require.NoError(t, err)
	assert.Equal(t, p.ID, renamed.ID)
	assert.Equal(t, "Grace", s.GetOrCreate().Name)
}

func TestCorruptProfileFileDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":::not yaml"), 0o600))

	s := NewStore(FilePersister{Path: path})
	assert.NotEmpty(t, s.GetOrCreate().ID)
	assert.True(t, s.Degraded())
}

func TestNullProfileFileStartsFresh(t *testing.T) {
	for _, body := range []string{"null\n", "~\n", ""} {
		path := filepath.Join(t.TempDir(), "profile.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		s := NewStore(FilePersister{Path: path})
		p := s.GetOrCreate()
		assert.NotEmpty(t, p.ID)
		assert.False(t, s.Degraded())

		again := NewStore(FilePersister{Path: path}).GetOrCreate()
		assert.Equal(t, p.ID, again.ID)
	}
}

type nilPersister struct{}

func (nilPersister) Load() (map[string]string, error) { return nil, nil }
func (nilPersister) Save(map[string]string) error     { return nil }

func TestStoreToleratesNilProfile(t *testing.T) {
	s := NewStore(nilPersister{})
	assert.NotEmpty(t, s.GetOrCreate().ID)
}
