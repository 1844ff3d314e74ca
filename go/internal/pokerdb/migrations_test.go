package pokerdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrdered(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, "0001_issues_votes", migrations[0].Version)
	assert.Equal(t, "0002_room_changes", migrations[1].Version)
	assert.Equal(t, "0003_set_voting_issue", migrations[2].Version)
	assert.Contains(t, migrations[2].SQL, "set_voting_issue")
	assert.Contains(t, migrations[1].SQL, "pg_notify('poker_changes'")
}
