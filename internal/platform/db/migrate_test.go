package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/clubdesk?sslmode=disable", "pgx5://u:p@localhost:5432/clubdesk?sslmode=disable"},
		{"postgresql://localhost/clubdesk", "pgx5://localhost/clubdesk"},
		{"pgx5://localhost/clubdesk", "pgx5://localhost/clubdesk"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MigrateURL(tt.in))
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
