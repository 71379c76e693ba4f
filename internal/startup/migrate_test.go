package startup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	req := require.New(t)
	req.Equal("pgx5://u:p@localhost:5432/db?sslmode=disable", MigrationURL("postgres://u:p@localhost:5432/db?sslmode=disable"))
	req.Equal("pgx5://u@db/chat", MigrationURL("postgresql://u@db/chat"))
	req.Equal("pgx5://already", MigrationURL("pgx5://already"))
}

func TestNextBackoffIsCapped(t *testing.T) {
	req := require.New(t)
	req.Equal(4*time.Second, nextBackoff(2*time.Second))
	req.Equal(maxBackoff, nextBackoff(20*time.Second))
	req.Equal(maxBackoff, nextBackoff(maxBackoff))
}
