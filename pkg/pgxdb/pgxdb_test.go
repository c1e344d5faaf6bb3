package pgxdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/screwyprof/ballotaudit/pkg/pgxdb"
)

func TestNewConnection(t *testing.T) {
	t.Parallel()

	t.Run("it rejects a malformed connection string", func(t *testing.T) {
		t.Parallel()

		// Act
		_, err := pgxdb.NewConnection(context.Background(), "postgres://%zz")

		// Assert
		assert.ErrorIs(t, err, pgxdb.ErrInvalidConnectionString)
	})
}
