package repository

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
)

// errRows is a pgx.Rows that yields no rows and fails on Err, the shape a
// broken connection takes mid-iteration.
type errRows struct {
	err error
}

func (r errRows) Close()                                       {}
func (r errRows) Err() error                                   { return r.err }
func (r errRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r errRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r errRows) Next() bool                                   { return false }
func (r errRows) Scan(_ ...any) error                          { return nil }
func (r errRows) Values() ([]any, error)                       { return nil, nil }
func (r errRows) RawValues() [][]byte                          { return nil }
func (r errRows) Conn() *pgx.Conn                              { return nil }

func TestScanHelpersClassifyIterationFailure(t *testing.T) {
	rows := errRows{err: assert.AnError}

	t.Run("ids", func(t *testing.T) {
		_, err := scanIDs(rows)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeUnavailable, apperrors.CodeOf(err))
	})

	t.Run("messages", func(t *testing.T) {
		_, err := scanMessages(rows)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeUnavailable, apperrors.CodeOf(err))
	})

	t.Run("group messages", func(t *testing.T) {
		_, err := scanGroupMessages(rows)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeUnavailable, apperrors.CodeOf(err))
	})
}

func TestScanHelpersEmptyResult(t *testing.T) {
	rows := errRows{}

	ids, err := scanIDs(rows)
	require.NoError(t, err)
	assert.Empty(t, ids)

	messages, err := scanMessages(rows)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
