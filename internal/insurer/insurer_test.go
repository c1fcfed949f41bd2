package insurer

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sirusiru/radish-engine/internal/log"
)

// mockRow implements pgx.Row for testing
type mockRow struct {
	name string
	err  error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.name
	return nil
}

// mockDB implements DB for testing
type mockDB struct {
	names     map[int32]string
	queryErr  error
	callCount int
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.callCount++
	if m.queryErr != nil {
		return &mockRow{err: m.queryErr}
	}
	id := args[0].(int32)
	name, ok := m.names[id]
	if !ok {
		return &mockRow{err: pgx.ErrNoRows}
	}
	return &mockRow{name: name}
}

func TestName(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves and caches", func(t *testing.T) {
		db := &mockDB{names: map[int32]string{1: "なないろ生命"}}
		dir := NewPGDirectory(db, log.NewNop())

		assert.Equal(t, "なないろ生命", dir.Name(ctx, 1))
		assert.Equal(t, "なないろ生命", dir.Name(ctx, 1))
		assert.Equal(t, 1, db.callCount, "second lookup is served from cache")
	})

	t.Run("unknown id gets a cached placeholder", func(t *testing.T) {
		db := &mockDB{names: map[int32]string{}}
		dir := NewPGDirectory(db, log.NewNop())

		assert.Equal(t, "保険会社42", dir.Name(ctx, 42))
		assert.Equal(t, "保険会社42", dir.Name(ctx, 42))
		assert.Equal(t, 1, db.callCount)
	})

	t.Run("query failure returns a placeholder and retries later", func(t *testing.T) {
		db := &mockDB{queryErr: errors.New("connection reset")}
		dir := NewPGDirectory(db, log.NewNop())

		assert.Equal(t, "保険会社7", dir.Name(ctx, 7))
		assert.Equal(t, "保険会社7", dir.Name(ctx, 7))
		assert.Equal(t, 2, db.callCount, "failures are not cached")
	})
}
