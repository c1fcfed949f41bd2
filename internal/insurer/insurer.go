// Package insurer resolves company ids from the knowledge corpus to display
// names. The table is tiny and effectively static, so lookups are cached
// for the process lifetime.
package insurer

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/sirusiru/radish-engine/internal/log"
)

// Directory maps a company id to a user-facing insurer name.
type Directory interface {
	Name(ctx context.Context, companyID int32) string
}

// DB is the subset of pgxpool.Pool the directory needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGDirectory reads insurer names from PostgreSQL with an in-process cache.
type PGDirectory struct {
	db     DB
	logger log.Logger

	mu    sync.RWMutex
	cache map[int32]string
}

// NewPGDirectory creates a directory over the insurers table.
func NewPGDirectory(db DB, logger log.Logger) *PGDirectory {
	if logger == nil {
		logger = log.NewNop()
	}
	return &PGDirectory{
		db:     db,
		logger: logger,
		cache:  make(map[int32]string),
	}
}

// Name resolves a company id. Unknown ids and lookup failures return a
// numbered placeholder so the caller always has something to show; failed
// lookups are not cached and will be retried on the next call.
func (d *PGDirectory) Name(ctx context.Context, companyID int32) string {
	d.mu.RLock()
	name, ok := d.cache[companyID]
	d.mu.RUnlock()
	if ok {
		return name
	}

	err := d.db.QueryRow(ctx, `SELECT name FROM insurers WHERE id = $1`, companyID).Scan(&name)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			d.logger.Warn("insurer lookup failed", "company_id", companyID, "error", err)
			return placeholder(companyID)
		}
		// Unknown ids are stable; cache the placeholder too.
		name = placeholder(companyID)
	}

	d.mu.Lock()
	d.cache[companyID] = name
	d.mu.Unlock()
	return name
}

func placeholder(companyID int32) string {
	return "保険会社" + strconv.Itoa(int(companyID))
}
