package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	pkgpg "FxPipe/pkg/postgres"
	applogger "FxPipe/pkg/logger"

	"github.com/jmoiron/sqlx"
)

// Store implements the relational stores on one sqlx pool.
type Store struct {
	db *sqlx.DB
	l  *applogger.Logger
}

var (
	_ drepo.BarStore          = (*Store)(nil)
	_ drepo.QualityLog        = (*Store)(nil)
	_ drepo.ReferenceStore    = (*Store)(nil)
	_ drepo.JobStore          = (*Store)(nil)
	_ drepo.StateStore        = (*Store)(nil)
	_ drepo.SignalStore       = (*Store)(nil)
	_ drepo.NotificationStore = (*Store)(nil)
)

func New(client *pkgpg.Client) *Store {
	return &Store{db: client.DB()}
}

// NewWithDB is used when the pool is owned elsewhere.
func NewWithDB(db *sqlx.DB) *Store { return &Store{db: db} }

// SetLogger injects a structured logger.
func (s *Store) SetLogger(l *applogger.Logger) { s.l = l }

// notFound maps sql.ErrNoRows to models.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

// placeholders renders "($1,$2),($3,$4)" for rows x cols positional args.
func placeholders(rows, cols int) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}
