package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
)

// PgxIface is the subset of pgxpool.Pool the sink needs.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertPublication = `
INSERT INTO publications (
	process_number, publication_date, availability_date,
	authors, defendant, lawyers, amounts, content, confidence
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (process_number) DO UPDATE SET
	publication_date  = EXCLUDED.publication_date,
	availability_date = EXCLUDED.availability_date,
	authors           = EXCLUDED.authors,
	defendant         = EXCLUDED.defendant,
	lawyers           = EXCLUDED.lawyers,
	amounts           = EXCLUDED.amounts,
	content           = EXCLUDED.content,
	confidence        = EXCLUDED.confidence,
	updated_at        = now()`

// PostgresSink upserts publications keyed by process number, so re-running a
// date is safe.
type PostgresSink struct {
	db     PgxIface
	logger *zap.Logger
}

// NewPostgresSink connects a pool and returns a sink backed by it.
func NewPostgresSink(ctx context.Context, connString string, logger *zap.Logger) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresSinkWithDB(pool, logger), nil
}

// NewPostgresSinkWithDB wraps an existing connection (or mock).
func NewPostgresSinkWithDB(db PgxIface, logger *zap.Logger) *PostgresSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSink{db: db, logger: logger}
}

// Save upserts one publication row.
func (s *PostgresSink) Save(ctx context.Context, pub pipeline.EnrichedPublication) error {
	if pub.ProcessNumber == "" {
		return fmt.Errorf("publication has no process number")
	}
	lawyers, err := json.Marshal(pub.Lawyers)
	if err != nil {
		return fmt.Errorf("marshal lawyers: %w", err)
	}
	amounts, err := json.Marshal(pub.Amounts)
	if err != nil {
		return fmt.Errorf("marshal amounts: %w", err)
	}
	_, err = s.db.Exec(ctx, upsertPublication,
		pub.ProcessNumber,
		nullable(pub.PublicationDate),
		nullable(pub.AvailabilityDate),
		pub.Authors,
		pub.Defendant,
		lawyers,
		amounts,
		pub.Content,
		string(pub.Confidence),
	)
	if err != nil {
		return fmt.Errorf("upsert publication %s: %w", pub.ProcessNumber, err)
	}
	s.logger.Debug("publication upserted", zap.String("process_number", pub.ProcessNumber))
	return nil
}

// nullable maps the empty string to NULL for date columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
