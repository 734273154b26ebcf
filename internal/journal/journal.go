// Package journal appends console commit attempts to Postgres for support
// audits. It stores no order content beyond counts and totals.
package journal

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"resto-console/internal/console"
)

const schema = `
	create table if not exists console_commits (
	  id bigserial primary key,
	  session_id text not null,
	  user_id text not null,
	  reservation_id text not null,
	  action text not null,
	  record_id text,
	  line_count integer not null default 0,
	  total numeric(12, 2) not null default 0,
	  error text,
	  created_at timestamptz not null default now()
	);
	create index if not exists console_commits_user_created_idx on console_commits (user_id, created_at desc);
`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Journal struct {
	db execer
}

func New(pool *pgxpool.Pool) *Journal {
	return &Journal{db: pool}
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	_, err := j.db.Exec(ctx, schema)
	return err
}

func (j *Journal) Record(ctx context.Context, entry console.CommitEntry) error {
	query := `
		insert into console_commits (session_id, user_id, reservation_id, action, record_id, line_count, total, error, created_at)
		values ($1, $2, $3, $4, nullif($5, ''), $6, $7, nullif($8, ''), $9)
	`
	_, err := j.db.Exec(ctx, query,
		entry.SessionID,
		entry.UserID,
		entry.ReservationID,
		string(entry.Action),
		entry.RecordID,
		entry.Lines,
		entry.Total,
		entry.Error,
		entry.CreatedAt,
	)
	return err
}
