package journal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"resto-console/internal/console"
	"resto-console/internal/order"
)

type fakeExecer struct {
	sql  []string
	args [][]any
	err  error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestRecordWritesEntry(t *testing.T) {
	db := &fakeExecer{}
	j := &Journal{db: db}
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	err := j.Record(context.Background(), console.CommitEntry{
		SessionID:     "s1",
		UserID:        "u1",
		ReservationID: "R1",
		Action:        order.ActionCreate,
		RecordID:      "m1",
		Lines:         2,
		Total:         25,
		CreatedAt:     at,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(db.sql) != 1 || !strings.Contains(db.sql[0], "insert into console_commits") {
		t.Fatalf("unexpected sql %v", db.sql)
	}
	args := db.args[0]
	if len(args) != 9 || args[3] != "create" || args[4] != "m1" || args[8] != at {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestEnsureSchemaPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	j := &Journal{db: &fakeExecer{err: boom}}
	if err := j.EnsureSchema(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
