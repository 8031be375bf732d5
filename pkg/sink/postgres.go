package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/cosmonauts/whalewatching/pkg/types"
)

const DefaultTable = "whalewatching_leaderboard"

// PostgresSink appends every row of a report to Table, keyed by run id.
type PostgresSink struct {
	DSN   string
	Table string
}

func (s PostgresSink) table() string {
	if s.Table == "" {
		return DefaultTable
	}
	return s.Table
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id       UUID             NOT NULL,
	height       BIGINT           NOT NULL,
	etag         TEXT             NOT NULL,
	rank         INTEGER          NOT NULL,
	address      TEXT             NOT NULL,
	weight       DOUBLE PRECISION NOT NULL,
	weight_perc  DOUBLE PRECISION NOT NULL,
	generated_at TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (run_id, address)
)`, pq.QuoteIdentifier(table))
}

var copyColumns = []string{"run_id", "height", "etag", "rank", "address", "weight", "weight_perc", "generated_at"}

func (s PostgresSink) Write(ctx context.Context, rep *types.Report) error {
	db, err := sql.Open("postgres", s.DSN)
	if err != nil {
		return fmt.Errorf("postgres sink: %w", err)
	}
	defer db.Close()
	return s.write(ctx, db, rep)
}

func (s PostgresSink) write(ctx context.Context, db *sql.DB, rep *types.Report) error {
	if _, err := db.ExecContext(ctx, createTableSQL(s.table())); err != nil {
		return fmt.Errorf("postgres sink: create table: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres sink: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.table(), copyColumns...))
	if err != nil {
		return fmt.Errorf("postgres sink: prepare copy: %w", err)
	}
	for _, r := range rep.Rows {
		if _, err := stmt.ExecContext(ctx, rep.RunID, rep.Height, rep.ETag, r.Rank, r.Address, r.Weight, r.WeightPerc, rep.GeneratedAt); err != nil {
			stmt.Close()
			return fmt.Errorf("postgres sink: copy %s: %w", r.Address, err)
		}
	}
	// an argument-less Exec flushes the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("postgres sink: flush: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("postgres sink: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres sink: commit: %w", err)
	}
	return nil
}
