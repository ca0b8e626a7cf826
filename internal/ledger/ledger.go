// Package ledger persists the historical record of who sent what to whom.
// Records are append-only: the handoff core only produces them as a side
// effect after either path completes, it never mutates them.
package ledger

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb"

	"github.com/caffeinepub/ofs/internal/models"
)

// Ledger is a DuckDB-backed transfer history store. An empty path opens an
// in-memory database, which tests rely on.
type Ledger struct {
	db *sql.DB
}

// Open creates (or reopens) the ledger database at path.
func Open(path string) (*Ledger, error) {
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transfers (
			id            VARCHAR PRIMARY KEY,
			sender        VARCHAR NOT NULL,
			receiver      VARCHAR NOT NULL,
			file_id       VARCHAR NOT NULL,
			file_name     VARCHAR NOT NULL,
			duration_ms   BIGINT NOT NULL,
			success       BOOLEAN NOT NULL,
			transfer_time TIMESTAMP NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating transfers table: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Append records a completed transfer.
func (l *Ledger) Append(ctx context.Context, rec *models.TransferRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO transfers (id, sender, receiver, file_id, file_name, duration_ms, success, transfer_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Sender, rec.Receiver, rec.FileID, rec.FileName,
		rec.DurationMs, rec.Success, rec.TransferTime,
	)
	if err != nil {
		return fmt.Errorf("appending transfer record: %w", err)
	}
	return nil
}

// History returns the transfers a user took part in, as sender or
// receiver, newest first.
func (l *Ledger) History(ctx context.Context, user string, limit int) ([]*models.TransferRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, sender, receiver, file_id, file_name, duration_ms, success, transfer_time
		FROM transfers
		WHERE sender = ? OR receiver = ?
		ORDER BY transfer_time DESC
		LIMIT ?`, user, user, limit)
	if err != nil {
		return nil, fmt.Errorf("querying transfer history: %w", err)
	}
	defer rows.Close()

	records := make([]*models.TransferRecord, 0)
	for rows.Next() {
		var rec models.TransferRecord
		if err := rows.Scan(&rec.ID, &rec.Sender, &rec.Receiver, &rec.FileID, &rec.FileName,
			&rec.DurationMs, &rec.Success, &rec.TransferTime); err != nil {
			return nil, fmt.Errorf("scanning transfer record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transfer history: %w", err)
	}

	return records, nil
}

// Ping reports whether the underlying database is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
