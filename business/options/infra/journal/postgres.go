package journal

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Postgres appends events to a table.
type Postgres struct {
	db     *sql.DB
	table  string
	logger logger.LoggerInterface
}

// OpenPostgres connects to dsn and makes sure table exists.
func OpenPostgres(ctx context.Context, dsn, table string, log logger.LoggerInterface) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p, err := NewPostgres(db, table, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := p.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info(ctx, "postgres journal connected", "table", table)
	return p, nil
}

// NewPostgres uses an open db.
func NewPostgres(db *sql.DB, table string, log logger.LoggerInterface) (*Postgres, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid journal table name %q", table)
	}
	return &Postgres{db: db, table: table, logger: log}, nil
}

// EnsureSchema creates the events table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          UUID PRIMARY KEY,
			type        TEXT NOT NULL,
			protocol    TEXT NOT NULL,
			caller      TEXT NOT NULL,
			token       TEXT NOT NULL,
			option_id   BIGINT NOT NULL,
			amount      NUMERIC(78, 0) NOT NULL,
			value       NUMERIC(78, 0) NOT NULL,
			vault_id    BIGINT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		)`, p.table)

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return apperror.Internal(apperror.CodeJournalWriteFailed, "create table", err)
	}
	return nil
}

// Record implements app.EventSink.
func (p *Postgres) Record(ctx context.Context, e domain.Event) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, type, protocol, caller, token, option_id,
			amount, value, vault_id, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`, p.table)

	_, err := p.db.ExecContext(ctx, query,
		e.ID.String(),
		string(e.Type),
		e.Protocol,
		e.Caller.Hex(),
		e.Token.Hex(),
		int64(e.OptionID),
		amountString(e.Amount),
		amountString(e.Value),
		int64(e.VaultID),
		e.At,
	)
	if err != nil {
		return apperror.Internal(apperror.CodeJournalWriteFailed, "insert event", err)
	}

	p.logger.Debug(ctx, "event stored", "event_id", e.ID.String(), "type", string(e.Type))
	return nil
}

// Ping checks the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}
