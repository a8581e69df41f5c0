package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/riftwatch/riftwatch/internal/metrics"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS request_history (
	id SERIAL PRIMARY KEY,
	at_time TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	api_key VARCHAR(255) NOT NULL,
	region_name VARCHAR(255) NOT NULL,
	method_name VARCHAR(255) NOT NULL,
	request_uri VARCHAR(510) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_history_at_time ON request_history (at_time)`

// request_history is serialised with an advisory lock rather than a table
// lock; the key only needs to be agreed on by every process using the ledger.
const postgresAdvisoryLockKey = 0x52464c44 // "RFLD"

// PostgresLedger shares the request history through Postgres, using a
// session-scoped advisory lock in place of MySQL's LOCK TABLES.
type PostgresLedger struct {
	db    *sqlx.DB
	log   *AdmissionLog
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func OpenPostgresLedger(dsn string, log *AdmissionLog) (*PostgresLedger, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("quota: connect postgres ledger: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("quota: create request_history: %w", err)
	}
	return &PostgresLedger{db: db, log: log, now: time.Now, sleep: sleep}, nil
}

func (p *PostgresLedger) Permit(ctx context.Context, apiKey, region, method, uri string, quotas []Quota) error {
	start := p.now()
	wMax := maxWindow(quotas)

	// Advisory locks are session-scoped, so pin one connection.
	conn, err := p.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("quota: acquire connection: %w", err)
	}
	defer conn.Close()

	for {
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", postgresAdvisoryLockKey); err != nil {
			return fmt.Errorf("quota: advisory lock: %w", err)
		}

		now := p.now()
		entries, err := readEntriesPostgres(ctx, conn, apiKey, now.Add(-wMax))
		if err != nil {
			conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", postgresAdvisoryLockKey)
			return err
		}

		decisions := evaluate(now, entries, quotas)
		p.log.Record(now, region, decisions)

		if wait := firstWait(decisions); wait > 0 {
			if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", postgresAdvisoryLockKey); err != nil {
				return fmt.Errorf("quota: advisory unlock: %w", err)
			}
			if err := p.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		_, err = conn.ExecContext(ctx,
			"INSERT INTO request_history (at_time, api_key, region_name, method_name, request_uri) VALUES ($1, $2, $3, $4, $5)",
			now, apiKey, region, method, uri)
		if err != nil {
			conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", postgresAdvisoryLockKey)
			return fmt.Errorf("quota: record request: %w", err)
		}
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", postgresAdvisoryLockKey); err != nil {
			return fmt.Errorf("quota: advisory unlock: %w", err)
		}
		metrics.PermitWaitSeconds.Observe(p.now().Sub(start).Seconds())
		return nil
	}
}

func readEntriesPostgres(ctx context.Context, conn *sqlx.Conn, apiKey string, cutoff time.Time) ([]entry, error) {
	rows, err := conn.QueryxContext(ctx,
		"SELECT at_time, region_name, method_name FROM request_history WHERE api_key = $1 AND at_time >= $2",
		apiKey, cutoff)
	if err != nil {
		return nil, fmt.Errorf("quota: read request history: %w", err)
	}
	defer rows.Close()

	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.At, &e.Region, &e.Method); err != nil {
			return nil, fmt.Errorf("quota: scan request history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *PostgresLedger) Close() error {
	p.log.Close()
	return p.db.Close()
}
