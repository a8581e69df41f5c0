package quota

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/riftwatch/riftwatch/internal/metrics"
)

const mysqlSchema = `CREATE TABLE IF NOT EXISTS RequestHistory (
	id INTEGER NOT NULL AUTO_INCREMENT,
	at_time DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	api_key VARCHAR(255) NOT NULL,
	region_name VARCHAR(255) NOT NULL,
	method_name VARCHAR(255) NOT NULL,
	request_uri VARCHAR(510) NOT NULL,
	PRIMARY KEY (id),
	KEY idx_requesthistory_at_time (at_time)
)`

// MySQLLedger shares the request history across processes through a MySQL
// table, serialised with a table-wide write lock. One database read per
// admission decision regardless of how many quotas apply; the coarse lock is
// acceptable because the request rate is externally bounded by the quotas
// themselves.
type MySQLLedger struct {
	db    *sqlx.DB
	log   *AdmissionLog
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// OpenMySQLLedger connects and creates the RequestHistory table if absent.
// DSN example: user:pass@tcp(localhost:3306)/dbname?parseTime=true
func OpenMySQLLedger(dsn string, log *AdmissionLog) (*MySQLLedger, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("quota: connect mysql ledger: %w", err)
	}
	if _, err := db.Exec(mysqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("quota: create RequestHistory: %w", err)
	}
	return &MySQLLedger{db: db, log: log, now: time.Now, sleep: sleep}, nil
}

func (m *MySQLLedger) Permit(ctx context.Context, apiKey, region, method, uri string, quotas []Quota) error {
	start := m.now()
	wMax := maxWindow(quotas)

	// LOCK TABLES is connection-scoped, so pin one connection for the
	// whole lock/read/insert/unlock cycle.
	conn, err := m.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("quota: acquire connection: %w", err)
	}
	defer conn.Close()

	for {
		if _, err := conn.ExecContext(ctx, "LOCK TABLES RequestHistory WRITE"); err != nil {
			return fmt.Errorf("quota: lock RequestHistory: %w", err)
		}

		now := m.now()
		entries, err := readEntriesMySQL(ctx, conn, apiKey, now.Add(-wMax))
		if err != nil {
			conn.ExecContext(ctx, "UNLOCK TABLES")
			return err
		}

		decisions := evaluate(now, entries, quotas)
		m.log.Record(now, region, decisions)

		if wait := firstWait(decisions); wait > 0 {
			if _, err := conn.ExecContext(ctx, "UNLOCK TABLES"); err != nil {
				return fmt.Errorf("quota: unlock RequestHistory: %w", err)
			}
			if err := m.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		_, err = conn.ExecContext(ctx,
			"INSERT INTO RequestHistory (at_time, api_key, region_name, method_name, request_uri) VALUES (?, ?, ?, ?, ?)",
			now, apiKey, region, method, uri)
		if err != nil {
			conn.ExecContext(ctx, "UNLOCK TABLES")
			return fmt.Errorf("quota: record request: %w", err)
		}
		if _, err := conn.ExecContext(ctx, "UNLOCK TABLES"); err != nil {
			return fmt.Errorf("quota: unlock RequestHistory: %w", err)
		}
		metrics.PermitWaitSeconds.Observe(m.now().Sub(start).Seconds())
		return nil
	}
}

func readEntriesMySQL(ctx context.Context, conn *sqlx.Conn, apiKey string, cutoff time.Time) ([]entry, error) {
	rows, err := conn.QueryxContext(ctx,
		"SELECT at_time, region_name, method_name FROM RequestHistory WHERE api_key = ? AND at_time >= ?",
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

func (m *MySQLLedger) Close() error {
	m.log.Close()
	return m.db.Close()
}
