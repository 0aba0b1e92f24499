package querylog

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/weather-copilot/internal/domain/query"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresLog persists routing decisions using pgx.
//
// Schema:
//
//	CREATE TABLE route_log (
//	    id           BIGSERIAL PRIMARY KEY,
//	    request_id   TEXT NOT NULL,
//	    query        TEXT NOT NULL,
//	    source       TEXT NOT NULL,
//	    intent       TEXT NOT NULL,
//	    confidence   DOUBLE PRECISION NOT NULL,
//	    accepted     BOOLEAN NOT NULL,
//	    error_code   TEXT,
//	    latency_ms   BIGINT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL
//	);
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewPostgresLog constructs the log.
func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

// Record implements query.RouteLog.
func (l *PostgresLog) Record(ctx context.Context, entry query.RouteEntry) error {
	sql, args, err := psql.
		Insert("route_log").
		Columns("request_id", "query", "source", "intent", "confidence", "accepted", "error_code", "latency_ms", "created_at").
		Values(entry.RequestID, entry.Query, string(entry.Source), string(entry.Intent),
			entry.Confidence, entry.Accepted, nullable(entry.ErrorCode),
			entry.Latency.Milliseconds(), entry.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, sql, args...)
	return err
}

// Recent returns up to limit entries, newest first.
func (l *PostgresLog) Recent(ctx context.Context, limit int) ([]query.RouteEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	sql, args, err := psql.
		Select("request_id", "query", "source", "intent", "confidence", "accepted", "COALESCE(error_code, '')", "latency_ms", "created_at").
		From("route_log").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := l.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []query.RouteEntry
	for rows.Next() {
		var (
			entry     query.RouteEntry
			source    string
			intent    string
			latencyMS int64
		)
		if err := rows.Scan(&entry.RequestID, &entry.Query, &source, &intent,
			&entry.Confidence, &entry.Accepted, &entry.ErrorCode, &latencyMS, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Source = query.Source(source)
		entry.Intent = query.Intent(intent)
		entry.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, entry)
	}
	return out, rows.Err()
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ query.RouteLog = (*PostgresLog)(nil)
