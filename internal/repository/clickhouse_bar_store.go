package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
	pkgch "github.com/metaphizix/MetaphizixEA-sub001/pkg/clickhouse"
	applogger "github.com/metaphizix/MetaphizixEA-sub001/pkg/logger"
)

// CHBarStore implements BarSeries backed by ClickHouse bar tables, one
// table per timeframe.
type CHBarStore struct {
	client   *pkgch.Client
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, database string) *CHBarStore {
	return &CHBarStore{client: ch, db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

// LatestBars returns up to n most recent bars, oldest first. An unknown
// symbol yields an empty slice.
func (s *CHBarStore) LatestBars(ctx context.Context, symbol string, tf domrepo.Timeframe, n int) ([]models.Bar, error) {
	start := time.Now()
	table, err := s.tableForTF(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_bars query error",
				applogger.String("table", table),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("latest bars: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Bar, 0, n)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}

	if s.l != nil {
		s.l.Debug("clickhouse latest_bars ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *CHBarStore) Close() error {
	return s.client.Close()
}

func (s *CHBarStore) tableForTF(tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TFM15:
		return s.database + ".bars_m15", nil
	case domrepo.TFH1:
		return s.database + ".bars_h1", nil
	case domrepo.TFH4:
		return s.database + ".bars_h4", nil
	case domrepo.TFD1:
		return s.database + ".bars_d1", nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}

// Schema returns the idempotent DDL for the bar tables.
func Schema(database string) []string {
	mk := func(table string) string {
		return fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s.%s (symbol String, bucket DateTime, open Float64, high Float64, low Float64, close Float64, vol Float64) ENGINE=MergeTree ORDER BY (symbol, bucket)",
			database, table)
	}
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		mk("bars_m15"),
		mk("bars_h1"),
		mk("bars_h4"),
		mk("bars_d1"),
	}
}
