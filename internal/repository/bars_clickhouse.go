package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ExecCore/internal/domain/models"
	domrepo "ExecCore/internal/domain/repository"
	pkgch "ExecCore/pkg/clickhouse"
	applogger "ExecCore/pkg/logger"
)

// CHBarStore implements BarStore backed by ClickHouse candle tables.
type CHBarStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHBarStore {
	return &CHBarStore{db: ch.DB(), database: database, l: l}
}

func (s *CHBarStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
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
	rows, err := s.db.QueryContext(ctx, q, strings.ToUpper(symbol), n)
	if err != nil {
		s.l.Error("clickhouse latest_candles query error",
			applogger.String("table", table),
			applogger.Symbol(symbol),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Candle, 0, n)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		tmp = append(tmp, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	s.l.Debug("clickhouse latest_candles ok",
		applogger.String("table", table),
		applogger.Symbol(symbol),
		applogger.Int("rows", len(tmp)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return tmp, nil
}

func (s *CHBarStore) tableForTF(tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF1m:
		return s.database + ".candles_1m", nil
	case domrepo.TF5m:
		return s.database + ".candles_5m", nil
	case domrepo.TF1h:
		return s.database + ".candles_1h", nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}

// BarSchema returns the DDL for the candle tables the store reads.
func BarSchema(database string) []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)}
	for _, suffix := range []string{"1m", "5m", "1h"} {
		stmts = append(stmts, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.candles_%s (
            bucket DateTime64(3, 'UTC'),
            symbol LowCardinality(String),
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            vol    Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, bucket)`, database, suffix))
	}
	return stmts
}

var _ domrepo.BarStore = (*CHBarStore)(nil)
