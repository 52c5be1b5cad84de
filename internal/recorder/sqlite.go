package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"MarketScout/internal/model"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the collector writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			duration_ms INTEGER,
			tickers     INTEGER,
			succeeded   INTEGER,
			failed      INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,

		`CREATE TABLE IF NOT EXISTS ticker_snapshots (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			ticker         TEXT NOT NULL,
			source         TEXT,
			price          REAL,
			change_pct     REAL,
			rsi            REAL,
			macd_line      REAL,
			macd_signal    REAL,
			macd_histogram REAL,
			obv            REAL,
			ema_20         REAL,
			ema_50         REAL,
			ema_200        REAL,
			trend          TEXT,
			resistance_1   REAL,
			resistance_2   REAL,
			support_1      REAL,
			support_2      REAL,
			candle_count   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ticker_ts ON ticker_snapshots(ticker, timestamp)`,

		`CREATE TABLE IF NOT EXISTS volatility (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			value          REAL,
			change         REAL,
			change_pct     REAL,
			regime         TEXT,
			classification TEXT,
			source         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_volatility_ts ON volatility(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordCycle(rec *CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO cycles
		(timestamp, duration_ms, tickers, succeeded, failed, error)
		VALUES (?,?,?,?,?,?)`,
		rec.StartedAt.Unix(), rec.Duration.Milliseconds(),
		rec.Tickers, rec.Succeeded, rec.Failed, rec.Err,
	)
	return err
}

func (r *SQLiteRecorder) RecordSnapshot(ticker string, at time.Time, p *model.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var source string
	var price, changePct *float64
	if p.Quote != nil {
		source = p.Quote.Source
		price = &p.Quote.Price
		changePct = &p.Quote.ChangePercent
	}
	ind, lv := p.Indicators, p.Levels

	_, err := r.db.Exec(`INSERT INTO ticker_snapshots
		(timestamp, ticker, source, price, change_pct,
		 rsi, macd_line, macd_signal, macd_histogram, obv,
		 ema_20, ema_50, ema_200, trend,
		 resistance_1, resistance_2, support_1, support_2, candle_count)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		at.Unix(), ticker, source, price, changePct,
		ind.RSI, ind.MACDLine, ind.MACDSignal, ind.MACDHistogram, ind.OBV,
		ind.EMA20, ind.EMA50, ind.EMA200, string(ind.Trend),
		lv.Resistance1, lv.Resistance2, lv.Support1, lv.Support2, p.CandleCount,
	)
	return err
}

func (r *SQLiteRecorder) RecordVolatility(v *model.VolIndexReading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO volatility
		(timestamp, value, change, change_pct, regime, classification, source)
		VALUES (?,?,?,?,?,?,?)`,
		v.Timestamp.Unix(), v.Value, v.Change, v.ChangePercent,
		string(v.Regime), v.Classification, v.Source,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
