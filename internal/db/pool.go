package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KurimiTokisakiQAQ/kd/internal/config"
)

var ErrNoRows = sql.ErrNoRows

type CommandTag struct {
	rowsAffected int64
}

func (c CommandTag) RowsAffected() int64 {
	return c.rowsAffected
}

type Row struct {
	row *sql.Row
}

func (r *Row) Scan(dest ...any) error {
	if r == nil || r.row == nil {
		return ErrNoRows
	}
	return r.row.Scan(dest...)
}

type Rows struct {
	rows *sql.Rows
}

func (r *Rows) Next() bool {
	if r == nil || r.rows == nil {
		return false
	}
	return r.rows.Next()
}

func (r *Rows) Scan(dest ...any) error {
	if r == nil || r.rows == nil {
		return ErrNoRows
	}
	return r.rows.Scan(dest...)
}

func (r *Rows) Err() error {
	if r == nil || r.rows == nil {
		return nil
	}
	return r.rows.Err()
}

func (r *Rows) Close() {
	if r == nil || r.rows == nil {
		return
	}
	_ = r.rows.Close()
}

// Pool is a thin facade over a gorm MySQL connection. Recycle replaces the
// underlying connection after a failed polling round; callers hold the Pool,
// never the raw handle.
type Pool struct {
	mu    sync.Mutex
	cfg   *config.Config
	gdb   *gorm.DB
	sqlDB *sql.DB
}

func NewPool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	pool := &Pool{cfg: cfg}
	if err := pool.open(ctx); err != nil {
		return nil, err
	}
	return pool, nil
}

func (p *Pool) open(ctx context.Context) error {
	logLevel := resolveGormLogLevel(p.cfg.LogLevel, p.cfg.Environment)

	gdb, err := gorm.Open(mysql.Open(p.cfg.DatabaseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("get gorm sql db: %w", err)
	}

	maxOpen := int(p.cfg.DBMaxConns)
	if maxOpen <= 0 {
		maxOpen = 8
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(max(1, min(int(p.cfg.DBMinConns), maxOpen)))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	p.gdb = gdb
	p.sqlDB = sqlDB
	return nil
}

// Recycle closes the current connection and opens a fresh one. Used after a
// failed polling round instead of retrying on a possibly wedged connection.
func (p *Pool) Recycle(ctx context.Context) error {
	if p == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sqlDB != nil {
		_ = p.sqlDB.Close()
	}
	p.gdb = nil
	p.sqlDB = nil
	return p.open(ctx)
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *Row {
	gdb := p.handle()
	if gdb == nil {
		return &Row{row: nil}
	}
	return &Row{row: gdb.WithContext(ctx).Raw(query, args...).Row()}
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	gdb := p.handle()
	if gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	rows, err := gdb.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (p *Pool) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	gdb := p.handle()
	if gdb == nil {
		return CommandTag{}, fmt.Errorf("database pool is not initialized")
	}
	res := gdb.WithContext(ctx).Exec(query, args...)
	return CommandTag{rowsAffected: res.RowsAffected}, res.Error
}

func (p *Pool) Ping(ctx context.Context) error {
	p.mu.Lock()
	sqlDB := p.sqlDB
	p.mu.Unlock()
	if sqlDB == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	return sqlDB.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sqlDB == nil {
		return nil
	}
	err := p.sqlDB.Close()
	p.gdb = nil
	p.sqlDB = nil
	return err
}

func (p *Pool) handle() *gorm.DB {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gdb
}

func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}

func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	level := strings.ToLower(strings.TrimSpace(appLogLevel))
	switch level {
	case "trace", "debug":
		return logger.Info
	case "warn", "warning", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		if strings.EqualFold(strings.TrimSpace(environment), "local") {
			return logger.Warn
		}
		return logger.Error
	}
}
