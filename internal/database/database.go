// Package database 提供数据库连接管理
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/paifang/paifang/internal/config"
	"github.com/paifang/paifang/internal/metrics"
	"github.com/paifang/paifang/pkg/logger"
)

// DB 数据库连接封装
type DB struct {
	*sql.DB
	cfg config.DatabaseConfig
}

// New 创建数据库连接
func New(cfg config.DatabaseConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("数据库连接成功")

	return &DB{DB: db, cfg: cfg}, nil
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	if db.DB != nil {
		logger.Info().Msg("关闭数据库连接")
		return db.DB.Close()
	}
	return nil
}

// Health 健康检查，同时刷新连接池指标
func (db *DB) Health(ctx context.Context) error {
	stats := db.Stats()
	if g := metrics.Get().Gauge("paifang_db_connections"); g != nil {
		g.Set(float64(stats.InUse), "in_use")
		g.Set(float64(stats.Idle), "idle")
	}
	return db.PingContext(ctx)
}

// Migrate 建立排程存储表
func (db *DB) Migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS schedules (
			id UUID PRIMARY KEY,
			plan_date DATE NOT NULL,
			attempts INT NOT NULL,
			travel_minutes INT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_schedules_plan_date ON schedules (plan_date);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("建表失败: %w", err)
	}
	return nil
}
