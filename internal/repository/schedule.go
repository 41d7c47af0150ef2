// Package repository 提供排程结果的数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/paifang/paifang/pkg/errors"
	"github.com/paifang/paifang/pkg/model"
)

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ScheduleRepository 排程仓储
// 排程整体以JSONB存档，按日期与ID检索
type ScheduleRepository struct {
	db DB
}

// NewScheduleRepository 创建排程仓储
func NewScheduleRepository(db DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Save 保存排程
func (r *ScheduleRepository) Save(ctx context.Context, sched *model.Schedule) error {
	payload, err := json.Marshal(sched)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "排程序列化失败")
	}

	const query = `
		INSERT INTO schedules (id, plan_date, attempts, travel_minutes, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		sched.ID, sched.Date, sched.Attempts, sched.TravelTotal(), payload, sched.GeneratedAt)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "保存排程失败")
	}
	return nil
}

// GetByID 按ID读取排程
func (r *ScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	const query = `SELECT payload FROM schedules WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetLatestByDate 读取某日最新生成的排程
func (r *ScheduleRepository) GetLatestByDate(ctx context.Context, date string) (*model.Schedule, error) {
	const query = `
		SELECT payload FROM schedules
		WHERE plan_date = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, date))
}

// ListByDate 列出某日全部排程版本（新在前）
func (r *ScheduleRepository) ListByDate(ctx context.Context, date string) ([]*model.Schedule, error) {
	const query = `
		SELECT payload FROM schedules
		WHERE plan_date = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询排程失败")
	}
	defer rows.Close()

	var result []*model.Schedule
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "读取排程失败")
		}
		var sched model.Schedule
		if err := json.Unmarshal(payload, &sched); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "排程反序列化失败")
		}
		result = append(result, &sched)
	}
	return result, rows.Err()
}

// Delete 删除排程
func (r *ScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "删除排程失败")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.CodeNotFound, "排程不存在")
	}
	return nil
}

func (r *ScheduleRepository) scanOne(row *sql.Row) (*model.Schedule, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.CodeNotFound, "排程不存在")
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "读取排程失败")
	}
	var sched model.Schedule
	if err := json.Unmarshal(payload, &sched); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "排程反序列化失败")
	}
	return &sched, nil
}
