package repository

import (
	"database/sql"

	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

// InsertScheduleRun 在一个事务中保存排班结果及其所有手术安排
func (r *Repository) InsertScheduleRun(run *domain.ScheduleRun) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO schedule_runs (id, window_start, window_end, score, initial_score, iterations, stop_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, version
	`

	params := []any{run.ID, run.WindowStart, run.WindowEnd, run.Score, run.InitialScore, run.Iterations, run.StopReason}
	if err := tx.QueryRowContext(ctx, query, params...).Scan(&run.CreatedAt, &run.Version); err != nil {
		return err
	}

	query = `
		INSERT INTO schedule_run_assignments (run_id, surgery_id, room_id, surgeon_id, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, a := range run.Assignments {
		surgeonID := sql.NullInt64{Int64: a.SurgeonID, Valid: a.SurgeonID != 0}
		if _, err := tx.ExecContext(ctx, query, run.ID, a.SurgeryID, a.RoomID, surgeonID, a.StartTime, a.EndTime); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// GetLatestScheduleRun 返回最近一次保存的排班结果，不存在时返回 sql.ErrNoRows
func (r *Repository) GetLatestScheduleRun() (*domain.ScheduleRun, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		SELECT id, window_start, window_end, score, initial_score, iterations, stop_reason, created_at, version
		FROM schedule_runs
		ORDER BY created_at DESC
		LIMIT 1
	`

	run := &domain.ScheduleRun{}
	dst := []any{
		&run.ID,
		&run.WindowStart,
		&run.WindowEnd,
		&run.Score,
		&run.InitialScore,
		&run.Iterations,
		&run.StopReason,
		&run.CreatedAt,
		&run.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query).Scan(dst...); err != nil {
		return nil, err
	}

	query = `
		SELECT surgery_id, room_id, surgeon_id, start_time, end_time
		FROM schedule_run_assignments
		WHERE run_id = $1
		ORDER BY room_id, start_time
	`

	rows, err := r.dbpool.QueryContext(ctx, query, run.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.Assignments = []domain.Assignment{}
	for rows.Next() {
		var a domain.Assignment
		var surgeonID sql.NullInt64
		if err := rows.Scan(&a.SurgeryID, &a.RoomID, &surgeonID, &a.StartTime, &a.EndTime); err != nil {
			return nil, err
		}
		if surgeonID.Valid {
			a.SurgeonID = surgeonID.Int64
		}
		run.Assignments = append(run.Assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return run, nil
}
