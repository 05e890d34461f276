package repository

import (
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

func (r *Repository) GetAllSetupTimes() ([]domain.SetupTime, error) {
	query := `
		SELECT from_type_id, to_type_id, setup_minutes
		FROM setup_times
		ORDER BY from_type_id, to_type_id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	setupTimes := []domain.SetupTime{}
	for rows.Next() {
		var st domain.SetupTime
		if err := rows.Scan(&st.FromTypeID, &st.ToTypeID, &st.SetupMinutes); err != nil {
			return nil, err
		}
		setupTimes = append(setupTimes, st)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return setupTimes, nil
}

// UpsertSetupTimes 在一个事务中写入整个准备时间矩阵，已有的条目会被覆盖
func (r *Repository) UpsertSetupTimes(setupTimes []domain.SetupTime) error {
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
		INSERT INTO setup_times (from_type_id, to_type_id, setup_minutes)
		VALUES ($1, $2, $3)
		ON CONFLICT (from_type_id, to_type_id) DO UPDATE SET setup_minutes = EXCLUDED.setup_minutes
	`

	for _, st := range setupTimes {
		if _, err := tx.ExecContext(ctx, query, st.FromTypeID, st.ToTypeID, st.SetupMinutes); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}
