package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

func (r *Repository) GetAllSurgeries() ([]*domain.Surgery, error) {
	query := `
		SELECT
			id,
			name,
			type_id,
			duration_minutes,
			surgeon_id,
			urgency,
			equipment,
			created_at,
			version
		FROM surgeries
		ORDER BY id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	surgeries := []*domain.Surgery{}
	for rows.Next() {
		var surgery domain.Surgery
		var surgeonID sql.NullInt64
		var equipment []byte

		dst := []any{
			&surgery.ID,
			&surgery.Name,
			&surgery.TypeID,
			&surgery.DurationMinutes,
			&surgeonID,
			&surgery.Urgency,
			&equipment,
			&surgery.CreatedAt,
			&surgery.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		// 没有主刀医生的手术在数据库中为 NULL
		if surgeonID.Valid {
			surgery.SurgeonID = surgeonID.Int64
		}
		if len(equipment) > 0 {
			if err := json.Unmarshal(equipment, &surgery.Equipment); err != nil {
				return nil, err
			}
		}

		surgeries = append(surgeries, &surgery)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return surgeries, nil
}

func (r *Repository) CreateSurgery(surgery *domain.Surgery) error {
	query := `
		INSERT INTO surgeries (name, type_id, duration_minutes, surgeon_id, urgency, equipment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, version
	`

	equipment := surgery.Equipment
	if equipment == nil {
		equipment = map[string]any{}
	}
	payload, err := json.Marshal(equipment)
	if err != nil {
		return err
	}

	surgeonID := sql.NullInt64{Int64: surgery.SurgeonID, Valid: surgery.SurgeonID != 0}

	ctx, cancel := r.queryContext()
	defer cancel()

	params := []any{surgery.Name, surgery.TypeID, surgery.DurationMinutes, surgeonID, int32(surgery.Urgency), payload}
	dst := []any{&surgery.ID, &surgery.CreatedAt, &surgery.Version}
	return r.dbpool.QueryRowContext(ctx, query, params...).Scan(dst...)
}
