package repository

import (
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

func (r *Repository) GetAllEquipment() ([]domain.Equipment, error) {
	query := `
		SELECT id, kind, name, inventory, created_at, version
		FROM equipment
		ORDER BY id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Equipment{}
	for rows.Next() {
		var e domain.Equipment
		dst := []any{&e.ID, &e.Kind, &e.Name, &e.Inventory, &e.CreatedAt, &e.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		items = append(items, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *Repository) CreateEquipment(e *domain.Equipment) error {
	query := `
		INSERT INTO equipment (kind, name, inventory)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	dst := []any{&e.ID, &e.CreatedAt, &e.Version}
	return r.dbpool.QueryRowContext(ctx, query, e.Kind, e.Name, e.Inventory).Scan(dst...)
}

func (r *Repository) GetAllEquipmentRequirements() ([]domain.EquipmentRequirement, error) {
	query := `
		SELECT surgery_type_id, kind, quantity
		FROM equipment_requirements
		ORDER BY surgery_type_id, kind
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requirements := []domain.EquipmentRequirement{}
	for rows.Next() {
		var req domain.EquipmentRequirement
		if err := rows.Scan(&req.SurgeryTypeID, &req.Kind, &req.Quantity); err != nil {
			return nil, err
		}
		requirements = append(requirements, req)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return requirements, nil
}

func (r *Repository) UpsertEquipmentRequirement(req *domain.EquipmentRequirement) error {
	query := `
		INSERT INTO equipment_requirements (surgery_type_id, kind, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (surgery_type_id, kind) DO UPDATE SET quantity = EXCLUDED.quantity
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, req.SurgeryTypeID, req.Kind, req.Quantity)
	return err
}
