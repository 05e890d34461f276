package repository

import (
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

func (r *Repository) GetAllSurgeons() ([]*domain.Surgeon, error) {
	query := `
		SELECT id, full_name, email, is_active, created_at, version
		FROM surgeons
		ORDER BY id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	surgeons := []*domain.Surgeon{}
	for rows.Next() {
		var s domain.Surgeon
		dst := []any{&s.ID, &s.FullName, &s.Email, &s.IsActive, &s.CreatedAt, &s.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		surgeons = append(surgeons, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return surgeons, nil
}

func (r *Repository) GetSurgeonByID(id int64) (*domain.Surgeon, error) {
	query := `
		SELECT full_name, email, is_active, created_at, version
		FROM surgeons WHERE id = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	surgeon := &domain.Surgeon{
		ID: id,
	}

	dst := []any{&surgeon.FullName, &surgeon.Email, &surgeon.IsActive, &surgeon.CreatedAt, &surgeon.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return surgeon, nil
}

func (r *Repository) CreateSurgeon(surgeon *domain.Surgeon) error {
	query := `
		INSERT INTO surgeons (full_name, email, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	dst := []any{&surgeon.ID, &surgeon.CreatedAt, &surgeon.Version}
	return r.dbpool.QueryRowContext(ctx, query, surgeon.FullName, surgeon.Email, surgeon.IsActive).Scan(dst...)
}

func (r *Repository) GetAllSurgeonPreferences() ([]domain.SurgeonPreference, error) {
	query := `
		SELECT sp.id, sp.surgeon_id, sp.attribute, sp.value
		FROM surgeon_preferences sp
		INNER JOIN surgeons s ON s.id = sp.surgeon_id
		WHERE s.is_active
		ORDER BY sp.surgeon_id, sp.id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	preferences := []domain.SurgeonPreference{}
	for rows.Next() {
		var p domain.SurgeonPreference
		if err := rows.Scan(&p.ID, &p.SurgeonID, &p.Attribute, &p.Value); err != nil {
			return nil, err
		}
		preferences = append(preferences, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return preferences, nil
}

func (r *Repository) CreateSurgeonPreference(p *domain.SurgeonPreference) error {
	query := `
		INSERT INTO surgeon_preferences (surgeon_id, attribute, value)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, p.SurgeonID, string(p.Attribute), p.Value).Scan(&p.ID)
}
