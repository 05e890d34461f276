package repository

import (
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

func (r *Repository) GetAllOperatingRooms() ([]*domain.OperatingRoom, error) {
	// TIME 类型统一转换成 15:04:05 格式的字符串
	query := `
		SELECT
			id,
			name,
			to_char(operational_start_time, 'HH24:MI:SS'),
			created_at,
			version
		FROM operating_rooms
		ORDER BY id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []*domain.OperatingRoom{}
	for rows.Next() {
		var room domain.OperatingRoom
		dst := []any{&room.ID, &room.Name, &room.OperationalStartTime, &room.CreatedAt, &room.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		rooms = append(rooms, &room)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rooms, nil
}

func (r *Repository) GetOperatingRoomByID(id int64) (*domain.OperatingRoom, error) {
	query := `
		SELECT name, to_char(operational_start_time, 'HH24:MI:SS'), created_at, version
		FROM operating_rooms WHERE id = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	room := &domain.OperatingRoom{
		ID: id,
	}

	dst := []any{&room.Name, &room.OperationalStartTime, &room.CreatedAt, &room.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return room, nil
}

func (r *Repository) CreateOperatingRoom(room *domain.OperatingRoom) error {
	query := `
		INSERT INTO operating_rooms (name, operational_start_time)
		VALUES ($1, $2)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	dst := []any{&room.ID, &room.CreatedAt, &room.Version}
	return r.dbpool.QueryRowContext(ctx, query, room.Name, room.OperationalStartTime).Scan(dst...)
}
