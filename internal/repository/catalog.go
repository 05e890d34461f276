package repository

import (
	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/scheduler"
)

// LoadCatalog 读取排班所需的全部目录数据，停用的医生不会参与排班
func (r *Repository) LoadCatalog() (*scheduler.CatalogInput, error) {
	surgeries, err := r.GetAllSurgeries()
	if err != nil {
		return nil, err
	}

	rooms, err := r.GetAllOperatingRooms()
	if err != nil {
		return nil, err
	}

	surgeons, err := r.GetAllSurgeons()
	if err != nil {
		return nil, err
	}

	setupTimes, err := r.GetAllSetupTimes()
	if err != nil {
		return nil, err
	}

	equipment, err := r.GetAllEquipment()
	if err != nil {
		return nil, err
	}

	requirements, err := r.GetAllEquipmentRequirements()
	if err != nil {
		return nil, err
	}

	preferences, err := r.GetAllSurgeonPreferences()
	if err != nil {
		return nil, err
	}

	return &scheduler.CatalogInput{
		Surgeries:    surgeries,
		Rooms:        rooms,
		Surgeons:     lo.Filter(surgeons, func(s *domain.Surgeon, _ int) bool { return s.IsActive }),
		SetupTimes:   setupTimes,
		Equipment:    equipment,
		Requirements: requirements,
		Preferences:  preferences,
	}, nil
}
