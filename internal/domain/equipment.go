package domain

import "time"

type Equipment struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Inventory int32     `json:"inventory"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}

// EquipmentRequirement 表示某类手术对某种器械的需求数量
type EquipmentRequirement struct {
	SurgeryTypeID int64  `json:"surgeryTypeID"`
	Kind          string `json:"kind"`
	Quantity      int32  `json:"quantity"`
}
