package domain

import "time"

type OperatingRoom struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	OperationalStartTime string    `json:"operationalStartTime"` // 格式为 15:04:05，为空时表示从午夜开始
	CreatedAt            time.Time `json:"createdAt"`
	Version              int32     `json:"-"`
}

// SetupTime 表示从一种手术类型切换到另一种手术类型所需的准备时间
type SetupTime struct {
	FromTypeID   int64 `json:"fromTypeID"`
	ToTypeID     int64 `json:"toTypeID"`
	SetupMinutes int32 `json:"setupMinutes"`
}
