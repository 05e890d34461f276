package domain

import (
	"time"
)

type Surgeon struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}

type PreferenceAttribute string

const (
	PreferenceRoom          PreferenceAttribute = "room"           // 值为手术室 ID
	PreferenceEarliestStart PreferenceAttribute = "earliest_start" // 值为 15:04:05 格式的时间
	PreferenceLatestStart   PreferenceAttribute = "latest_start"   // 值为 15:04:05 格式的时间
)

type SurgeonPreference struct {
	ID        int64               `json:"id"`
	SurgeonID int64               `json:"surgeonID"`
	Attribute PreferenceAttribute `json:"attribute"`
	Value     string              `json:"value"`
}
