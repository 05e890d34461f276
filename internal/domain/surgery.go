package domain

import (
	"fmt"
	"strings"
	"time"
)

type UrgencyLevel int32

const (
	UrgencyLow    UrgencyLevel = 1
	UrgencyMedium UrgencyLevel = 2
	UrgencyHigh   UrgencyLevel = 3
)

func (u UrgencyLevel) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Score 返回归一化后的紧急程度，High 为 1，未知等级为 0
func (u UrgencyLevel) Score() float64 {
	if u < UrgencyLow || u > UrgencyHigh {
		return 0
	}
	return float64(u) / float64(UrgencyHigh)
}

func ParseUrgencyLevel(s string) (UrgencyLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return UrgencyLow, nil
	case "medium":
		return UrgencyMedium, nil
	case "high":
		return UrgencyHigh, nil
	default:
		return 0, fmt.Errorf("未知的紧急程度 %q", s)
	}
}

type Surgery struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	TypeID          int64          `json:"typeID"`
	DurationMinutes int32          `json:"durationMinutes"`
	SurgeonID       int64          `json:"surgeonID"` // 为 0 时表示没有指定主刀医生
	Urgency         UrgencyLevel   `json:"urgency"`
	Equipment       map[string]any `json:"equipment"` // 单台手术的器械需求，会覆盖按手术类型配置的需求
	CreatedAt       time.Time      `json:"createdAt"`
	Version         int32          `json:"-"`
}

func (s *Surgery) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
