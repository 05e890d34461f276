package domain

import "time"

type Assignment struct {
	SurgeryID int64     `json:"surgeryID"`
	RoomID    int64     `json:"roomID"`
	SurgeonID int64     `json:"surgeonID"` // 为 0 时沿用手术目录中的主刀医生
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// ScheduleRun 是一次排班优化的结果
type ScheduleRun struct {
	ID           string       `json:"id"`
	WindowStart  time.Time    `json:"windowStart"`
	WindowEnd    time.Time    `json:"windowEnd"`
	Score        float64      `json:"score"`
	InitialScore float64      `json:"initialScore"`
	Iterations   int32        `json:"iterations"`
	StopReason   string       `json:"stopReason"`
	Assignments  []Assignment `json:"assignments"`
	CreatedAt    time.Time    `json:"createdAt"`
	Version      int32        `json:"-"`
}
