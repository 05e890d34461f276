package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

// 测试统一使用 2025-03-10 这一天
func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

var testDay = at(0, 0)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// 前一天中午，不会影响测试当天的排班
var yesterday = fixedClock(at(12, 0).AddDate(0, 0, -1))

func testInput() *CatalogInput {
	return &CatalogInput{
		Surgeries: []*domain.Surgery{
			{ID: 1, Name: "阑尾切除术", TypeID: 1, DurationMinutes: 60, SurgeonID: 100, Urgency: domain.UrgencyHigh},
			{ID: 2, Name: "胆囊切除术", TypeID: 2, DurationMinutes: 90, SurgeonID: 100, Urgency: domain.UrgencyLow},
			{ID: 3, Name: "疝修补术", TypeID: 1, DurationMinutes: 45, SurgeonID: 200, Urgency: domain.UrgencyMedium},
			{ID: 4, Name: "甲状腺切除术", TypeID: 2, DurationMinutes: 30, SurgeonID: 200, Urgency: domain.UrgencyHigh},
		},
		Rooms: []*domain.OperatingRoom{
			{ID: 10, Name: "1 号手术室", OperationalStartTime: "08:00:00"},
			{ID: 20, Name: "2 号手术室", OperationalStartTime: "08:00:00"},
		},
		Surgeons: []*domain.Surgeon{
			{ID: 100, FullName: "王伟", Email: "ww1@example.com", IsActive: true},
			{ID: 200, FullName: "李娜", Email: "ln2@example.com", IsActive: true},
			{ID: 300, FullName: "张强", Email: "zq3@example.com", IsActive: true},
		},
		SetupTimes: []domain.SetupTime{
			{FromTypeID: 1, ToTypeID: 1, SetupMinutes: 5},
			{FromTypeID: 1, ToTypeID: 2, SetupMinutes: 30},
			{FromTypeID: 2, ToTypeID: 1, SetupMinutes: 20},
			{FromTypeID: 2, ToTypeID: 2, SetupMinutes: 5},
		},
	}
}

func newTestCatalog(t *testing.T, mutate ...func(*CatalogInput)) *Catalog {
	t.Helper()

	input := testInput()
	for _, m := range mutate {
		m(input)
	}

	catalog, err := NewCatalog(input)
	require.NoError(t, err)
	return catalog
}

func assignment(surgeryID, roomID int64, start, end time.Time) domain.Assignment {
	return domain.Assignment{SurgeryID: surgeryID, RoomID: roomID, StartTime: start, EndTime: end}
}

// feasibleSchedule 是一个满足所有硬约束的排班
func feasibleSchedule() Schedule {
	return Schedule{
		assignment(1, 10, at(8, 30), at(9, 30)),
		assignment(2, 10, at(10, 15), at(11, 45)),
		assignment(3, 20, at(8, 30), at(9, 15)),
		assignment(4, 20, at(13, 0), at(13, 30)),
	}
}

func testParameters() *Parameters {
	p := DefaultParameters()
	p.MaxIterations = 30
	p.TimeLimit = 0
	p.Seed = 42
	p.Workers = 4
	p.SampleSize = 4
	return p
}
