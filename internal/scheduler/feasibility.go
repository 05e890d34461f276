package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

var (
	ErrInvalidAssignment   = errors.New("存在不合法的手术安排")
	ErrDuplicateSurgery    = errors.New("同一台手术被安排了多次")
	ErrRoomConflict        = errors.New("同一手术室的手术时间重叠")
	ErrSurgeonConflict     = errors.New("同一医生的手术时间重叠")
	ErrEquipmentOverloaded = errors.New("器械需求超过库存")
)

type FeasibilityChecker struct {
	catalog *Catalog
}

func NewFeasibilityChecker(catalog *Catalog) *FeasibilityChecker {
	return &FeasibilityChecker{catalog: catalog}
}

func (c *FeasibilityChecker) IsFeasible(schedule Schedule) bool {
	return c.Validate(schedule) == nil
}

// Validate 检查所有硬约束，返回第一个被违反的约束
func (c *FeasibilityChecker) Validate(schedule Schedule) error {
	seen := make(map[int64]struct{}, len(schedule))
	for i, a := range schedule {
		if a.SurgeryID == 0 || a.RoomID == 0 || a.StartTime.IsZero() || a.EndTime.IsZero() || !a.StartTime.Before(a.EndTime) {
			return fmt.Errorf("%w: 第 %d 项", ErrInvalidAssignment, i+1)
		}
		if _, exists := seen[a.SurgeryID]; exists {
			return fmt.Errorf("%w: 手术 %d", ErrDuplicateSurgery, a.SurgeryID)
		}
		seen[a.SurgeryID] = struct{}{}
	}

	// 检查手术室冲突
	byRoom := lo.GroupBy(schedule, func(a domain.Assignment) int64 { return a.RoomID })
	for roomID, items := range byRoom {
		if first, second, ok := findOverlap(items); ok {
			return fmt.Errorf("%w: 手术室 %d 中的手术 %d 和 %d", ErrRoomConflict, roomID, first, second)
		}
	}

	// 检查医生冲突，无法确定主刀医生的手术不参与检查
	bySurgeon := make(map[int64][]domain.Assignment)
	for _, a := range schedule {
		if surgeonID := c.catalog.SurgeonFor(a); surgeonID != 0 {
			bySurgeon[surgeonID] = append(bySurgeon[surgeonID], a)
		}
	}
	for surgeonID, items := range bySurgeon {
		if first, second, ok := findOverlap(items); ok {
			return fmt.Errorf("%w: 医生 %d 的手术 %d 和 %d", ErrSurgeonConflict, surgeonID, first, second)
		}
	}

	return c.validateEquipment(schedule)
}

// findOverlap 按开始时间排序后检查是否存在重叠，items 会被重新排序
func findOverlap(items []domain.Assignment) (int64, int64, bool) {
	if len(items) < 2 {
		return 0, 0, false
	}

	sortByStart(items)
	latest := items[0]
	for _, a := range items[1:] {
		if a.StartTime.Before(latest.EndTime) {
			return latest.SurgeryID, a.SurgeryID, true
		}
		if a.EndTime.After(latest.EndTime) {
			latest = a
		}
	}

	return 0, 0, false
}

type demandEvent struct {
	at    time.Time
	delta int32
}

// peakDemand 计算一组事件的最大并发需求，同一时刻先处理释放事件
func peakDemand(events []demandEvent) int32 {
	sort.Slice(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			return events[i].delta < events[j].delta
		}
		return events[i].at.Before(events[j].at)
	})

	var current, peak int32
	for _, e := range events {
		current += e.delta
		peak = max(peak, current)
	}

	return peak
}

func (c *FeasibilityChecker) validateEquipment(schedule Schedule) error {
	events := make(map[string][]demandEvent)
	for _, a := range schedule {
		for kind, qty := range c.catalog.Requirements(a.SurgeryID) {
			if qty <= 0 {
				continue
			}
			// 没有库存记录的器械视为不受限制
			if _, ok := c.catalog.Inventory(kind); !ok {
				continue
			}
			events[kind] = append(events[kind], demandEvent{at: a.StartTime, delta: qty}, demandEvent{at: a.EndTime, delta: -qty})
		}
	}

	for kind, evs := range events {
		inventory, _ := c.catalog.Inventory(kind)
		if peak := peakDemand(evs); peak > inventory {
			return fmt.Errorf("%w: %s 需要 %d 件，库存 %d 件", ErrEquipmentOverloaded, kind, peak, inventory)
		}
	}

	return nil
}

// IsSurgeonAvailable 检查医生在 [start, end) 内是否空闲，ignoreSurgeryID 对应的安排不参与检查
func (c *FeasibilityChecker) IsSurgeonAvailable(surgeonID int64, start, end time.Time, schedule Schedule, ignoreSurgeryID int64) bool {
	if surgeonID == 0 {
		return true
	}

	for _, a := range schedule {
		if a.SurgeryID == ignoreSurgeryID {
			continue
		}
		if c.catalog.SurgeonFor(a) == surgeonID && overlaps(start, end, a.StartTime, a.EndTime) {
			return false
		}
	}

	return true
}

// IsEquipmentAvailable 检查把手术安排在 [start, end) 后各类器械的并发需求是否超过库存
func (c *FeasibilityChecker) IsEquipmentAvailable(surgeryID int64, start, end time.Time, schedule Schedule) bool {
	for kind, qty := range c.catalog.Requirements(surgeryID) {
		if qty <= 0 {
			continue
		}
		inventory, ok := c.catalog.Inventory(kind)
		if !ok {
			continue
		}
		if qty > inventory {
			return false
		}

		events := make([]demandEvent, 0)
		for _, a := range schedule {
			if a.SurgeryID == surgeryID || !overlaps(start, end, a.StartTime, a.EndTime) {
				continue
			}
			other := c.catalog.Requirements(a.SurgeryID)[kind]
			if other <= 0 {
				continue
			}
			events = append(events,
				demandEvent{at: maxTime(start, a.StartTime), delta: other},
				demandEvent{at: minTime(end, a.EndTime), delta: -other},
			)
		}

		if peakDemand(events)+qty > inventory {
			return false
		}
	}

	return true
}
