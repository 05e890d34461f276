package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

var ErrNoSlot = errors.New("找不到可用的时间段")

type SlotRequest struct {
	RoomID          int64
	Duration        time.Duration
	SurgeryType     int64
	Existing        []domain.Assignment // 目标手术室中已有的安排，不能包含待安排的手术本身
	PredecessorType *int64              // 显式指定前序手术的类型，为 nil 时根据 Existing 推断
	Preferred       time.Time           // 期望的开始时间，为零值时追加到手术室最后一台手术之后
	Day             time.Time           // 追加模式下参考的日期，为零值时使用当天
}

type TimeSlotFinder struct {
	catalog *Catalog
	now     Clock
}

func NewTimeSlotFinder(catalog *Catalog, now Clock) *TimeSlotFinder {
	if now == nil {
		now = time.Now
	}

	return &TimeSlotFinder{
		catalog: catalog,
		now:     now,
	}
}

// FindSlot 返回一个考虑了清洁时间和准备时间的 [start, end) 时间段
func (f *TimeSlotFinder) FindSlot(req SlotRequest) (time.Time, time.Time, error) {
	roomStart, ok := f.catalog.RoomStart(req.RoomID)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: 手术室 %d 不存在", ErrNoSlot, req.RoomID)
	}
	if req.Duration <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: 手术时长必须大于 0", ErrNoSlot)
	}

	now := f.now().Truncate(time.Minute)

	var start time.Time
	if req.Preferred.IsZero() {
		start = f.appendSlot(req, roomStart, now)
	} else {
		var err error
		start, err = f.anchoredSlot(req, roomStart, now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	end := start.Add(req.Duration)
	if end.After(startOfDay(start).AddDate(0, 0, 1)) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: 手术室 %d 在 %s 当天剩余时间不足", ErrNoSlot, req.RoomID, start.Format("2006-01-02"))
	}

	return start, end, nil
}

// appendSlot 将手术追加到手术室最后一台手术之后
func (f *TimeSlotFinder) appendSlot(req SlotRequest, roomStart time.Duration, now time.Time) time.Time {
	day := req.Day
	if day.IsZero() {
		day = now
	}

	anchor := startOfDay(day).Add(roomStart)
	if sameDay(now, anchor) && now.After(anchor) {
		anchor = now
	}

	var pred *domain.Assignment
	for i := range req.Existing {
		if pred == nil || req.Existing[i].EndTime.After(pred.EndTime) {
			pred = &req.Existing[i]
		}
	}
	if pred != nil && pred.EndTime.After(anchor) {
		anchor = pred.EndTime
	}

	start := anchor.Add(CleanupBuffer + f.setupAfter(req, pred))

	// 跨天后可能早于手术室当天的开放时间，需要顺延
	if open := startOfDay(start).Add(roomStart); start.Before(open) {
		start = open
	}

	return start
}

// anchoredSlot 从期望时间开始寻找最早的可用时间段，跳过所有冲突的安排
func (f *TimeSlotFinder) anchoredSlot(req SlotRequest, roomStart time.Duration, now time.Time) (time.Time, error) {
	lower := req.Preferred
	if open := startOfDay(lower).Add(roomStart); lower.Before(open) {
		lower = open
	}
	if sameDay(now, lower) && now.After(lower) {
		lower = now
	}

	// 锚点之前最近结束的安排就是前序手术
	var pred *domain.Assignment
	for i := range req.Existing {
		if req.Existing[i].EndTime.After(lower) {
			continue
		}
		if pred == nil || req.Existing[i].EndTime.After(pred.EndTime) {
			pred = &req.Existing[i]
		}
	}

	start := lower
	if pred != nil {
		start = maxTime(start, pred.EndTime.Add(CleanupBuffer+f.setupAfter(req, pred)))
	}

	// 每个冲突的安排至多把开始时间往后推一次
	for range len(req.Existing) + 1 {
		end := start.Add(req.Duration)

		var blocker *domain.Assignment
		for i := range req.Existing {
			a := &req.Existing[i]
			if overlaps(start, end, a.StartTime, a.EndTime) && (blocker == nil || a.EndTime.After(blocker.EndTime)) {
				blocker = a
			}
		}
		if blocker == nil {
			break
		}

		blockerType, _ := f.catalog.SurgeryType(blocker.SurgeryID)
		start = blocker.EndTime.Add(CleanupBuffer + f.catalog.Setup().Lookup(blockerType, req.SurgeryType))
	}

	if !sameDay(start, lower) {
		return time.Time{}, fmt.Errorf("%w: 手术室 %d 在 %s 当天没有空闲时间", ErrNoSlot, req.RoomID, lower.Format("2006-01-02"))
	}

	return start, nil
}

// setupAfter 计算前序手术之后的准备时间，显式指定的前序类型优先，都没有时使用默认值
func (f *TimeSlotFinder) setupAfter(req SlotRequest, pred *domain.Assignment) time.Duration {
	if req.PredecessorType != nil {
		return f.catalog.Setup().Lookup(*req.PredecessorType, req.SurgeryType)
	}
	if pred == nil {
		return DefaultSetupTime
	}

	predType, ok := f.catalog.SurgeryType(pred.SurgeryID)
	if !ok {
		return DefaultSetupTime
	}

	return f.catalog.Setup().Lookup(predType, req.SurgeryType)
}
