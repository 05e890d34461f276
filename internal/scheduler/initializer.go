package scheduler

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

var ErrUnplaceable = errors.New("无法为手术找到可行的位置")

// 推迟锚点时每次至少推迟的时长
const placementStep = 15 * time.Minute

// Initializer 用贪心的方式构造初始排班，也用于分散搜索时的随机重启
type Initializer struct {
	catalog     *Catalog
	finder      *TimeSlotFinder
	checker     *FeasibilityChecker
	windowStart time.Time
	windowEnd   time.Time
}

func NewInitializer(catalog *Catalog, finder *TimeSlotFinder, checker *FeasibilityChecker, windowStart, windowEnd time.Time) *Initializer {
	return &Initializer{
		catalog:     catalog,
		finder:      finder,
		checker:     checker,
		windowStart: windowStart,
		windowEnd:   windowEnd,
	}
}

// Build 依次把手术放到结束时间最早的可行位置。
// shuffle 为 true 时随机打乱手术和手术室的顺序，用于生成不同的初始解。
func (in *Initializer) Build(rng *rand.Rand, shuffle bool) (Schedule, error) {
	surgeries := in.catalog.Surgeries()
	if shuffle {
		rng.Shuffle(len(surgeries), func(i, j int) { surgeries[i], surgeries[j] = surgeries[j], surgeries[i] })
	} else {
		// 紧急程度高的优先，其次是时长长的
		sort.SliceStable(surgeries, func(i, j int) bool {
			if surgeries[i].Urgency != surgeries[j].Urgency {
				return surgeries[i].Urgency > surgeries[j].Urgency
			}
			if surgeries[i].DurationMinutes != surgeries[j].DurationMinutes {
				return surgeries[i].DurationMinutes > surgeries[j].DurationMinutes
			}
			return surgeries[i].ID < surgeries[j].ID
		})
	}

	schedule := make(Schedule, 0, len(surgeries))
	for _, surgery := range surgeries {
		rooms := append([]int64(nil), in.catalog.RoomIDs()...)
		if shuffle {
			rng.Shuffle(len(rooms), func(i, j int) { rooms[i], rooms[j] = rooms[j], rooms[i] })
		}

		a, ok := in.place(schedule, surgery, rooms)
		if !ok {
			return nil, fmt.Errorf("%w: 手术 %d", ErrUnplaceable, surgery.ID)
		}
		schedule = append(schedule, a)
	}

	if err := in.checker.Validate(schedule); err != nil {
		return nil, err
	}

	return schedule, nil
}

func (in *Initializer) days() []time.Time {
	days := []time.Time{startOfDay(in.windowStart)}
	for day := days[0].AddDate(0, 0, 1); day.Before(in.windowEnd); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

// place 按天寻找，同一天内选择结束时间最早的手术室
func (in *Initializer) place(schedule Schedule, surgery *domain.Surgery, rooms []int64) (domain.Assignment, bool) {
	for _, day := range in.days() {
		var best *domain.Assignment
		for _, roomID := range rooms {
			a, ok := in.placeInRoom(schedule, surgery, roomID, maxTime(day, in.windowStart))
			if ok && (best == nil || a.EndTime.Before(best.EndTime)) {
				best = &a
			}
		}
		if best != nil {
			return *best, true
		}
	}

	return domain.Assignment{}, false
}

// placeInRoom 从 anchor 开始寻找空档，遇到医生或器械冲突时推迟锚点重试
func (in *Initializer) placeInRoom(schedule Schedule, surgery *domain.Surgery, roomID int64, anchor time.Time) (domain.Assignment, bool) {
	existing := roomAssignments(schedule, roomID)

	for range 4*len(schedule) + 8 {
		start, end, err := in.finder.FindSlot(SlotRequest{
			RoomID:      roomID,
			Duration:    surgery.Duration(),
			SurgeryType: surgery.TypeID,
			Existing:    existing,
			Preferred:   anchor,
		})
		if err != nil {
			return domain.Assignment{}, false
		}
		if !in.windowEnd.IsZero() && end.After(in.windowEnd) {
			return domain.Assignment{}, false
		}

		if !in.checker.IsSurgeonAvailable(surgery.SurgeonID, start, end, schedule, surgery.ID) {
			anchor = maxTime(start.Add(placementStep), in.surgeonFreeAt(schedule, surgery.SurgeonID, start, end))
			continue
		}
		if !in.checker.IsEquipmentAvailable(surgery.ID, start, end, schedule) {
			anchor = start.Add(placementStep)
			continue
		}

		return domain.Assignment{
			SurgeryID: surgery.ID,
			RoomID:    roomID,
			StartTime: start,
			EndTime:   end,
		}, true
	}

	return domain.Assignment{}, false
}

// surgeonFreeAt 返回医生在 [start, end) 内所有冲突手术中最晚的结束时间
func (in *Initializer) surgeonFreeAt(schedule Schedule, surgeonID int64, start, end time.Time) time.Time {
	free := start
	for _, a := range schedule {
		if in.catalog.SurgeonFor(a) == surgeonID && overlaps(start, end, a.StartTime, a.EndTime) {
			free = maxTime(free, a.EndTime)
		}
	}
	return free
}
