package scheduler

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	alternativeRooms    = 2
	swapPairs           = 5
	shiftAttempts       = 3
	alternativeSurgeons = 2
	rescheduleAttempts  = 2
	rescheduleMinGap    = 30 * time.Minute
	consolidationGap    = 16 * time.Minute
)

var shiftOffsets = []time.Duration{-60 * time.Minute, -30 * time.Minute, 30 * time.Minute, 60 * time.Minute}

// 常用的整点开台时间
var canonicalSlots = []struct {
	label  string
	offset time.Duration
}{
	{"07:30", 7*time.Hour + 30*time.Minute},
	{"09:00", 9 * time.Hour},
	{"10:30", 10*time.Hour + 30*time.Minute},
	{"13:00", 13 * time.Hour},
	{"14:30", 14*time.Hour + 30*time.Minute},
	{"16:00", 16 * time.Hour},
}

// SurgeonQualifier 判断医生是否有资格主刀某台手术，surgery 可能为 nil
type SurgeonQualifier func(surgery *domain.Surgery, surgeonID int64) bool

type operator func(rng *rand.Rand, current Schedule) []Candidate

type NeighborhoodGenerator struct {
	catalog    *Catalog
	finder     *TimeSlotFinder
	checker    *FeasibilityChecker
	qualifies  SurgeonQualifier
	sampleSize int
	workers    int
}

func NewNeighborhoodGenerator(catalog *Catalog, finder *TimeSlotFinder, checker *FeasibilityChecker, sampleSize, workers int, qualifies SurgeonQualifier) *NeighborhoodGenerator {
	if qualifies == nil {
		qualifies = func(*domain.Surgery, int64) bool { return true }
	}

	return &NeighborhoodGenerator{
		catalog:    catalog,
		finder:     finder,
		checker:    checker,
		qualifies:  qualifies,
		sampleSize: max(1, sampleSize),
		workers:    max(1, workers),
	}
}

// GenerateNeighbors 并发执行所有邻域算子，返回的候选解都满足硬约束。
// 每个算子使用独立的随机数生成器，种子由 rng 按顺序产生，因此相同种子得到相同结果。
func (g *NeighborhoodGenerator) GenerateNeighbors(ctx context.Context, rng *rand.Rand, current Schedule, tabu *TabuList) ([]Candidate, error) {
	operators := []operator{
		g.moveRoom,
		g.swap,
		g.shiftTime,
		g.changeSurgeon,
		g.reschedule,
		g.urgencySwap,
		g.consolidate,
	}

	seeds := make([]int64, len(operators))
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	results := make([][]Candidate, len(operators))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, op := range operators {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = op(rand.New(rand.NewSource(seeds[i])), current)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	candidates := lo.Flatten(results)
	if tabu != nil {
		for i := range candidates {
			candidates[i].Tabu = tabu.IsTabu(candidates[i].Move)
		}
	}

	return candidates, nil
}

func (g *NeighborhoodGenerator) durationOf(a domain.Assignment) time.Duration {
	if s, ok := g.catalog.Surgery(a.SurgeryID); ok {
		return s.Duration()
	}
	return a.EndTime.Sub(a.StartTime)
}

func (g *NeighborhoodGenerator) typeOf(a domain.Assignment) int64 {
	t, _ := g.catalog.SurgeryType(a.SurgeryID)
	return t
}

// predecessorType 返回同一手术室中紧挨在 a 之前结束的手术类型，exclude 中的手术不参与比较
func (g *NeighborhoodGenerator) predecessorType(current Schedule, a domain.Assignment, exclude ...int64) *int64 {
	var pred *domain.Assignment
	for i := range current {
		b := &current[i]
		if b.RoomID != a.RoomID || b.SurgeryID == a.SurgeryID || b.EndTime.After(a.StartTime) || lo.Contains(exclude, b.SurgeryID) {
			continue
		}
		if pred == nil || b.EndTime.After(pred.EndTime) {
			pred = b
		}
	}
	if pred == nil {
		return nil
	}

	t, ok := g.catalog.SurgeryType(pred.SurgeryID)
	if !ok {
		return nil
	}
	return &t
}

// relocate 在 current 的副本上替换若干安排，不可行时返回 false
func (g *NeighborhoodGenerator) relocate(current Schedule, move Move, updates map[int]domain.Assignment) (Candidate, bool) {
	next := current.Clone()
	for idx, a := range updates {
		next[idx] = a
	}
	if !g.checker.IsFeasible(next) {
		return Candidate{}, false
	}

	return Candidate{Schedule: next, Move: move}, true
}

// moveRoom 把手术换到另一个手术室，开始时间尽量靠近原来的时间
func (g *NeighborhoodGenerator) moveRoom(rng *rand.Rand, current Schedule) []Candidate {
	rooms := g.catalog.RoomIDs()
	if len(rooms) < 2 {
		return nil
	}

	var out []Candidate
	for _, idx := range sampleIndices(rng, len(current), g.sampleSize) {
		a := current[idx]

		alternatives := lo.Filter(rooms, func(id int64, _ int) bool { return id != a.RoomID })
		rng.Shuffle(len(alternatives), func(i, j int) { alternatives[i], alternatives[j] = alternatives[j], alternatives[i] })

		for _, roomID := range alternatives[:min(alternativeRooms, len(alternatives))] {
			start, end, err := g.finder.FindSlot(SlotRequest{
				RoomID:      roomID,
				Duration:    g.durationOf(a),
				SurgeryType: g.typeOf(a),
				Existing:    roomAssignments(current, roomID, a.SurgeryID),
				Preferred:   a.StartTime,
			})
			if err != nil {
				continue
			}

			updated := a
			updated.RoomID, updated.StartTime, updated.EndTime = roomID, start, end
			move := RoomMove{SurgeryID: a.SurgeryID, RoomID: roomID, Start: unixMinute(start)}
			if c, ok := g.relocate(current, move, map[int]domain.Assignment{idx: updated}); ok {
				out = append(out, c)
			}
		}
	}

	return out
}

// swapPair 交换两台手术的位置，两边都使用对方原位置的前序手术类型计算准备时间
func (g *NeighborhoodGenerator) swapPair(current Schedule, i, j int) (Candidate, bool) {
	a, b := current[i], current[j]
	if a.SurgeryID == b.SurgeryID {
		return Candidate{}, false
	}

	aStart, aEnd, err := g.finder.FindSlot(SlotRequest{
		RoomID:          b.RoomID,
		Duration:        g.durationOf(a),
		SurgeryType:     g.typeOf(a),
		Existing:        roomAssignments(current, b.RoomID, a.SurgeryID, b.SurgeryID),
		PredecessorType: g.predecessorType(current, b, a.SurgeryID),
		Preferred:       b.StartTime,
	})
	if err != nil {
		return Candidate{}, false
	}

	bStart, bEnd, err := g.finder.FindSlot(SlotRequest{
		RoomID:          a.RoomID,
		Duration:        g.durationOf(b),
		SurgeryType:     g.typeOf(b),
		Existing:        roomAssignments(current, a.RoomID, a.SurgeryID, b.SurgeryID),
		PredecessorType: g.predecessorType(current, a, b.SurgeryID),
		Preferred:       a.StartTime,
	})
	if err != nil {
		return Candidate{}, false
	}

	newA, newB := a, b
	newA.RoomID, newA.StartTime, newA.EndTime = b.RoomID, aStart, aEnd
	newB.RoomID, newB.StartTime, newB.EndTime = a.RoomID, bStart, bEnd

	return g.relocate(current, NewSwapMove(newA, newB), map[int]domain.Assignment{i: newA, j: newB})
}

func (g *NeighborhoodGenerator) swap(rng *rand.Rand, current Schedule) []Candidate {
	if len(current) < 2 {
		return nil
	}

	var out []Candidate
	for range swapPairs {
		i, j := rng.Intn(len(current)), rng.Intn(len(current))
		if i == j {
			continue
		}
		if c, ok := g.swapPair(current, i, j); ok {
			out = append(out, c)
		}
	}

	return out
}

// shiftTime 在原手术室内把手术前后移动 30 或 60 分钟
func (g *NeighborhoodGenerator) shiftTime(rng *rand.Rand, current Schedule) []Candidate {
	var out []Candidate
	for _, idx := range sampleIndices(rng, len(current), g.sampleSize) {
		a := current[idx]
		existing := roomAssignments(current, a.RoomID, a.SurgeryID)

		offsets := make([]time.Duration, len(shiftOffsets))
		copy(offsets, shiftOffsets)
		rng.Shuffle(len(offsets), func(i, j int) { offsets[i], offsets[j] = offsets[j], offsets[i] })

		for _, offset := range offsets[:shiftAttempts] {
			start, end, err := g.finder.FindSlot(SlotRequest{
				RoomID:      a.RoomID,
				Duration:    g.durationOf(a),
				SurgeryType: g.typeOf(a),
				Existing:    existing,
				Preferred:   a.StartTime.Add(offset),
			})
			if err != nil || start.Equal(a.StartTime) {
				continue
			}

			updated := a
			updated.StartTime, updated.EndTime = start, end
			move := ShiftMove{SurgeryID: a.SurgeryID, RoomID: a.RoomID, Start: unixMinute(start)}
			if c, ok := g.relocate(current, move, map[int]domain.Assignment{idx: updated}); ok {
				out = append(out, c)
			}
		}
	}

	return out
}

// changeSurgeon 为手术更换一位同时段空闲的医生
func (g *NeighborhoodGenerator) changeSurgeon(rng *rand.Rand, current Schedule) []Candidate {
	surgeons := g.catalog.SurgeonIDs()
	if len(surgeons) < 2 {
		return nil
	}

	var out []Candidate
	for _, idx := range sampleIndices(rng, len(current), g.sampleSize) {
		a := current[idx]
		incumbent := g.catalog.SurgeonFor(a)
		surgery, _ := g.catalog.Surgery(a.SurgeryID)

		alternatives := lo.Filter(surgeons, func(id int64, _ int) bool {
			return id != incumbent && g.qualifies(surgery, id)
		})
		rng.Shuffle(len(alternatives), func(i, j int) { alternatives[i], alternatives[j] = alternatives[j], alternatives[i] })

		for _, surgeonID := range alternatives[:min(alternativeSurgeons, len(alternatives))] {
			if !g.checker.IsSurgeonAvailable(surgeonID, a.StartTime, a.EndTime, current, a.SurgeryID) {
				continue
			}

			updated := a
			updated.SurgeonID = surgeonID
			move := SurgeonMove{SurgeryID: a.SurgeryID, SurgeonID: surgeonID}
			if c, ok := g.relocate(current, move, map[int]domain.Assignment{idx: updated}); ok {
				out = append(out, c)
			}
		}
	}

	return out
}

// reschedule 把手术移动到当天的某个常用开台时间
func (g *NeighborhoodGenerator) reschedule(rng *rand.Rand, current Schedule) []Candidate {
	var out []Candidate
	for _, idx := range sampleIndices(rng, len(current), g.sampleSize) {
		a := current[idx]
		existing := roomAssignments(current, a.RoomID, a.SurgeryID)
		day := startOfDay(a.StartTime)

		tried := 0
		for _, k := range rng.Perm(len(canonicalSlots)) {
			if tried >= rescheduleAttempts {
				break
			}

			slot := canonicalSlots[k]
			anchor := day.Add(slot.offset)
			if diff := anchor.Sub(a.StartTime); diff > -rescheduleMinGap && diff < rescheduleMinGap {
				continue
			}
			tried++

			start, end, err := g.finder.FindSlot(SlotRequest{
				RoomID:      a.RoomID,
				Duration:    g.durationOf(a),
				SurgeryType: g.typeOf(a),
				Existing:    existing,
				Preferred:   anchor,
			})
			if err != nil || start.Equal(a.StartTime) {
				continue
			}

			updated := a
			updated.StartTime, updated.EndTime = start, end
			move := RescheduleMove{SurgeryID: a.SurgeryID, RoomID: a.RoomID, Start: unixMinute(start), SlotLabel: slot.label}
			if c, ok := g.relocate(current, move, map[int]domain.Assignment{idx: updated}); ok {
				out = append(out, c)
			}
		}
	}

	return out
}

// urgencySwap 让排在后面的高紧急度手术与排在前面的低紧急度手术交换位置
func (g *NeighborhoodGenerator) urgencySwap(rng *rand.Rand, current Schedule) []Candidate {
	type pair struct{ high, low int }

	urgencyOf := func(a domain.Assignment) domain.UrgencyLevel {
		if s, ok := g.catalog.Surgery(a.SurgeryID); ok {
			return s.Urgency
		}
		return 0
	}

	var pairs []pair
	for i, high := range current {
		if urgencyOf(high) != domain.UrgencyHigh {
			continue
		}
		for j, low := range current {
			u := urgencyOf(low)
			if (u == domain.UrgencyLow || u == domain.UrgencyMedium) && high.StartTime.After(low.StartTime) {
				pairs = append(pairs, pair{high: i, low: j})
			}
		}
	}

	rng.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })

	var out []Candidate
	for _, p := range pairs[:min(swapPairs, len(pairs))] {
		if c, ok := g.swapPair(current, p.high, p.low); ok {
			out = append(out, c)
		}
	}

	return out
}

// consolidate 把同一位医生相邻的两台手术安排到同一手术室并尽量首尾相接
func (g *NeighborhoodGenerator) consolidate(rng *rand.Rand, current Schedule) []Candidate {
	bySurgeon := make(map[int64][]int)
	for i, a := range current {
		if surgeonID := g.catalog.SurgeonFor(a); surgeonID != 0 {
			bySurgeon[surgeonID] = append(bySurgeon[surgeonID], i)
		}
	}

	surgeonIDs := lo.Keys(bySurgeon)
	sort.Slice(surgeonIDs, func(i, j int) bool { return surgeonIDs[i] < surgeonIDs[j] })
	rng.Shuffle(len(surgeonIDs), func(i, j int) { surgeonIDs[i], surgeonIDs[j] = surgeonIDs[j], surgeonIDs[i] })

	var out []Candidate
	attempts := 0
	for _, surgeonID := range surgeonIDs {
		indices := bySurgeon[surgeonID]
		sort.Slice(indices, func(i, j int) bool { return current[indices[i]].StartTime.Before(current[indices[j]].StartTime) })

		for k := 1; k < len(indices); k++ {
			if attempts >= g.sampleSize {
				return out
			}

			prev, next := current[indices[k-1]], current[indices[k]]
			if prev.RoomID == next.RoomID && next.StartTime.Sub(prev.EndTime) <= consolidationGap {
				continue
			}
			attempts++

			prevType := g.typeOf(prev)
			start, end, err := g.finder.FindSlot(SlotRequest{
				RoomID:          prev.RoomID,
				Duration:        g.durationOf(next),
				SurgeryType:     g.typeOf(next),
				Existing:        roomAssignments(current, prev.RoomID, next.SurgeryID),
				PredecessorType: &prevType,
				Preferred:       prev.EndTime,
			})
			if err != nil || (start.Equal(next.StartTime) && prev.RoomID == next.RoomID) {
				continue
			}

			updated := next
			updated.RoomID, updated.StartTime, updated.EndTime = prev.RoomID, start, end
			move := ConsolidateMove{SurgeryID: next.SurgeryID, RoomID: prev.RoomID, Start: unixMinute(start)}
			if c, ok := g.relocate(current, move, map[int]domain.Assignment{indices[k]: updated}); ok {
				out = append(out, c)
			}
		}
	}

	return out
}
