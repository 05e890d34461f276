package scheduler

import (
	"math"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/utils"
)

// EmptyScheduleScore 是空排班的得分，低于任何非空排班
const EmptyScheduleScore = -math.MaxFloat64

// Breakdown 记录各评分分项的原始值（未乘权重）以及加权总分
type Breakdown struct {
	Utilization     float64 `json:"utilization"`
	SetupPenalty    float64 `json:"setupPenalty"` // 准备时间总和，单位为小时
	Preference      float64 `json:"preference"`
	WorkloadBalance float64 `json:"workloadBalance"`
	Urgency         float64 `json:"urgency"`
	WaitTime        float64 `json:"waitTime"`
	Overtime        float64 `json:"overtime"` // 超过日终时间的总时长，单位为小时
	Total           float64 `json:"total"`
}

// Component 按名字返回分项的得分贡献，惩罚项取负值，使得越大越好
func (b Breakdown) Component(name string) (float64, bool) {
	switch name {
	case "utilization":
		return b.Utilization, true
	case "setup_penalty":
		return -b.SetupPenalty, true
	case "preference":
		return b.Preference, true
	case "workload_balance":
		return b.WorkloadBalance, true
	case "urgency":
		return b.Urgency, true
	case "wait_time":
		return b.WaitTime, true
	case "overtime":
		return -b.Overtime, true
	default:
		return 0, false
	}
}

type SolutionEvaluator struct {
	catalog *Catalog
	weights Weights
	dayEnd  time.Duration // 为 0 时不计算加班
}

func NewSolutionEvaluator(catalog *Catalog, weights Weights, dayEnd time.Duration) *SolutionEvaluator {
	return &SolutionEvaluator{
		catalog: catalog,
		weights: weights,
		dayEnd:  dayEnd,
	}
}

// Evaluate 返回加权总分，分数越高越好
func (e *SolutionEvaluator) Evaluate(schedule Schedule, windowStart, windowEnd time.Time) float64 {
	return e.Breakdown(schedule, windowStart, windowEnd).Total
}

func (e *SolutionEvaluator) Breakdown(schedule Schedule, windowStart, windowEnd time.Time) Breakdown {
	if len(schedule) == 0 {
		return Breakdown{Total: EmptyScheduleScore}
	}

	b := Breakdown{
		Utilization:     e.utilization(schedule, windowStart, windowEnd),
		SetupPenalty:    e.setupHours(schedule),
		Preference:      e.preference(schedule),
		WorkloadBalance: e.workloadBalance(schedule),
		Urgency:         e.urgency(schedule),
		WaitTime:        e.waitTime(schedule, windowStart, windowEnd),
		Overtime:        e.overtimeHours(schedule),
	}

	w := e.weights
	b.Total = w.Utilization*b.Utilization +
		w.SetupPenalty*b.SetupPenalty +
		w.Preference*b.Preference +
		w.WorkloadBalance*b.WorkloadBalance +
		w.Urgency*b.Urgency +
		w.WaitTime*b.WaitTime +
		w.Overtime*b.Overtime

	return b
}

// utilization 窗口内的手术时长占 (手术室数量 × 窗口时长) 的比例
func (e *SolutionEvaluator) utilization(schedule Schedule, windowStart, windowEnd time.Time) float64 {
	window := windowEnd.Sub(windowStart)
	rooms := len(e.catalog.RoomIDs())
	if window <= 0 || rooms == 0 {
		return 0
	}

	var busy time.Duration
	for _, a := range schedule {
		start, end := maxTime(a.StartTime, windowStart), minTime(a.EndTime, windowEnd)
		if end.After(start) {
			busy += end.Sub(start)
		}
	}

	return busy.Minutes() / (float64(rooms) * window.Minutes())
}

// setupHours 每个手术室中相邻手术之间的准备时间总和
func (e *SolutionEvaluator) setupHours(schedule Schedule) float64 {
	var total time.Duration
	for _, items := range lo.GroupBy(schedule, func(a domain.Assignment) int64 { return a.RoomID }) {
		sortByStart(items)
		for i := 1; i < len(items); i++ {
			from, ok1 := e.catalog.SurgeryType(items[i-1].SurgeryID)
			to, ok2 := e.catalog.SurgeryType(items[i].SurgeryID)
			if !ok1 || !ok2 {
				continue
			}
			total += e.catalog.Setup().Lookup(from, to)
		}
	}

	return total.Hours()
}

// preference 满足的医生偏好占全部可判断偏好的比例
func (e *SolutionEvaluator) preference(schedule Schedule) float64 {
	checks, satisfied := 0, 0
	for _, a := range schedule {
		for _, pref := range e.catalog.Preferences(e.catalog.SurgeonFor(a)) {
			ok, known := preferenceSatisfied(pref, a)
			if !known {
				continue
			}
			checks++
			if ok {
				satisfied++
			}
		}
	}

	if checks == 0 {
		return 0
	}
	return float64(satisfied) / float64(checks)
}

// preferenceSatisfied 第二个返回值为 false 表示这条偏好无法判断
func preferenceSatisfied(pref domain.SurgeonPreference, a domain.Assignment) (bool, bool) {
	switch pref.Attribute {
	case domain.PreferenceRoom:
		roomID, err := strconv.ParseInt(pref.Value, 10, 64)
		if err != nil {
			return false, false
		}
		return a.RoomID == roomID, true
	case domain.PreferenceEarliestStart:
		t, err := utils.ParseTimeOfDay(pref.Value)
		if err != nil || pref.Value == "" {
			return false, false
		}
		return timeOfDay(a.StartTime) >= t, true
	case domain.PreferenceLatestStart:
		t, err := utils.ParseTimeOfDay(pref.Value)
		if err != nil || pref.Value == "" {
			return false, false
		}
		return timeOfDay(a.StartTime) <= t, true
	default:
		return false, false
	}
}

// workloadBalance 1 / (1 + 各医生手术台数的标准差)，目录中没有手术的医生按 0 台计算
func (e *SolutionEvaluator) workloadBalance(schedule Schedule) float64 {
	counts := make(map[int64]float64)
	for _, id := range e.catalog.SurgeonIDs() {
		counts[id] = 0
	}
	for _, a := range schedule {
		if surgeonID := e.catalog.SurgeonFor(a); surgeonID != 0 {
			counts[surgeonID]++
		}
	}
	if len(counts) == 0 {
		return 0
	}

	mean := 0.0
	for _, n := range counts {
		mean += n
	}
	mean /= float64(len(counts))

	variance := 0.0
	for _, n := range counts {
		variance += (n - mean) * (n - mean)
	}
	variance /= float64(len(counts))

	return 1 / (1 + math.Sqrt(variance))
}

func (e *SolutionEvaluator) urgencyOf(a domain.Assignment) float64 {
	if s, ok := e.catalog.Surgery(a.SurgeryID); ok {
		return s.Urgency.Score()
	}
	return 0
}

// urgency 所有手术归一化紧急程度的平均值
func (e *SolutionEvaluator) urgency(schedule Schedule) float64 {
	sum, n := 0.0, 0
	for _, a := range schedule {
		if u := e.urgencyOf(a); u > 0 {
			sum += u
			n++
		}
	}

	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// waitTime 按紧急程度加权的开始时间靠前程度，紧急手术越早开始得分越高
func (e *SolutionEvaluator) waitTime(schedule Schedule, windowStart, windowEnd time.Time) float64 {
	window := windowEnd.Sub(windowStart)
	if window <= 0 {
		return 0
	}

	weighted, total := 0.0, 0.0
	for _, a := range schedule {
		u := e.urgencyOf(a)
		if u <= 0 {
			continue
		}
		offset := a.StartTime.Sub(windowStart).Minutes() / window.Minutes()
		offset = math.Min(1, math.Max(0, offset))
		weighted += u * (1 - offset)
		total += u
	}

	if total == 0 {
		return 0
	}
	return weighted / total
}

// overtimeHours 所有手术超出当天日终时间的时长之和
func (e *SolutionEvaluator) overtimeHours(schedule Schedule) float64 {
	if e.dayEnd <= 0 {
		return 0
	}

	var total time.Duration
	for _, a := range schedule {
		limit := startOfDay(a.StartTime).Add(e.dayEnd)
		if a.EndTime.After(limit) {
			total += a.EndTime.Sub(maxTime(a.StartTime, limit))
		}
	}

	return total.Hours()
}
