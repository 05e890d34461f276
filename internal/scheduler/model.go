package scheduler

import (
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

// Schedule 是一组手术安排，Assignment 只包含值类型字段，复制切片即为深拷贝
type Schedule []domain.Assignment

func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	out := make(Schedule, len(s))
	copy(out, s)
	return out
}

func (s Schedule) indexOf(surgeryID int64) int {
	for i, a := range s {
		if a.SurgeryID == surgeryID {
			return i
		}
	}
	return -1
}

// Sorted 返回按手术室、开始时间排序后的副本
func (s Schedule) Sorted() Schedule {
	out := s.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RoomID != out[j].RoomID {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Candidate 是邻域中的一个候选解
type Candidate struct {
	Schedule Schedule
	Move     Move
	Tabu     bool
}

type SearchState string

const (
	StateInitializing SearchState = "initializing"
	StateIterating    SearchState = "iterating"
	StateImproved     SearchState = "improved"
	StateStalled      SearchState = "stalled"
	StateTerminated   SearchState = "terminated"
)

type StopReason string

const (
	StopMaxIterations StopReason = "max_iterations"
	StopNoImprovement StopReason = "no_improvement"
	StopTimeLimit     StopReason = "time_limit"
	StopNoCandidates  StopReason = "no_candidates"
	StopNoAdmissible  StopReason = "no_admissible"
	StopCancelled     StopReason = "cancelled"
)

type AspirationCriterion string

const (
	AspirationGlobalBest AspirationCriterion = "global_best"
	AspirationCurrent    AspirationCriterion = "current"
	AspirationComponent  AspirationCriterion = "component"
)

type DiversificationStrategy string

const (
	DiversifyRestart DiversificationStrategy = "restart"
	DiversifyTenure  DiversificationStrategy = "tenure"
	DiversifyNone    DiversificationStrategy = "none"
)

// 禁忌搜索参数
type Parameters struct {
	MaxIterations       int32               `validate:"min=1"`                                      // 最大迭代次数
	TabuTenure          int32               `validate:"min=0"`                                      // 默认禁忌期
	MinTenure           int32               `validate:"min=0"`                                      // 随机禁忌期下限
	MaxTenure           int32               `validate:"min=0,gtefield=MinTenure"`                   // 随机禁忌期上限，大于下限时启用随机禁忌期
	FrequencyThreshold  int32               `validate:"min=0"`                                      // 同一变换出现次数达到该值后延长禁忌期，0 表示不启用
	AdaptiveTenure      bool                // 接近迭代上限时缩短禁忌期
	NoImprovementRatio  float64             `validate:"min=0,max=1"`                                // 连续未改进次数占最大迭代次数的比例达到该值时停止，0 表示不启用
	TimeLimit           time.Duration       `validate:"min=0"`                                      // 运行时间上限，0 表示不限制
	Aspiration          AspirationCriterion `validate:"oneof=global_best current component"`
	AspirationComponent string              `validate:"required_if=Aspiration component"`           // 分项特赦所比较的评分分项
	SampleSize          int32               `validate:"min=1"`                                      // 每个邻域算子抽样的手术数量
	Workers             int32               `validate:"min=1"`                                      // 并发生成和评估候选解的 goroutine 数量
	Seed                int64               // 随机种子，0 表示使用当前时间
	DayEnd              string              `validate:"omitempty,datetime=15:04:05"`                // 计算加班时间的日终时间，为空时不计算
	Intensification     IntensificationParameters
	Diversification     DiversificationParameters
	Weights             Weights
}

type IntensificationParameters struct {
	Enabled      bool
	Every        int32 `validate:"min=0"` // 每改进多少次触发一次集中搜索
	ClearTabu    bool
	PerturbSteps int32 `validate:"min=0"`
}

type DiversificationParameters struct {
	Strategy       DiversificationStrategy `validate:"oneof=restart tenure none"`
	Ratio          float64                 `validate:"min=0,max=1"` // 连续未改进次数占最大迭代次数的比例达到该值时触发
	ClearTabu      bool
	TenureIncrease int32 `validate:"min=0"`
}

// 评分权重，负数表示惩罚项
type Weights struct {
	Utilization     float64
	SetupPenalty    float64
	Preference      float64
	WorkloadBalance float64
	Urgency         float64
	WaitTime        float64
	Overtime        float64
}

func DefaultWeights() Weights {
	return Weights{
		Utilization:     0.20,
		SetupPenalty:    -0.20,
		Preference:      0.15,
		WorkloadBalance: 0.15,
		Urgency:         0.10,
	}
}

func DefaultParameters() *Parameters {
	return &Parameters{
		MaxIterations:      500,
		TabuTenure:         10,
		NoImprovementRatio: 0.3,
		TimeLimit:          time.Minute,
		Aspiration:         AspirationGlobalBest,
		SampleSize:         8,
		Workers:            int32(runtime.NumCPU()),
		Intensification: IntensificationParameters{
			Every: 1,
		},
		Diversification: DiversificationParameters{
			Strategy:       DiversifyRestart,
			Ratio:          0.1,
			ClearTabu:      true,
			TenureIncrease: 5,
		},
		Weights: DefaultWeights(),
	}
}

// Result 是一次搜索的结果，Best 始终是搜索过程中得分最高的可行解
type Result struct {
	Best         Schedule
	BestScore    float64
	Breakdown    Breakdown
	InitialScore float64
	Iterations   int32
	Improvements int32
	StopReason   StopReason
	Elapsed      time.Duration
}

func (r *Result) ToScheduleRun(windowStart, windowEnd time.Time) *domain.ScheduleRun {
	return &domain.ScheduleRun{
		ID:           uuid.NewString(),
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Score:        r.BestScore,
		InitialScore: r.InitialScore,
		Iterations:   r.Iterations,
		StopReason:   string(r.StopReason),
		Assignments:  r.Best.Sorted(),
	}
}

// IterationStats 是每次迭代结束后交给 Observer 的统计信息
type IterationStats struct {
	Iteration      int32
	State          SearchState
	Candidates     int
	TabuCandidates int
	Aspirated      bool
	Diversified    bool
	Intensified    bool
	CurrentScore   float64
	BestScore      float64
}

type Observer interface {
	OnIteration(stats IterationStats)
	OnFinish(result *Result)
}
