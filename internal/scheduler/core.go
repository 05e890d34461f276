package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	ErrEmptySchedule          = errors.New("初始排班为空")
	ErrInvalidInitialSchedule = errors.New("初始排班不满足硬约束")
)

// TabuSearch 是禁忌搜索的主循环。候选解的生成和评估可以并发执行，
// 当前解、最优解和禁忌表的更新始终在同一个 goroutine 中完成。
type TabuSearch struct {
	params      *Parameters
	checker     *FeasibilityChecker
	evaluator   *SolutionEvaluator
	neighbors   *NeighborhoodGenerator
	initializer *Initializer
	tabu        *TabuList
	rng         *rand.Rand
	observer    Observer
	logger      *slog.Logger
	windowStart time.Time
	windowEnd   time.Time
	state       SearchState
}

type scoredCandidate struct {
	Candidate
	breakdown Breakdown
	feasible  bool
}

// searchState 是主循环中可变的部分
type searchState struct {
	current          Schedule
	currentBreakdown Breakdown
	best             Schedule
	bestBreakdown    Breakdown
	noImprovement    int32 // 分散搜索使用的计数，随机重启后清零
	sinceImprovement int32 // 距离最优解上次改进的迭代次数
	improvements     int32
}

func (s *TabuSearch) State() SearchState {
	return s.state
}

func (s *TabuSearch) transition(to SearchState) {
	if s.state != to {
		s.logger.Debug("搜索状态变化", slog.String("from", string(s.state)), slog.String("to", string(to)))
	}
	s.state = to
}

// Search 从 initial 出发执行禁忌搜索，总是返回搜索过程中得分最高的可行解
func (s *TabuSearch) Search(ctx context.Context, initial Schedule) (*Result, error) {
	s.transition(StateInitializing)
	started := time.Now()

	if len(initial) == 0 {
		s.transition(StateTerminated)
		return nil, ErrEmptySchedule
	}
	if err := s.checker.Validate(initial); err != nil {
		s.transition(StateTerminated)
		return nil, fmt.Errorf("%w: %w", ErrInvalidInitialSchedule, err)
	}

	st := &searchState{
		current: initial.Clone(),
		best:    initial.Clone(),
	}
	st.currentBreakdown = s.evaluator.Breakdown(st.current, s.windowStart, s.windowEnd)
	st.bestBreakdown = st.currentBreakdown

	result := &Result{InitialScore: st.bestBreakdown.Total}
	stopThreshold := ratioThreshold(s.params.NoImprovementRatio, s.params.MaxIterations)
	diversifyThreshold := ratioThreshold(s.params.Diversification.Ratio, s.params.MaxIterations)

	s.logger.Info("开始禁忌搜索",
		slog.Int("surgeries", len(initial)),
		slog.Float64("initialScore", result.InitialScore),
		slog.Int("maxIterations", int(s.params.MaxIterations)),
	)

	s.transition(StateIterating)
	var iteration int32
	for iteration = 0; iteration < s.params.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			result.StopReason = StopCancelled
			break
		}
		if s.params.TimeLimit > 0 && time.Since(started) >= s.params.TimeLimit {
			result.StopReason = StopTimeLimit
			break
		}

		s.tabu.DecrementAll()
		if s.params.AdaptiveTenure {
			s.tabu.AdjustForProgress(float64(iteration) / float64(s.params.MaxIterations))
		}

		candidates, err := s.neighbors.GenerateNeighbors(ctx, s.rng, st.current, s.tabu)
		if err != nil {
			// 邻域生成只会因为 ctx 被取消而失败
			result.StopReason = StopCancelled
			break
		}
		if len(candidates) == 0 {
			result.StopReason = StopNoCandidates
			break
		}

		scored, err := s.score(ctx, candidates)
		if err != nil {
			result.StopReason = StopCancelled
			break
		}

		chosen, aspirated := s.selectCandidate(scored, st)
		if chosen == nil {
			result.StopReason = StopNoAdmissible
			break
		}

		st.current = chosen.Schedule
		st.currentBreakdown = chosen.breakdown
		s.tabu.Add(chosen.Move)

		stats := IterationStats{
			Iteration:      iteration + 1,
			Candidates:     len(candidates),
			TabuCandidates: countTabu(candidates),
			Aspirated:      aspirated,
		}

		if s.promote(st) {
			s.transition(StateImproved)
			s.logger.Debug("找到更优解", slog.Int("iteration", int(iteration+1)), slog.Float64("score", st.bestBreakdown.Total))

			if s.params.Intensification.Enabled && s.params.Intensification.Every > 0 && st.improvements%s.params.Intensification.Every == 0 {
				s.intensify(ctx, st)
				stats.Intensified = true
			}
		} else {
			st.noImprovement++
			st.sinceImprovement++
			s.transition(StateStalled)
		}

		if stopThreshold > 0 && st.sinceImprovement >= stopThreshold {
			stats.State, stats.CurrentScore, stats.BestScore = s.state, st.currentBreakdown.Total, st.bestBreakdown.Total
			s.notify(stats)
			iteration++
			result.StopReason = StopNoImprovement
			break
		}

		if diversifyThreshold > 0 && st.noImprovement > 0 && st.noImprovement%diversifyThreshold == 0 {
			stats.Diversified = s.diversify(st)
		}

		stats.State, stats.CurrentScore, stats.BestScore = s.state, st.currentBreakdown.Total, st.bestBreakdown.Total
		s.notify(stats)
		s.transition(StateIterating)
	}
	if result.StopReason == "" {
		result.StopReason = StopMaxIterations
	}

	s.transition(StateTerminated)

	result.Best = st.best
	result.BestScore = st.bestBreakdown.Total
	result.Breakdown = st.bestBreakdown
	result.Iterations = iteration
	result.Improvements = st.improvements
	result.Elapsed = time.Since(started)

	s.logger.Info("禁忌搜索结束",
		slog.String("stopReason", string(result.StopReason)),
		slog.Int("iterations", int(result.Iterations)),
		slog.Int("improvements", int(result.Improvements)),
		slog.Float64("bestScore", result.BestScore),
		slog.Duration("elapsed", result.Elapsed),
	)

	if s.observer != nil {
		s.observer.OnFinish(result)
	}

	return result, nil
}

func ratioThreshold(ratio float64, maxIterations int32) int32 {
	if ratio <= 0 {
		return 0
	}
	return max(1, int32(math.Ceil(ratio*float64(maxIterations))))
}

func countTabu(candidates []Candidate) int {
	n := 0
	for _, c := range candidates {
		if c.Tabu {
			n++
		}
	}
	return n
}

// promote 在当前解严格优于最优解时更新最优解，返回是否发生了改进
func (s *TabuSearch) promote(st *searchState) bool {
	if st.currentBreakdown.Total <= st.bestBreakdown.Total {
		return false
	}

	st.best = st.current.Clone()
	st.bestBreakdown = st.currentBreakdown
	st.noImprovement = 0
	st.sinceImprovement = 0
	st.improvements++
	return true
}

func (s *TabuSearch) notify(stats IterationStats) {
	if s.observer != nil {
		s.observer.OnIteration(stats)
	}
}

// score 并发评估所有候选解，并再次检查可行性
func (s *TabuSearch) score(ctx context.Context, candidates []Candidate) ([]scoredCandidate, error) {
	scored := make([]scoredCandidate, len(candidates))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, int(s.params.Workers)))
	for i := range candidates {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scored[i] = scoredCandidate{
				Candidate: candidates[i],
				breakdown: s.evaluator.Breakdown(candidates[i].Schedule, s.windowStart, s.windowEnd),
				feasible:  s.checker.IsFeasible(candidates[i].Schedule),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return scored, nil
}

// selectCandidate 选出最好的非禁忌候选解；满足特赦条件且更好的禁忌候选解可以取而代之
func (s *TabuSearch) selectCandidate(scored []scoredCandidate, st *searchState) (*scoredCandidate, bool) {
	var admissible, aspirated *scoredCandidate
	for i := range scored {
		c := &scored[i]
		if !c.feasible {
			continue
		}

		if c.Tabu {
			if s.aspires(c, st) && (aspirated == nil || c.breakdown.Total > aspirated.breakdown.Total) {
				aspirated = c
			}
			continue
		}

		if admissible == nil || c.breakdown.Total > admissible.breakdown.Total {
			admissible = c
		}
	}

	if aspirated != nil && (admissible == nil || aspirated.breakdown.Total > admissible.breakdown.Total) {
		return aspirated, true
	}
	return admissible, false
}

func (s *TabuSearch) aspires(c *scoredCandidate, st *searchState) bool {
	switch s.params.Aspiration {
	case AspirationCurrent:
		return c.breakdown.Total > st.currentBreakdown.Total
	case AspirationComponent:
		candidate, ok := c.breakdown.Component(s.params.AspirationComponent)
		if !ok {
			return false
		}
		best, _ := st.bestBreakdown.Component(s.params.AspirationComponent)
		return candidate > best
	default:
		return c.breakdown.Total > st.bestBreakdown.Total
	}
}

// intensify 回到最优解附近重新搜索
func (s *TabuSearch) intensify(ctx context.Context, st *searchState) {
	st.current = st.best.Clone()
	st.currentBreakdown = st.bestBreakdown
	if s.params.Intensification.ClearTabu {
		s.tabu.Clear()
	}

	for range s.params.Intensification.PerturbSteps {
		candidates, err := s.neighbors.GenerateNeighbors(ctx, s.rng, st.current, s.tabu)
		if err != nil || len(candidates) == 0 {
			break
		}
		c := candidates[s.rng.Intn(len(candidates))]
		st.current = c.Schedule
	}
	st.currentBreakdown = s.evaluator.Breakdown(st.current, s.windowStart, s.windowEnd)
	s.promote(st)

	s.logger.Debug("执行集中搜索", slog.Float64("currentScore", st.currentBreakdown.Total))
}

// diversify 根据策略随机重启或者统一延长禁忌期，返回是否执行了分散搜索
func (s *TabuSearch) diversify(st *searchState) bool {
	switch s.params.Diversification.Strategy {
	case DiversifyRestart:
		st.noImprovement = 0
		if s.params.Diversification.ClearTabu {
			s.tabu.Clear()
		}
		fresh, err := s.initializer.Build(s.rng, true)
		if err != nil {
			s.logger.Debug("随机重启失败，继续使用当前解", slog.String("error", err.Error()))
			return true
		}
		st.current = fresh
		st.currentBreakdown = s.evaluator.Breakdown(fresh, s.windowStart, s.windowEnd)
		s.promote(st)
		s.logger.Debug("随机重启", slog.Float64("currentScore", st.currentBreakdown.Total))
		return true
	case DiversifyTenure:
		s.tabu.IncreaseAll(s.params.Diversification.TenureIncrease)
		s.logger.Debug("延长禁忌期", slog.Int("delta", int(s.params.Diversification.TenureIncrease)))
		return true
	default:
		return false
	}
}
