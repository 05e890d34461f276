package scheduler

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingObserver struct {
	stats  []IterationStats
	result *Result
}

func (o *recordingObserver) OnIteration(stats IterationStats) { o.stats = append(o.stats, stats) }
func (o *recordingObserver) OnFinish(result *Result)          { o.result = result }

func newTestSearch(t *testing.T, params *Parameters, observer Observer, mutate ...func(*CatalogInput)) *TabuSearch {
	t.Helper()

	opts := []Option{WithClock(yesterday), WithLogger(discardLogger)}
	if observer != nil {
		opts = append(opts, WithObserver(observer))
	}

	input := testInput()
	for _, m := range mutate {
		m(input)
	}

	s, err := New(params, input, at(8, 0), at(18, 0), opts...)
	require.NoError(t, err)

	search, err := s.newSearch(rand.New(rand.NewSource(params.Seed)))
	require.NoError(t, err)
	return search
}

func TestSearchRejectsEmptyInitialSchedule(t *testing.T) {
	search := newTestSearch(t, testParameters(), nil)

	result, err := search.Search(context.Background(), Schedule{})
	assert.ErrorIs(t, err, ErrEmptySchedule)
	assert.Nil(t, result)
	assert.Equal(t, StateTerminated, search.State())
}

func TestSearchRejectsInfeasibleInitialSchedule(t *testing.T) {
	search := newTestSearch(t, testParameters(), nil)

	initial := Schedule{
		assignment(1, 10, at(10, 0), at(11, 0)),
		assignment(2, 20, at(10, 30), at(12, 0)),
	}

	_, err := search.Search(context.Background(), initial)
	assert.ErrorIs(t, err, ErrInvalidInitialSchedule)
	assert.ErrorIs(t, err, ErrSurgeonConflict)
}

func TestSearchBestIsMonotonicAndFeasible(t *testing.T) {
	observer := &recordingObserver{}
	search := newTestSearch(t, testParameters(), observer)

	result, err := search.Search(context.Background(), spreadSchedule())
	require.NoError(t, err)

	assert.NoError(t, search.checker.Validate(result.Best))
	assert.Equal(t, surgeryIDs(spreadSchedule()), surgeryIDs(result.Best))
	assert.GreaterOrEqual(t, result.BestScore, result.InitialScore)
	assert.InDelta(t, search.evaluator.Evaluate(result.Best, at(8, 0), at(18, 0)), result.BestScore, 1e-9)

	require.NotEmpty(t, observer.stats)
	for i := 1; i < len(observer.stats); i++ {
		assert.GreaterOrEqual(t, observer.stats[i].BestScore, observer.stats[i-1].BestScore)
	}
	assert.Same(t, result, observer.result)
	assert.Equal(t, StateTerminated, search.State())
}

func TestSearchStopsAtIterationBudget(t *testing.T) {
	params := testParameters()
	params.MaxIterations = 5
	params.NoImprovementRatio = 0
	params.Diversification.Strategy = DiversifyNone

	result, err := newTestSearch(t, params, nil).Search(context.Background(), spreadSchedule())
	require.NoError(t, err)

	assert.Equal(t, StopMaxIterations, result.StopReason)
	assert.Equal(t, int32(5), result.Iterations)
}

func TestSearchStopsWhenContextCancelled(t *testing.T) {
	search := newTestSearch(t, testParameters(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := search.Search(ctx, spreadSchedule())
	require.NoError(t, err)

	assert.Equal(t, StopCancelled, result.StopReason)
	assert.Equal(t, int32(0), result.Iterations)
	assert.Equal(t, spreadSchedule(), result.Best)
	assert.Equal(t, result.InitialScore, result.BestScore)
}

func TestSearchStopsAtTimeLimit(t *testing.T) {
	params := testParameters()
	params.TimeLimit = time.Nanosecond

	result, err := newTestSearch(t, params, nil).Search(context.Background(), spreadSchedule())
	require.NoError(t, err)

	assert.Equal(t, StopTimeLimit, result.StopReason)
}

// singleSurgery 只有一台手术和一名医生，所有邻居的得分都与初始解相同
func singleSurgery(input *CatalogInput) {
	input.Surgeries = input.Surgeries[:1]
	input.Surgeons = input.Surgeons[:1]
}

func TestSearchNoImprovementBudget(t *testing.T) {
	for _, strategy := range []DiversificationStrategy{DiversifyNone, DiversifyRestart} {
		t.Run(string(strategy), func(t *testing.T) {
			params := testParameters()
			params.MaxIterations = 40
			params.NoImprovementRatio = 0.25
			params.TabuTenure = 1
			params.Diversification.Strategy = strategy
			params.Diversification.Ratio = 0.05

			observer := &recordingObserver{}
			search := newTestSearch(t, params, observer, singleSurgery)
			result, err := search.Search(context.Background(), Schedule{assignment(1, 10, at(10, 0), at(11, 0))})
			require.NoError(t, err)

			assert.Equal(t, StopNoImprovement, result.StopReason)
			assert.Equal(t, ratioThreshold(params.NoImprovementRatio, params.MaxIterations), result.Iterations)
			assert.Zero(t, result.Improvements)
			assert.Equal(t, result.InitialScore, result.BestScore)

			require.Len(t, observer.stats, int(result.Iterations))
			for _, s := range observer.stats {
				assert.Equal(t, StateStalled, s.State)
			}
		})
	}
}

func TestObservedCurrentNeverExceedsBest(t *testing.T) {
	params := testParameters()
	params.MaxIterations = 60
	params.NoImprovementRatio = 0
	params.Diversification.Ratio = 0.05
	params.Intensification = IntensificationParameters{Enabled: true, Every: 1, PerturbSteps: 2}

	for seed := int64(1); seed <= 10; seed++ {
		params.Seed = seed
		observer := &recordingObserver{}
		_, err := newTestSearch(t, params, observer).Search(context.Background(), spreadSchedule())
		require.NoError(t, err)

		for _, s := range observer.stats {
			assert.LessOrEqual(t, s.CurrentScore, s.BestScore, "seed %d iteration %d", seed, s.Iteration)
		}
	}
}

func scored(total float64, tabu bool) scoredCandidate {
	return scoredCandidate{
		Candidate: Candidate{Tabu: tabu, Move: RoomMove{SurgeryID: int64(total * 10)}},
		breakdown: Breakdown{Total: total},
		feasible:  true,
	}
}

func TestSelectCandidateAspiration(t *testing.T) {
	search := newTestSearch(t, testParameters(), nil)

	candidates := []scoredCandidate{scored(1, false), scored(5, true)}

	chosen, aspirated := search.selectCandidate(candidates, &searchState{bestBreakdown: Breakdown{Total: 3}})
	require.NotNil(t, chosen)
	assert.True(t, aspirated)
	assert.Equal(t, 5.0, chosen.breakdown.Total)

	chosen, aspirated = search.selectCandidate(candidates, &searchState{bestBreakdown: Breakdown{Total: 10}})
	require.NotNil(t, chosen)
	assert.False(t, aspirated)
	assert.Equal(t, 1.0, chosen.breakdown.Total)

	chosen, _ = search.selectCandidate([]scoredCandidate{scored(5, true)}, &searchState{bestBreakdown: Breakdown{Total: 10}})
	assert.Nil(t, chosen)

	infeasible := scored(9, false)
	infeasible.feasible = false
	chosen, _ = search.selectCandidate([]scoredCandidate{infeasible, scored(2, false)}, &searchState{bestBreakdown: Breakdown{Total: 10}})
	require.NotNil(t, chosen)
	assert.Equal(t, 2.0, chosen.breakdown.Total)
}

func TestSelectCandidateAspirationCriteria(t *testing.T) {
	params := testParameters()
	params.Aspiration = AspirationCurrent
	search := newTestSearch(t, params, nil)

	st := &searchState{currentBreakdown: Breakdown{Total: 4}, bestBreakdown: Breakdown{Total: 10}}
	chosen, aspirated := search.selectCandidate([]scoredCandidate{scored(1, false), scored(5, true)}, st)
	require.NotNil(t, chosen)
	assert.True(t, aspirated)

	params = testParameters()
	params.Aspiration = AspirationComponent
	params.AspirationComponent = "setup_penalty"
	search = newTestSearch(t, params, nil)

	lowSetup := scored(5, true)
	lowSetup.breakdown.SetupPenalty = 0.1
	st = &searchState{bestBreakdown: Breakdown{Total: 10, SetupPenalty: 0.5}}
	chosen, aspirated = search.selectCandidate([]scoredCandidate{scored(1, false), lowSetup}, st)
	require.NotNil(t, chosen)
	assert.True(t, aspirated)
}

func TestDiversifyStrategies(t *testing.T) {
	params := testParameters()
	params.Diversification.Strategy = DiversifyTenure
	params.Diversification.TenureIncrease = 4
	search := newTestSearch(t, params, nil)

	move := RoomMove{SurgeryID: 1}
	search.tabu.AddWithTenure(move, 2)
	st := &searchState{current: spreadSchedule(), noImprovement: 3}
	assert.True(t, search.diversify(st))
	assert.Equal(t, int32(6), search.tabu.Tenure(move))
	assert.Equal(t, int32(3), st.noImprovement)

	params = testParameters()
	params.Diversification.Strategy = DiversifyRestart
	params.Diversification.ClearTabu = true
	search = newTestSearch(t, params, nil)

	search.tabu.AddWithTenure(move, 2)
	st = &searchState{current: spreadSchedule(), noImprovement: 3}
	assert.True(t, search.diversify(st))
	assert.Zero(t, st.noImprovement)
	assert.Zero(t, search.tabu.Len())
	assert.NoError(t, search.checker.Validate(st.current))
	assert.Equal(t, surgeryIDs(spreadSchedule()), surgeryIDs(st.current))
}

func TestIntensifyReturnsToBest(t *testing.T) {
	params := testParameters()
	params.Intensification = IntensificationParameters{Enabled: true, Every: 1, ClearTabu: true}
	search := newTestSearch(t, params, nil)

	best := spreadSchedule()
	st := &searchState{
		current:       feasibleSchedule(),
		best:          best,
		bestBreakdown: search.evaluator.Breakdown(best, at(8, 0), at(18, 0)),
	}
	search.tabu.Add(RoomMove{SurgeryID: 1})

	search.intensify(context.Background(), st)

	assert.Equal(t, best, st.current)
	assert.Zero(t, search.tabu.Len())
}

func TestRestartPromotesBetterSchedule(t *testing.T) {
	params := testParameters()
	params.Diversification.Strategy = DiversifyRestart
	search := newTestSearch(t, params, nil)

	// 人为压低最优解的得分，随机重启得到的解一定更好
	st := &searchState{
		current:          spreadSchedule(),
		best:             spreadSchedule(),
		bestBreakdown:    Breakdown{Total: -10},
		noImprovement:    3,
		sinceImprovement: 3,
	}
	require.True(t, search.diversify(st))

	assert.Equal(t, st.currentBreakdown, st.bestBreakdown)
	assert.Equal(t, st.current, st.best)
	assert.Equal(t, int32(1), st.improvements)
	assert.Zero(t, st.sinceImprovement)
}

func TestRestartKeepsImprovementCounter(t *testing.T) {
	params := testParameters()
	params.Diversification.Strategy = DiversifyRestart
	search := newTestSearch(t, params, nil)

	st := &searchState{
		current:          spreadSchedule(),
		best:             spreadSchedule(),
		bestBreakdown:    Breakdown{Total: math.MaxFloat64},
		noImprovement:    3,
		sinceImprovement: 3,
	}
	require.True(t, search.diversify(st))

	assert.Zero(t, st.noImprovement)
	assert.Equal(t, int32(3), st.sinceImprovement)
	assert.Equal(t, spreadSchedule(), st.best)
}

func TestIntensifyPromotesPerturbedSchedule(t *testing.T) {
	params := testParameters()
	params.Intensification = IntensificationParameters{Enabled: true, Every: 1, PerturbSteps: 2}
	search := newTestSearch(t, params, nil)

	st := &searchState{
		current:       spreadSchedule(),
		best:          spreadSchedule(),
		bestBreakdown: Breakdown{Total: -10},
	}
	search.intensify(context.Background(), st)

	assert.Equal(t, st.currentBreakdown, st.bestBreakdown)
	assert.Equal(t, st.current, st.best)
	assert.NoError(t, search.checker.Validate(st.best))
}

func TestRatioThreshold(t *testing.T) {
	assert.Equal(t, int32(0), ratioThreshold(0, 100))
	assert.Equal(t, int32(25), ratioThreshold(0.25, 100))
	assert.Equal(t, int32(1), ratioThreshold(0.001, 10))
}
