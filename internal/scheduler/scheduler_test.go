package scheduler

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, params *Parameters) *Scheduler {
	t.Helper()

	s, err := New(params, testInput(), at(8, 0), at(18, 0), WithClock(yesterday), WithLogger(discardLogger))
	require.NoError(t, err)
	return s
}

func TestNewRejectsInvalidInput(t *testing.T) {
	params := testParameters()
	params.MaxIterations = 0
	_, err := New(params, testInput(), at(8, 0), at(18, 0))
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = New(testParameters(), testInput(), at(18, 0), at(8, 0))
	assert.Error(t, err)

	input := testInput()
	input.Rooms = nil
	_, err = New(testParameters(), input, at(8, 0), at(18, 0))
	assert.ErrorIs(t, err, ErrNoRooms)
}

func TestScheduleProducesFeasibleSortedResult(t *testing.T) {
	s := newTestScheduler(t, testParameters())

	result, err := s.Schedule(context.Background())
	require.NoError(t, err)

	assert.NoError(t, NewFeasibilityChecker(s.Catalog()).Validate(result.Best))
	assert.Equal(t, []int64{1, 2, 3, 4}, surgeryIDs(result.Best))
	assert.Equal(t, result.Best.Sorted(), result.Best)
	assert.GreaterOrEqual(t, result.BestScore, result.InitialScore)
	assert.NotEmpty(t, result.StopReason)

	for _, a := range result.Best {
		assert.False(t, a.StartTime.Before(at(8, 0)), "surgery %d", a.SurgeryID)
		assert.False(t, a.EndTime.After(at(18, 0)), "surgery %d", a.SurgeryID)
	}
}

func TestScheduleIsReproducibleWithSeed(t *testing.T) {
	params := testParameters()
	params.Workers = 1

	first, err := newTestScheduler(t, params).Schedule(context.Background())
	require.NoError(t, err)
	second, err := newTestScheduler(t, params).Schedule(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Best, second.Best)
	assert.Equal(t, first.BestScore, second.BestScore)
}

func TestOptimizeRejectsEmptySchedule(t *testing.T) {
	s := newTestScheduler(t, testParameters())

	_, err := s.Optimize(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptySchedule)
}

func TestOptimizeKeepsAllSurgeries(t *testing.T) {
	s := newTestScheduler(t, testParameters())

	result, err := s.Optimize(context.Background(), feasibleSchedule())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, surgeryIDs(result.Best))
}

func TestResultToScheduleRun(t *testing.T) {
	result := &Result{
		Best:         feasibleSchedule(),
		BestScore:    0.42,
		InitialScore: 0.3,
		Iterations:   12,
		StopReason:   StopNoImprovement,
	}

	run := result.ToScheduleRun(at(8, 0), at(18, 0))

	_, err := uuid.Parse(run.ID)
	assert.NoError(t, err)
	assert.Equal(t, at(8, 0), run.WindowStart)
	assert.Equal(t, at(18, 0), run.WindowEnd)
	assert.Equal(t, 0.42, run.Score)
	assert.Equal(t, int32(12), run.Iterations)
	assert.Equal(t, "no_improvement", run.StopReason)
	require.Len(t, run.Assignments, 4)
	assert.Equal(t, feasibleSchedule().Sorted(), Schedule(run.Assignments))
	assert.Equal(t, int64(10), run.Assignments[0].RoomID)
	assert.Equal(t, int64(20), run.Assignments[3].RoomID)
}
