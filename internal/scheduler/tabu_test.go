package scheduler

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTabuTenureDecaysAndPurges(t *testing.T) {
	tabu := NewTabuList(3, 0, 0, 0, nil)
	move := ShiftMove{SurgeryID: 1, RoomID: 10, Start: 100}

	tabu.Add(move)
	assert.True(t, tabu.IsTabu(move))
	assert.Equal(t, int32(3), tabu.Tenure(move))

	tabu.DecrementAll()
	tabu.DecrementAll()
	assert.True(t, tabu.IsTabu(move))
	assert.Equal(t, int32(1), tabu.Tenure(move))

	tabu.DecrementAll()
	assert.False(t, tabu.IsTabu(move))
	assert.Equal(t, 0, tabu.Len())
}

func TestTabuNonPositiveTenureIsNotStored(t *testing.T) {
	tabu := NewTabuList(0, 0, 0, 0, nil)
	move := SurgeonMove{SurgeryID: 1, SurgeonID: 200}

	tabu.Add(move)
	tabu.AddWithTenure(RoomMove{SurgeryID: 2}, -1)

	assert.False(t, tabu.IsTabu(move))
	assert.Equal(t, 0, tabu.Len())
}

func TestTabuRandomizedTenureStaysInRange(t *testing.T) {
	tabu := NewTabuList(10, 2, 5, 0, rand.New(rand.NewSource(7)))

	for i := range 50 {
		move := RoomMove{SurgeryID: int64(i), RoomID: 10}
		tabu.Add(move)

		tenure := tabu.Tenure(move)
		assert.GreaterOrEqual(t, tenure, int32(2))
		assert.LessOrEqual(t, tenure, int32(5))
	}
}

func TestTabuFrequentMovesGetLongerTenure(t *testing.T) {
	tabu := NewTabuList(3, 0, 0, 2, nil)
	move := SurgeonMove{SurgeryID: 1, SurgeonID: 200}

	for range 4 {
		tabu.Add(move)
	}

	assert.Equal(t, int32(4), tabu.Frequency(move))
	assert.Equal(t, int32(5), tabu.Tenure(move))
}

func TestTabuSwapMoveIsUnordered(t *testing.T) {
	tabu := NewTabuList(5, 0, 0, 0, nil)
	a := assignment(1, 10, at(9, 0), at(10, 0))
	b := assignment(2, 20, at(11, 0), at(12, 30))

	tabu.Add(NewSwapMove(a, b))

	assert.Equal(t, NewSwapMove(a, b), NewSwapMove(b, a))
	assert.True(t, tabu.IsTabu(NewSwapMove(b, a)))
}

func TestTabuIncreaseAllAndClear(t *testing.T) {
	tabu := NewTabuList(2, 0, 0, 0, nil)
	move := ShiftMove{SurgeryID: 1, Start: 10}

	tabu.Add(move)
	tabu.IncreaseAll(3)
	assert.Equal(t, int32(5), tabu.Tenure(move))

	tabu.Clear()
	assert.False(t, tabu.IsTabu(move))
	assert.Equal(t, int32(1), tabu.Frequency(move))
}

func TestTabuAdjustForProgressShortensNewTenures(t *testing.T) {
	tabu := NewTabuList(8, 0, 0, 0, nil)

	tabu.AdjustForProgress(0.5)
	tabu.Add(RoomMove{SurgeryID: 1})
	assert.Equal(t, int32(8), tabu.Tenure(RoomMove{SurgeryID: 1}))

	tabu.AdjustForProgress(1)
	tabu.Add(RoomMove{SurgeryID: 2})
	assert.Equal(t, int32(2), tabu.Tenure(RoomMove{SurgeryID: 2}))
}

func TestTabuConcurrentReads(t *testing.T) {
	tabu := NewTabuList(5, 0, 0, 0, nil)
	for i := range 20 {
		tabu.Add(RoomMove{SurgeryID: int64(i)})
	}

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				tabu.IsTabu(RoomMove{SurgeryID: int64((g + i) % 30)})
				tabu.Tenure(RoomMove{SurgeryID: int64(i % 20)})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, tabu.Len())
}
