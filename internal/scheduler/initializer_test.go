package scheduler

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

func newTestInitializer(catalog *Catalog) *Initializer {
	return NewInitializer(catalog, NewTimeSlotFinder(catalog, yesterday), NewFeasibilityChecker(catalog), at(8, 0), at(18, 0))
}

func TestBuildPlacesEverySurgery(t *testing.T) {
	catalog := newTestCatalog(t)
	in := newTestInitializer(catalog)

	schedule, err := in.Build(rand.New(rand.NewSource(1)), false)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4}, surgeryIDs(schedule))
	assert.NoError(t, NewFeasibilityChecker(catalog).Validate(schedule))
	for _, a := range schedule {
		assert.False(t, a.StartTime.Before(at(8, 0)), "手术 %d", a.SurgeryID)
		assert.False(t, a.EndTime.After(at(18, 0)), "手术 %d", a.SurgeryID)
	}

	// 同一医生的高紧急手术先于低紧急手术
	first := schedule[schedule.indexOf(1)]
	last := schedule[schedule.indexOf(2)]
	assert.True(t, first.StartTime.Before(last.StartTime))
}

func TestBuildShuffledIsFeasibleAndDeterministic(t *testing.T) {
	catalog := newTestCatalog(t)
	in := newTestInitializer(catalog)

	a, err := in.Build(rand.New(rand.NewSource(7)), true)
	require.NoError(t, err)
	b, err := in.Build(rand.New(rand.NewSource(7)), true)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, []int64{1, 2, 3, 4}, surgeryIDs(a))
	assert.True(t, NewFeasibilityChecker(catalog).IsFeasible(a))
}

func TestBuildRespectsEquipmentInventory(t *testing.T) {
	catalog := newTestCatalog(t, func(input *CatalogInput) {
		input.Equipment = []domain.Equipment{{ID: 1, Kind: "c_arm", Name: "C 型臂", Inventory: 1}}
		input.Requirements = []domain.EquipmentRequirement{{SurgeryTypeID: 1, Kind: "c_arm", Quantity: 1}}
	})
	in := newTestInitializer(catalog)

	schedule, err := in.Build(rand.New(rand.NewSource(1)), false)
	require.NoError(t, err)

	// 手术 1 和 3 都是类型 1，只有一台 C 型臂
	a := schedule[schedule.indexOf(1)]
	b := schedule[schedule.indexOf(3)]
	assert.False(t, overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime))
}

func TestBuildFailsWhenWindowIsTooShort(t *testing.T) {
	catalog := newTestCatalog(t)
	in := NewInitializer(catalog, NewTimeSlotFinder(catalog, yesterday), NewFeasibilityChecker(catalog), at(8, 0), at(9, 0))

	_, err := in.Build(rand.New(rand.NewSource(1)), false)
	assert.ErrorIs(t, err, ErrUnplaceable)
}
