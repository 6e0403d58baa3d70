package budget

import (
	"testing"

	"github.com/clipperhq/growthcore/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleScheduler(t *testing.T) {
	t.Run("should open the current cycle once", func(t *testing.T) {
		// given
		repo := NewRepositoryStub()
		service := NewService(repo, nil, &utils.MockClock{FixedNow: testNow}, testBudgetConfig)
		_, err := service.CreateSegment(adminCtx, Segment{Name: "new clippers", WeeklyLimitCents: cents(100000), IsActive: true})
		require.NoError(t, err)
		scheduler := NewCycleScheduler(service, "5 0 * * 1")

		// when
		scheduler.openCurrentCycle()
		scheduler.openCurrentCycle()

		// then
		created := eventsWithAction(repo.AllEvents(), ActionCycleCreated)
		require.Len(t, created, 1)
		assert.Empty(t, created[0].PerformedBy)
		segmentCycles, err := service.ListCurrentSegmentCycles(adminCtx)
		require.NoError(t, err)
		assert.Len(t, segmentCycles, 1)
	})

	t.Run("should reject an invalid spec", func(t *testing.T) {
		scheduler := NewCycleScheduler(NewService(NewRepositoryStub(), nil, &utils.MockClock{FixedNow: testNow}, testBudgetConfig), "not a spec")

		assert.Error(t, scheduler.Start())
	})

	t.Run("should stay idle without a spec", func(t *testing.T) {
		scheduler := NewCycleScheduler(NewService(NewRepositoryStub(), nil, &utils.MockClock{FixedNow: testNow}, testBudgetConfig), "")

		require.NoError(t, scheduler.Start())
		scheduler.Stop()
	})
}
