package production

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
)

func stockRow(id, finishID int64, finish string) models.StockRow {
	return models.StockRow{
		ID: id, ProductName: "Storm 17x7.5", ModelID: 3, SizeID: 17, PCDID: 4, HolesID: 5, WidthID: 75,
		FinishID: finishID, FinishName: finish, InHouseStock: 40,
	}
}

func sampleStock() []models.StockRow {
	other := stockRow(90, 2, "Black")
	other.SizeID = 18
	return []models.StockRow{
		stockRow(1, 1, "Silver"),
		stockRow(2, 2, "matte black"),
		stockRow(3, 3, "Chrome"),
		stockRow(4, 4, "Bronze"),
		stockRow(5, 5, "Chrome"),
		stockRow(6, 1, "Silver"),
		other,
	}
}

func labels(opts []FinishOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Label)
	}
	return out
}

func TestTargetFinishesFiltersDedupesAndSorts(t *testing.T) {
	stock := sampleStock()
	got := TargetFinishes(stock, stock[0], nil)
	assert.Equal(t, []string{"Bronze", "Chrome", "matte black"}, labels(got))
	assert.Equal(t, int64(3), got[1].ConvertID, "first row of a duplicated finish wins")
}

func TestTargetFinishesExcludesSelectedForSameAlloy(t *testing.T) {
	stock := sampleStock()
	selected := Selections{
		{AlloyID: 1, ConvertID: 3, ConvertName: "Chrome"},
		{AlloyID: 2, ConvertID: 4, ConvertName: "Bronze"},
	}
	got := TargetFinishes(stock, stock[0], selected)
	assert.Equal(t, []string{"Bronze", "matte black"}, labels(got), "a selection for another alloy does not hide the finish")
}

func TestTargetFinishesIsStable(t *testing.T) {
	stock := sampleStock()
	first := TargetFinishes(stock, stock[0], nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, TargetFinishes(stock, stock[0], nil))
	}
}

func TestSelectionsAddRejectsDuplicatePair(t *testing.T) {
	var sel Selections
	sel, err := sel.Add(Selection{AlloyID: 1, ConvertID: 3, Quantity: 5})
	require.NoError(t, err)
	_, err = sel.Add(Selection{AlloyID: 1, ConvertID: 3, Quantity: 9})
	assert.ErrorIs(t, err, ErrDuplicatePlan)

	sel = sel.Update("1-3", 12, true)
	got, ok := sel.Find("1-3")
	require.True(t, ok)
	assert.Equal(t, 12, got.Quantity)
	assert.True(t, got.Urgent)
	assert.Empty(t, sel.Remove("1-3"))
}

func TestBatchOutcomes(t *testing.T) {
	a := Selection{AlloyID: 1, AlloyName: "Storm", ConvertID: 3, ConvertName: "Chrome"}
	b := Selection{AlloyID: 1, AlloyName: "Storm", ConvertID: 4, ConvertName: "Bronze"}

	all := BatchResult{Succeeded: []Selection{a, b}}
	assert.Equal(t, AllSucceeded, all.Outcome())
	assert.Equal(t, shared.FlashSuccess, all.Message().Kind)
	assert.Empty(t, all.Remaining(Selections{a, b}))

	none := BatchResult{Failed: []FailedPlan{{Selection: a, Reason: "insufficient stock"}}}
	assert.Equal(t, AllFailed, none.Outcome())
	msg := none.Message()
	assert.Equal(t, shared.FlashError, msg.Kind)
	assert.Contains(t, msg.Message, "insufficient stock")
	assert.Equal(t, Selections{a}, none.Remaining(Selections{a}))

	partial := BatchResult{Succeeded: []Selection{a}, Failed: []FailedPlan{{Selection: b, Reason: "insufficient stock"}}}
	assert.Equal(t, PartiallySucceeded, partial.Outcome())
	msg = partial.Message()
	assert.Equal(t, shared.FlashWarning, msg.Kind)
	assert.Contains(t, msg.Message, "1 production plan created")
	assert.Contains(t, msg.Message, "Storm → Chrome")
	assert.Contains(t, msg.Message, "1 failed: Storm → Bronze (insufficient stock)")
	assert.Equal(t, Selections{b}, partial.Remaining(Selections{a, b}))
}
