package s1_catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
)

func testCatalog() *contracts.Catalog {
	return contracts.NewCatalog([]contracts.Item{
		{ItemID: 0, CategoryID: 40},
		{ItemID: 2, CategoryID: 19},
		{ItemID: 1, CategoryID: 40},
	})
}

func TestJoinCategory(t *testing.T) {
	rows := []contracts.MonthlyAggregate{
		{MonthIndex: 0, ShopID: 1, ItemID: 2, TotalSales: 3},
		{MonthIndex: 0, ShopID: 1, ItemID: 0, TotalSales: 1},
	}

	got, err := JoinCategory(rows, testCatalog())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 19, got[0].CategoryID)
	assert.Equal(t, 40, got[1].CategoryID)
	assert.Equal(t, rows[0], got[0].MonthlyAggregate)
}

func TestJoinCategory_UnmatchedItem(t *testing.T) {
	rows := []contracts.MonthlyAggregate{{ItemID: 99, TotalSales: 1}}

	_, err := JoinCategory(rows, testCatalog())
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrUnmatchedKey)

	var ue *contracts.UnmatchedKeyError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 99, ue.ItemID)
}

func TestJoinRequests(t *testing.T) {
	reqs := []contracts.InferenceRequest{{ID: 0, ShopID: 5, ItemID: 1}}

	got, err := JoinRequests(reqs, testCatalog())
	require.NoError(t, err)
	assert.Equal(t, 40, got[0].CategoryID)
	assert.Equal(t, 0, reqs[0].CategoryID, "input must not be mutated")

	_, err = JoinRequests([]contracts.InferenceRequest{{ItemID: 7}}, testCatalog())
	assert.ErrorIs(t, err, contracts.ErrUnmatchedKey)
}

func TestDeriveDomain(t *testing.T) {
	sales := []contracts.RawSale{
		{MonthIndex: 1, ShopID: 3, ItemID: 0, Quantity: 1},
		{MonthIndex: 0, ShopID: 1, ItemID: 2, Quantity: 1},
	}

	d, err := DeriveDomain(testCatalog(), sales)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, d.Months)
	assert.Equal(t, []int{0, 1, 2, 3}, d.Shops)
	assert.Equal(t, []int{0, 1, 2}, d.Items)
	assert.Equal(t, []int{19, 40}, d.Categories)
}

func TestDeriveDomain_Empty(t *testing.T) {
	_, err := DeriveDomain(contracts.NewCatalog(nil), []contracts.RawSale{{}})
	assert.Error(t, err)

	_, err = DeriveDomain(testCatalog(), nil)
	assert.Error(t, err)
}
