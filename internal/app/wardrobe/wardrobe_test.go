package wardrobe

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speechquest/internal/app/catalog"
)

func mustItem(t *testing.T, id string) catalog.Item {
	t.Helper()
	it, ok := catalog.Lookup(id)
	require.True(t, ok)
	return it
}

func TestAddPurchasedIsUnique(t *testing.T) {
	w := New()
	beanie := mustItem(t, "1")

	assert.True(t, w.AddPurchased(beanie))
	assert.False(t, w.AddPurchased(beanie))
	assert.Len(t, w.Purchased(), 1)
	assert.True(t, w.IsPurchased("1"))
}

func TestEquipKeepsAtMostOneItem(t *testing.T) {
	w := New()
	for _, it := range catalog.All() {
		w.AddPurchased(it)
	}

	all := catalog.All()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		pick := all[rng.Intn(len(all))]
		require.NoError(t, w.Equip(pick.ID))

		equipped := w.EquippedItems()
		require.Len(t, equipped, 1)
		assert.Equal(t, pick.ID, equipped[0].ID)
	}
}

func TestEquipReplacesAcrossCategories(t *testing.T) {
	w := New()
	w.AddPurchased(mustItem(t, "1")) // head
	w.AddPurchased(mustItem(t, "5")) // hands

	require.NoError(t, w.Equip("1"))
	require.NoError(t, w.Equip("5"))

	assert.Equal(t, "5", w.EquippedID())
}

func TestEquipRequiresOwnership(t *testing.T) {
	w := New()
	assert.ErrorIs(t, w.Equip("3"), ErrNotOwned)
	assert.Empty(t, w.EquippedItems())
}

func TestUnequipOnlyMatchingItem(t *testing.T) {
	w := New()
	w.AddPurchased(mustItem(t, "2"))
	require.NoError(t, w.Equip("2"))

	assert.False(t, w.Unequip("9"))
	assert.Equal(t, "2", w.EquippedID())

	assert.True(t, w.Unequip("2"))
	assert.Equal(t, "", w.EquippedID())
}

func TestRemovePurchasedUnequips(t *testing.T) {
	w := New()
	w.AddPurchased(mustItem(t, "6"))
	require.NoError(t, w.Equip("6"))

	assert.True(t, w.RemovePurchased("6"))
	assert.False(t, w.IsPurchased("6"))
	assert.Equal(t, "", w.EquippedID())
	assert.False(t, w.RemovePurchased("6"))
}

func TestRestore(t *testing.T) {
	w := Restore([]string{"1", "unknown", "4", "1"}, "4")

	ids := []string{}
	for _, it := range w.Purchased() {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"1", "4"}, ids)
	assert.Equal(t, "4", w.EquippedID())

	w = Restore([]string{"1"}, "7")
	assert.Equal(t, "", w.EquippedID())
}
