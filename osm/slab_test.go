package osm

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlabKeyStability(t *testing.T) {
	// ∀ ns, ids a,b with floor(a/P) = floor(b/P) ⇒ slab_key(ns,a) = slab_key(ns,b) (§8).
	const perSlab = 8

	ka, err := MakeSlabKey(NSNode, "42", perSlab)
	require.NoError(t, err)
	assert.Equal(t, "NL40", ka)

	kb, err := MakeSlabKey(NSNode, "40", perSlab)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)

	kc, err := MakeSlabKey(NSNode, "47", perSlab)
	require.NoError(t, err)
	assert.Equal(t, ka, kc)

	kd, err := MakeSlabKey(NSNode, "48", perSlab)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kd)
	assert.Equal(t, "NL48", kd)
}

func TestAlphabeticSlabKey(t *testing.T) {
	k, err := MakeSlabKey(NSGeodoc, "gbsuv7z", 1)
	require.NoError(t, err)
	assert.Equal(t, "GLgbsuv7z", k)
}

func TestStartIndexInverse(t *testing.T) {
	n, err := StartIndex("NL40")
	require.NoError(t, err)
	assert.Equal(t, int64(40), n)
}

func TestGroupKeysPartitionsBySlab(t *testing.T) {
	ids := []string{"0", "1", "7", "8", "9", "15", "16"}
	groups, err := GroupKeys(NSNode, ids, 8)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.ElementsMatch(t, []string{"0", "1", "7"}, keysOf(groups["NL0"]))
	assert.ElementsMatch(t, []string{"8", "9", "15"}, keysOf(groups["NL8"]))
	assert.ElementsMatch(t, []string{"16"}, keysOf(groups["NL16"]))
}

func keysOf(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestMakeSlabRejectsOutOfRangeID(t *testing.T) {
	items := map[string]*Element{}
	e, _ := NewElement(NSNode, "100")
	items["100"] = e
	_, err := MakeSlab(NSNode, "NL0", items, 8)
	assert.Error(t, err)
}

func TestNumericSlabGetAddRoundTrip(t *testing.T) {
	slab := NewNumericSlab(NSNode, "NL0", 0, 8)
	e, err := NewElement(NSNode, "2")
	require.NoError(t, err)
	e.Node.Lat = 123456789

	require.NoError(t, slab.Add("2", e))

	present, got := slab.Get("2")
	assert.True(t, present)
	assert.Equal(t, int64(123456789), got.Node.Lat)

	present, _ = slab.Get("3")
	assert.False(t, present)

	assert.Len(t, slab.IDRange(), 8)
	for i, id := range slab.IDRange() {
		assert.Equal(t, strconv.Itoa(i), id)
	}
}
