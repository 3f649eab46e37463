package proptree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CK6170/vnacal-go/proptree"
)

// TestSetGetDeleteWalksAndAutoVivifies exercises the spec's scenario 5:
// setting a deep path auto-creates intermediate maps/lists, the resulting
// list is at least as long as the highest index touched, and deleting an
// ancestor makes every descendant path report NOENT.
func TestSetGetDeleteWalksAndAutoVivifies(t *testing.T) {
	tr := proptree.New()

	require.NoError(t, tr.Set("matrix[2][3].name", "hello"))

	v, err := tr.Get("matrix[2][3].name")
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	count, err := tr.Count("matrix[2]")
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 4)

	kind, err := tr.Type("matrix")
	require.NoError(t, err)
	require.Equal(t, proptree.KindList, kind)

	require.NoError(t, tr.Delete("matrix[2]"))

	_, err = tr.Get("matrix[2][3].name")
	require.Error(t, err)
	require.True(t, proptree.IsNotFound(err))
}

// TestQuoteKeyRoundTrip exercises scenario 6: a literal key containing
// reserved characters, once escaped with QuoteKey, parses back as a single
// segment whose value is the original unescaped key.
func TestQuoteKeyRoundTrip(t *testing.T) {
	tr := proptree.New()
	key := "foo.bar[0]"
	quoted := proptree.QuoteKey(key)
	require.NotEqual(t, key, quoted)

	require.NoError(t, tr.Set("."+quoted, "value"))

	keys, err := tr.Keys("")
	require.NoError(t, err)
	require.Contains(t, keys, key)

	v, err := tr.Get("." + quoted)
	require.NoError(t, err)
	require.Equal(t, "value", v)
}

func TestTypeCountKeysOnMissingPathAreZeroValueNotError(t *testing.T) {
	tr := proptree.New()

	kind, err := tr.Type("nothere.at.all")
	require.NoError(t, err)
	require.Equal(t, proptree.KindNull, kind)

	count, err := tr.Count("nothere")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	keys, err := tr.Keys("nothere")
	require.NoError(t, err)
	require.Nil(t, keys)
}

func TestGetOnMissingPathIsNoEnt(t *testing.T) {
	tr := proptree.New()
	_, err := tr.Get("absent")
	require.Error(t, err)
	require.True(t, proptree.IsNotFound(err))
}

func TestAppendAndInsertAt(t *testing.T) {
	tr := proptree.New()
	require.NoError(t, tr.Set("list[+]", "a"))
	require.NoError(t, tr.Set("list[+]", "b"))
	require.NoError(t, tr.Set("list[0+]", "z"))

	count, err := tr.Count("list")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	first, err := tr.Get("list[0]")
	require.NoError(t, err)
	require.Equal(t, "z", first)

	second, err := tr.Get("list[1]")
	require.NoError(t, err)
	require.Equal(t, "a", second)
}

func TestForceMapReplacesStringLeaf(t *testing.T) {
	tr := proptree.New()
	require.NoError(t, tr.Set("leaf", "x"))

	// {} at "leaf" replaces the string leaf with a fresh empty map.
	require.NoError(t, tr.Set("leaf{}.child", "y"))
	kind, err := tr.Type("leaf")
	require.NoError(t, err)
	require.Equal(t, proptree.KindMap, kind)

	v, err := tr.Get("leaf.child")
	require.NoError(t, err)
	require.Equal(t, "y", v)
}

func TestGetSubtreeSetSubtreeRoundTrip(t *testing.T) {
	tr := proptree.New()
	require.NoError(t, tr.Set("a.b", "1"))
	require.NoError(t, tr.Set("a.c", "2"))

	sub, err := tr.GetSubtree("a")
	require.NoError(t, err)
	require.Equal(t, proptree.KindMap, sub.Kind)

	require.NoError(t, tr.SetSubtree("copy", sub))

	v, err := tr.Get("copy.b")
	require.NoError(t, err)
	require.Equal(t, "1", v)

	// Mutating the copy returned by GetSubtree must not alias the tree.
	sub.Map["b"].Str = "mutated"
	v2, err := tr.Get("a.b")
	require.NoError(t, err)
	require.Equal(t, "1", v2)
}

func TestDeleteListElementShiftsRemainder(t *testing.T) {
	tr := proptree.New()
	require.NoError(t, tr.Set("l[0]", "a"))
	require.NoError(t, tr.Set("l[1]", "b"))
	require.NoError(t, tr.Set("l[2]", "c"))

	require.NoError(t, tr.Delete("l[0]"))

	v, err := tr.Get("l[0]")
	require.NoError(t, err)
	require.Equal(t, "b", v)

	count, err := tr.Count("l")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestSetRejectsEmbeddedDirective(t *testing.T) {
	tr := proptree.New()
	err := tr.Set("a.b=c", "value")
	require.Error(t, err)
}
