package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketIndexIdenticalIDs(t *testing.T) {
	var self NodeID
	for i := range self {
		self[i] = byte(i)
	}
	assert.Equal(t, Bits, BucketIndex(self, self))
}

func TestBucketIndexFirstBitDiffers(t *testing.T) {
	var self, other NodeID
	other[0] = 0x80 // differs in the most significant bit
	assert.Equal(t, 0, BucketIndex(self, other))
}

func TestBucketIndexLastBitDiffers(t *testing.T) {
	var self, other NodeID
	other[Size-1] = 0x01
	assert.Equal(t, Bits-1, BucketIndex(self, other))
}

func TestXORSelfInverse(t *testing.T) {
	a, err := Random()
	require.NoError(t, err)
	b, err := Random()
	require.NoError(t, err)

	d1 := XOR(a, b)
	d2 := XOR(b, a)
	assert.Equal(t, d1, d2)

	zero := XOR(a, a)
	assert.Equal(t, NodeID{}, zero)
}

func TestCompareDistanceOrdering(t *testing.T) {
	var target, near, far NodeID
	near[0] = 0x01
	far[0] = 0x02

	assert.True(t, CompareDistance(near, far, target))
	assert.False(t, CompareDistance(far, near, target))
}

func TestCompareDistanceTieBreak(t *testing.T) {
	var target NodeID
	var a, b NodeID
	a[31] = 0x01
	b[31] = 0x01
	// Under the XOR metric two distinct ids can never be equidistant from
	// the same target, so the only possible tie is an id compared with
	// itself: a and b are identical, and neither may order before the other.
	a[0] = 0x01
	b[0] = 0x01
	assert.Equal(t, XOR(a, target), XOR(b, target))
	assert.False(t, CompareDistance(a, b, target))
	assert.False(t, CompareDistance(b, a, target))
}

func TestInBucketRangeSharesExactPrefix(t *testing.T) {
	self, err := Random()
	require.NoError(t, err)

	for _, i := range []int{0, 1, 7, 8, 15, 64, 128, 255} {
		out, err := InBucketRange(self, i)
		require.NoError(t, err)
		assert.Equal(t, i, BucketIndex(self, out), "bucket %d", i)
	}
}

func TestInBucketRangeFullPrefixReturnsSelf(t *testing.T) {
	self, err := Random()
	require.NoError(t, err)

	out, err := InBucketRange(self, Bits)
	require.NoError(t, err)
	assert.Equal(t, self, out)
}

func TestHashIsDeterministic(t *testing.T) {
	raw, err := Random()
	require.NoError(t, err)
	assert.Equal(t, Hash(raw[:]), Hash(raw[:]))
}
