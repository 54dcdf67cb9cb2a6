package txpool

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestFeeIndexCrossingRange(t *testing.T) {
	var ix feeIndex
	ix.Insert(uint256.NewInt(10), common.Hash{1})
	ix.Insert(uint256.NewInt(50), common.Hash{2})
	ix.Insert(uint256.NewInt(50), common.Hash{3})
	ix.Insert(uint256.NewInt(90), common.Hash{4})
	require.Equal(t, 4, ix.Len())

	// A rise from 40 to 80 flips exactly the fee-50 entries.
	crossers := ix.Crossing(uint256.NewInt(40), uint256.NewInt(80))
	require.ElementsMatch(t, []common.Hash{{2}, {3}}, crossers)

	// The reverse move surfaces the same set.
	require.ElementsMatch(t, crossers, ix.Crossing(uint256.NewInt(80), uint256.NewInt(40)))

	// Boundaries: the lower bound is inclusive, the upper exclusive.
	require.ElementsMatch(t, []common.Hash{{2}, {3}}, ix.Crossing(uint256.NewInt(50), uint256.NewInt(51)))
	require.Empty(t, ix.Crossing(uint256.NewInt(51), uint256.NewInt(90)))

	// An unchanged fee crosses nothing.
	require.Empty(t, ix.Crossing(uint256.NewInt(60), uint256.NewInt(60)))
}

func TestFeeIndexNilFeeTreatedAsZero(t *testing.T) {
	var ix feeIndex
	ix.Insert(uint256.NewInt(5), common.Hash{1})
	ix.Insert(uint256.NewInt(100), common.Hash{2})

	require.ElementsMatch(t, []common.Hash{{1}}, ix.Crossing(nil, uint256.NewInt(50)))
	require.ElementsMatch(t, []common.Hash{{1}}, ix.Crossing(uint256.NewInt(50), nil))
	require.Empty(t, ix.Crossing(nil, nil))
}

func TestFeeIndexRemove(t *testing.T) {
	var ix feeIndex
	ix.Insert(uint256.NewInt(10), common.Hash{1})
	ix.Insert(uint256.NewInt(10), common.Hash{2})

	ix.Remove(uint256.NewInt(10), common.Hash{1})
	require.Equal(t, 1, ix.Len())
	require.ElementsMatch(t, []common.Hash{{2}}, ix.Crossing(uint256.NewInt(5), uint256.NewInt(15)))

	// Removing an absent entry (wrong fee or wrong hash) is a no-op.
	ix.Remove(uint256.NewInt(99), common.Hash{2})
	ix.Remove(uint256.NewInt(10), common.Hash{7})
	require.Equal(t, 1, ix.Len())
}
