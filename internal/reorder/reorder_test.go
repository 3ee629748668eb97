package reorder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blkwalk/blkwalk/internal/blockfile"
	"github.com/blkwalk/blkwalk/internal/errs"
)

func heightRec(h uint32) blockfile.Record {
	height := h
	return blockfile.Record{Height: &height}
}

func TestOrderReleasesInHeightOrder(t *testing.T) {
	in := make(chan blockfile.Record, 8)
	// arrive out of order: 2, 0, 1, 3
	in <- heightRec(2)
	in <- heightRec(0)
	in <- heightRec(1)
	in <- heightRec(3)
	close(in)

	out := make(chan blockfile.Record, 8)
	err := Order(in, out)
	require.NoError(t, err)

	var heights []uint32
	for rec := range out {
		heights = append(heights, *rec.Height)
	}
	require.Equal(t, []uint32{0, 1, 2, 3}, heights)
}

func TestOrderGapAtEndOfStream(t *testing.T) {
	in := make(chan blockfile.Record, 8)
	in <- heightRec(0)
	in <- heightRec(2) // height 1 never arrives
	close(in)

	out := make(chan blockfile.Record, 8)
	err := Order(in, out)
	require.Error(t, err)

	var gap *errs.ReorderGap
	require.ErrorAs(t, err, &gap)
	require.Equal(t, uint32(1), gap.NextHeight)
	require.Equal(t, []uint32{1}, gap.MissingBelow)
}

func TestOrderScramblingInputOrderIsTransparent(t *testing.T) {
	orderings := [][]uint32{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
	}
	for _, order := range orderings {
		in := make(chan blockfile.Record, 8)
		for _, h := range order {
			in <- heightRec(h)
		}
		close(in)

		out := make(chan blockfile.Record, 8)
		err := Order(in, out)
		require.NoError(t, err)

		var heights []uint32
		for rec := range out {
			heights = append(heights, *rec.Height)
		}
		require.Equal(t, []uint32{0, 1, 2, 3, 4}, heights)
	}
}
