package download_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parget/parget/pkg/download"
)

type planTestCase struct {
	totalLength int64
	workers     int
	expected    []download.Partition
}

var planTestCases = []planTestCase{
	{
		totalLength: 1000,
		workers:     3,
		expected: []download.Partition{
			{Index: 0, Start: 0, End: 332},
			{Index: 1, Start: 333, End: 665},
			{Index: 2, Start: 666, End: 999},
		},
	},
	{
		totalLength: 10,
		workers:     1,
		expected: []download.Partition{
			{Index: 0, Start: 0, End: 9},
		},
	},
	{
		totalLength: 9,
		workers:     2,
		expected: []download.Partition{
			{Index: 0, Start: 0, End: 3},
			{Index: 1, Start: 4, End: 8},
		},
	},
	{
		// resource smaller than the worker count: one byte each
		totalLength: 3,
		workers:     8,
		expected: []download.Partition{
			{Index: 0, Start: 0, End: 0},
			{Index: 1, Start: 1, End: 1},
			{Index: 2, Start: 2, End: 2},
		},
	},
}

func TestPlan(t *testing.T) {
	for _, testCase := range planTestCases {
		actual, err := download.Plan(testCase.totalLength, testCase.workers)
		require.NoError(t, err)
		assert.Equal(t, testCase.expected, actual)
	}
}

func TestPlanInvalidLength(t *testing.T) {
	for _, totalLength := range []int64{0, -1, -1000} {
		_, err := download.Plan(totalLength, 4)
		assert.ErrorIs(t, err, download.ErrInvalidLength)
	}
}

// The partitions must be contiguous, ordered, non-overlapping, and cover
// exactly [0, totalLength-1] for every worker count the CLI accepts.
func TestPlanCoversResource(t *testing.T) {
	totals := []int64{1, 2, 31, 32, 33, 1000, 1 << 20, 1<<20 + 7}
	for _, totalLength := range totals {
		for workers := 1; workers <= 32; workers++ {
			partitions, err := download.Plan(totalLength, workers)
			require.NoError(t, err)
			require.NotEmpty(t, partitions)

			assert.Equal(t, int64(0), partitions[0].Start)
			assert.Equal(t, totalLength-1, partitions[len(partitions)-1].End)

			var covered int64
			for i, p := range partitions {
				assert.Equal(t, i, p.Index)
				assert.GreaterOrEqual(t, p.End, p.Start)
				if i > 0 {
					assert.Equal(t, partitions[i-1].End+1, p.Start)
				}
				covered += p.Size()
			}
			assert.Equal(t, totalLength, covered)
		}
	}
}
