package download

import (
	"errors"
	"fmt"
)

var ErrInvalidLength = errors.New("resource length must be positive")

// Partition is a contiguous inclusive byte range of the target resource
// assigned to one worker. Partitions are immutable once planned.
type Partition struct {
	Index int
	Start int64
	End   int64
}

func (p Partition) Size() int64 {
	return p.End - p.Start + 1
}

// Plan splits [0, totalLength-1] into at most workers contiguous,
// non-overlapping inclusive ranges whose union is exactly the whole resource.
// The chunk size is totalLength/workers rounded down; the final partition
// absorbs the remainder. When the resource is smaller than the requested
// worker count, fewer partitions are returned so that none is empty.
func Plan(totalLength int64, workers int) ([]Partition, error) {
	if totalLength <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, totalLength)
	}
	if workers < 1 {
		return nil, fmt.Errorf("invalid worker count %d", workers)
	}
	if int64(workers) > totalLength {
		workers = int(totalLength)
	}

	chunk := totalLength / int64(workers)
	partitions := make([]Partition, workers)
	for i := range partitions {
		partitions[i] = Partition{
			Index: i,
			Start: int64(i) * chunk,
			End:   int64(i+1)*chunk - 1,
		}
	}
	partitions[workers-1].End = totalLength - 1
	return partitions, nil
}
