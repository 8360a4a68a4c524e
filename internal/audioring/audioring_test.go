package audioring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/speechdesk/speechdesk/internal/audioring"
)

func samplesOf(vals ...float32) []float32 { return vals }

func TestAppendAndSnapshotOrdering(t *testing.T) {
	b := audioring.New(4)
	b.Append(samplesOf(1, 2))
	b.Append(samplesOf(3, 4))

	assert.Equal(t, []float32{1, 2, 3, 4}, b.Snapshot(0))
}

func TestOverflowDiscardsOldest(t *testing.T) {
	b := audioring.New(4)
	b.Append(samplesOf(1, 2, 3, 4))
	b.Append(samplesOf(5, 6))

	assert.Equal(t, []float32{3, 4, 5, 6}, b.Snapshot(0))
	assert.Equal(t, 4, b.Len())
}

func TestAppendLargerThanCapacityKeepsTail(t *testing.T) {
	b := audioring.New(3)
	b.Append(samplesOf(1, 2, 3, 4, 5))

	assert.Equal(t, []float32{3, 4, 5}, b.Snapshot(0))
}

func TestSnapshotLimitReturnsMostRecent(t *testing.T) {
	b := audioring.New(8)
	b.Append(samplesOf(1, 2, 3, 4, 5))

	assert.Equal(t, []float32{4, 5}, b.Snapshot(2))
}

func TestClearResetsSize(t *testing.T) {
	b := audioring.New(4)
	b.Append(samplesOf(1, 2, 3))
	b.Clear()

	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Snapshot(0))
}

func TestSnapshotNeverAliasesInternalArray(t *testing.T) {
	b := audioring.New(4)
	b.Append(samplesOf(1, 2, 3))
	snap := b.Snapshot(0)
	snap[0] = 99

	assert.Equal(t, []float32{1, 2, 3}, b.Snapshot(0))
}

func TestWindowZeroPadsTail(t *testing.T) {
	b := audioring.New(4)
	b.Append(samplesOf(1, 2, 3))

	w := audioring.Window(b, 0, 2)
	assert.Equal(t, []float32{1, 2, 3, 0, 0}, w)
}
