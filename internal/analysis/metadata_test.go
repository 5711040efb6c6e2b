package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetadataMergeIsIdempotentPerDate(t *testing.T) {
	d1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2023, 1, 11, 0, 0, 0, 0, time.UTC)

	a := NewMetadata()
	a.Add("baseline", d1, 80)
	a.Add("baseline", d2, 60)

	b := NewMetadata()
	b.Add("baseline", d1, 80)

	a.Merge(b)
	a.Merge(b)
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, []time.Time{d1, d2}, a.Dates())

	stats := a.Stats()
	assert.Equal(t, 80.0, stats[0].CleanPixelPercentage)
	assert.Equal(t, 60.0, stats[1].CleanPixelPercentage)
}

func TestMetadataMergeIsOrderIndependent(t *testing.T) {
	d1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2023, 1, 11, 0, 0, 0, 0, time.UTC)

	a := NewMetadata()
	a.Add("baseline", d1, 80)
	b := NewMetadata()
	b.Add("analysis", d2, 60)

	ab := NewMetadata()
	ab.Merge(a)
	ab.Merge(b)
	ba := NewMetadata()
	ba.Merge(b)
	ba.Merge(a)

	assert.Equal(t, ab.Stats(), ba.Stats())
	assert.Equal(t, ab.MaxRoleDateCount(), ba.MaxRoleDateCount())
}

func TestMaxRoleDateCount(t *testing.T) {
	m := NewMetadata()
	assert.Equal(t, 0, m.MaxRoleDateCount())

	d1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2023, 1, 11, 0, 0, 0, 0, time.UTC)
	m.Add("baseline", d1, 100)
	m.Add("analysis", d2, 100)
	assert.Equal(t, 1, m.MaxRoleDateCount())

	m.Add("analysis", d1, 100)
	assert.Equal(t, 2, m.MaxRoleDateCount())
}
