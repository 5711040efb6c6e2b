package analysis

import (
	"sort"
	"time"
)

// AcquisitionStat records the clean-pixel percentage observed for one
// acquisition date.
type AcquisitionStat struct {
	Date                 time.Time `csv:"date"`
	CleanPixelPercentage float64   `csv:"clean_pixel_percentage"`
}

// Metadata accumulates per-acquisition statistics across chunks. Entries are
// keyed by date, so merging the same date twice keeps a single entry and the
// merge result does not depend on input order. Dates are also tracked per
// composite role: a trend plot only makes sense when at least one role saw
// more than one acquisition.
type Metadata struct {
	stats     map[time.Time]AcquisitionStat
	roleDates map[string]map[time.Time]struct{}
}

func NewMetadata() *Metadata {
	return &Metadata{
		stats:     make(map[time.Time]AcquisitionStat),
		roleDates: make(map[string]map[time.Time]struct{}),
	}
}

func (m *Metadata) Add(role string, date time.Time, cleanPixelPercentage float64) {
	if m.roleDates[role] == nil {
		m.roleDates[role] = make(map[time.Time]struct{})
	}
	m.roleDates[role][date] = struct{}{}
	if _, exists := m.stats[date]; exists {
		return
	}
	m.stats[date] = AcquisitionStat{Date: date, CleanPixelPercentage: cleanPixelPercentage}
}

// Merge takes the union of per-date entries; existing dates are kept, never
// double-counted.
func (m *Metadata) Merge(other *Metadata) {
	if other == nil {
		return
	}
	for date, stat := range other.stats {
		if _, exists := m.stats[date]; !exists {
			m.stats[date] = stat
		}
	}
	for role, dates := range other.roleDates {
		if m.roleDates[role] == nil {
			m.roleDates[role] = make(map[time.Time]struct{})
		}
		for date := range dates {
			m.roleDates[role][date] = struct{}{}
		}
	}
}

func (m *Metadata) Len() int {
	return len(m.stats)
}

// MaxRoleDateCount returns the largest number of distinct acquisition dates
// any single role contributed.
func (m *Metadata) MaxRoleDateCount() int {
	max := 0
	for _, dates := range m.roleDates {
		if len(dates) > max {
			max = len(dates)
		}
	}
	return max
}

// Dates returns the acquisition dates in ascending order.
func (m *Metadata) Dates() []time.Time {
	dates := make([]time.Time, 0, len(m.stats))
	for date := range m.stats {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Stats returns the per-acquisition entries in ascending date order.
func (m *Metadata) Stats() []AcquisitionStat {
	stats := make([]AcquisitionStat, 0, len(m.stats))
	for _, date := range m.Dates() {
		stats = append(stats, m.stats[date])
	}
	return stats
}
