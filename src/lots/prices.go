package lots

import (
	"sort"
	"time"
)

// PricePoint is one quoted price for a security.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// PriceIndex resolves "most recent price on or before date" lookups for
// dividend-reinvestment cost basis.
type PriceIndex map[string][]PricePoint

func NewPriceIndex() PriceIndex {
	return make(PriceIndex)
}

func (idx PriceIndex) Add(securityID string, date time.Time, price float64) {
	idx[securityID] = append(idx[securityID], PricePoint{Date: date, Price: price})
}

// LatestOnOrBefore returns the most recent price quoted on or before date.
func (idx PriceIndex) LatestOnOrBefore(securityID string, date time.Time) (float64, bool) {
	points := idx[securityID]
	if len(points) == 0 {
		return 0, false
	}
	if !sort.SliceIsSorted(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) }) {
		sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
		idx[securityID] = points
	}

	// First point strictly after date; the answer is its predecessor.
	i := sort.Search(len(points), func(i int) bool { return points[i].Date.After(date) })
	if i == 0 {
		return 0, false
	}
	return points[i-1].Price, true
}
