package models

// PriceBar is one fixed-interval open/close bar. BucketStart is the unix
// second of the bar's left edge on the interval grid.
type PriceBar struct {
	BucketStart int64
	Open        float64
	Close       float64
	Volume      float64
}

// BarIndex keys a bar series by bucket start for alignment lookups.
func BarIndex(bars []*PriceBar) map[int64]*PriceBar {
	idx := make(map[int64]*PriceBar, len(bars))
	for _, b := range bars {
		idx[b.BucketStart] = b
	}
	return idx
}
