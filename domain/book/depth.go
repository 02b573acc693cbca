package book

// DepthLevel is one aggregated row of the book: a price, the total
// resting quantity at that price, and the number of orders queued.
type DepthLevel struct {
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity"`
	Orders   int    `json:"orders"`
}

// Depth returns up to maxLevels aggregated rows per side, best price
// first. maxLevels <= 0 means the whole book.
func (b *Book) Depth(maxLevels int) (bids, asks []DepthLevel) {
	take := func(out *[]DepthLevel) func(*PriceLevel) bool {
		return func(lvl *PriceLevel) bool {
			*out = append(*out, DepthLevel{
				Price:    lvl.Price,
				Quantity: lvl.TotalQty,
				Orders:   lvl.OrderCount,
			})
			return maxLevels <= 0 || len(*out) < maxLevels
		}
	}
	b.bids.ForEachDescending(take(&bids))
	b.asks.ForEachAscending(take(&asks))
	return bids, asks
}
