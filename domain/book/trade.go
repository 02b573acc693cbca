package book

import "time"

// Trade is an immutable record of one match. Price is always the maker's
// resting price. BuyerID may equal SellerID: the engine has no self-trade
// prevention, a participant quoting both sides trades with itself.
type Trade struct {
	BuyerID  uint64
	SellerID uint64
	Price    uint64 // minor units
	Quantity uint32
	Time     time.Time
}
