package book

import (
	"errors"
	"fmt"
	"time"

	"clob/infra/memory"
)

var (
	ErrInvalidPrice    = errors.New("price must be greater than zero")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrInvalidSide     = errors.New("side must be BUY or SELL")
)

// Book is the single-instrument order book and matching engine.
//
// Bids and Asks map price to non-empty levels; orders indexes every
// resting order by ID. The tape accumulates every trade ever matched,
// in match order. All mutation is unsynchronized single-writer.
type Book struct {
	bids   *RBTree
	asks   *RBTree
	orders map[uint64]*Order
	tape   []Trade

	nextID uint64
	pool   *memory.Pool[Order]
}

func New() *Book {
	return &Book{
		bids:   NewRBTree(),
		asks:   NewRBTree(),
		orders: make(map[uint64]*Order),
		nextID: 1,
		pool:   memory.NewPool(func() *Order { return &Order{} }),
	}
}

// Submit validates, mints the next order ID, matches the order against
// the opposite side, and rests any remainder at its limit price. It
// returns the new order's ID and the trades produced by this submission,
// oldest first. A validation failure consumes no ID and emits no trades.
func (b *Book) Submit(price uint64, qty uint32, side Side) (uint64, []Trade, error) {
	if price == 0 {
		return 0, nil, ErrInvalidPrice
	}
	if qty == 0 {
		return 0, nil, ErrInvalidQuantity
	}
	if side != Buy && side != Sell {
		return 0, nil, ErrInvalidSide
	}

	o := b.pool.Get()
	*o = Order{
		ID:        b.nextID,
		Price:     price,
		Quantity:  qty,
		Side:      side,
		Status:    StatusNew,
		CreatedAt: time.Now(),
	}
	b.nextID++
	b.orders[o.ID] = o

	trades := b.match(o)

	if o.IsFullyFilled() {
		id := o.ID
		delete(b.orders, o.ID)
		b.release(o)
		return id, trades, nil
	}

	b.rest(o)
	return o.ID, trades, nil
}

// Cancel removes a resting order. It returns false when the ID is
// unknown: never submitted, already filled, or already cancelled.
func (b *Book) Cancel(id uint64) bool {
	o, ok := b.orders[id]
	if !ok {
		return false
	}

	side := b.bids
	if o.Side == Sell {
		side = b.asks
	}
	lvl := side.FindLevel(o.Price)
	if lvl == nil {
		panic(fmt.Sprintf("book: resting order %d has no price level at %d", id, o.Price))
	}
	lvl.Unlink(o)
	if lvl.Empty() {
		side.DeleteLevel(lvl.Price)
	}

	delete(b.orders, id)
	o.Status = StatusCancelled
	b.release(o)
	return true
}

// match runs the taker against the opposite side until its limit no
// longer crosses or liquidity runs out. Best level first, FIFO inside
// a level, execution at the maker's resting price.
func (b *Book) match(taker *Order) []Trade {
	var trades []Trade

	for taker.Remaining() > 0 {
		var opp *RBTree
		var lvl *PriceLevel
		if taker.Side == Buy {
			opp = b.asks
			lvl = opp.MinLevel()
		} else {
			opp = b.bids
			lvl = opp.MaxLevel()
		}
		if lvl == nil {
			break
		}

		crosses := (taker.Side == Buy && taker.Price >= lvl.Price) ||
			(taker.Side == Sell && taker.Price <= lvl.Price)
		if !crosses {
			break
		}

		for taker.Remaining() > 0 && !lvl.Empty() {
			maker := lvl.Head()
			qty := taker.Remaining()
			if r := maker.Remaining(); r < qty {
				qty = r
			}

			tr := Trade{
				BuyerID:  taker.ID,
				SellerID: maker.ID,
				Price:    lvl.Price,
				Quantity: qty,
				Time:     time.Now(),
			}
			if taker.Side == Sell {
				tr.BuyerID, tr.SellerID = maker.ID, taker.ID
			}
			trades = append(trades, tr)
			b.tape = append(b.tape, tr)

			taker.Fill(qty)
			maker.Fill(qty)
			lvl.reduce(qty)

			if maker.IsFullyFilled() {
				lvl.Unlink(maker)
				delete(b.orders, maker.ID)
				b.release(maker)
			}
		}

		if lvl.Empty() {
			opp.DeleteLevel(lvl.Price)
		}
	}

	return trades
}

// rest places the unfilled remainder at its limit price on its own side.
func (b *Book) rest(o *Order) {
	side := b.bids
	if o.Side == Sell {
		side = b.asks
	}
	side.UpsertLevel(o.Price).Enqueue(o)
}

// release returns a destroyed order to the pool. The record must
// already be out of the index and out of every price level.
func (b *Book) release(o *Order) {
	*o = Order{}
	b.pool.Put(o)
}

// --- snapshot accessors ---

// BestBid returns the highest bid price, or 0 when the bid side is empty.
func (b *Book) BestBid() uint64 {
	if lvl := b.bids.MaxLevel(); lvl != nil {
		return lvl.Price
	}
	return 0
}

// BestAsk returns the lowest ask price, or 0 when the ask side is empty.
func (b *Book) BestAsk() uint64 {
	if lvl := b.asks.MinLevel(); lvl != nil {
		return lvl.Price
	}
	return 0
}

// Spread returns best ask minus best bid, or 0 when either side is empty.
func (b *Book) Spread() uint64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// OrderCount returns the number of resting orders.
func (b *Book) OrderCount() int { return len(b.orders) }

// BidLevels returns the number of distinct bid price levels.
func (b *Book) BidLevels() int { return b.bids.Size() }

// AskLevels returns the number of distinct ask price levels.
func (b *Book) AskLevels() int { return b.asks.Size() }

// Order returns the resting order with the given ID, or nil. The
// returned record is owned by the book and only valid until the next
// mutation.
func (b *Book) Order(id uint64) *Order {
	return b.orders[id]
}

// Tape returns the global trade tape, oldest first. The returned slice
// is the book's backing array; callers must not mutate it.
func (b *Book) Tape() []Trade {
	return b.tape
}
