// Package service coordinates the engine with its collaborators. It is
// the only write entry point: one mutex serializes every engine call,
// as the book itself is an unsynchronized single-writer structure.
package service

import (
	"sync"

	"go.uber.org/zap"

	"clob/domain/book"
	"clob/infra/outbox"
	"clob/infra/sequence"
	"clob/infra/wal"
)

// Stats is the read model behind /orderbook and /stats. Prices are in
// minor units; zero means the side is empty.
type Stats struct {
	BestBid    uint64
	BestAsk    uint64
	Spread     uint64
	OrderCount int
	BidLevels  int
	AskLevels  int
}

// OrderService owns the engine's mutation domain. The journal and the
// outbox are optional collaborators; nil disables them.
type OrderService struct {
	mu   sync.Mutex
	book *book.Book
	log  *zap.Logger

	journal *wal.WAL
	outbox  *outbox.Outbox
	seq     *sequence.Sequencer

	listeners []func(book.Trade)
}

func New(b *book.Book, logger *zap.Logger, journal *wal.WAL, ob *outbox.Outbox) *OrderService {
	return &OrderService{
		book:    b,
		log:     logger,
		journal: journal,
		outbox:  ob,
		seq:     sequence.New(0),
	}
}

// RegisterTradeListener adds an in-process trade sink. Register before
// serving traffic; listeners run on the submission path and must not
// block.
func (s *OrderService) RegisterTradeListener(fn func(book.Trade)) {
	s.listeners = append(s.listeners, fn)
}

// Submit runs one submission through the engine and fans the resulting
// trades out to the journal, the outbox, and the listeners.
func (s *OrderService) Submit(price uint64, qty uint32, side book.Side) (uint64, []book.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, trades, err := s.book.Submit(price, qty, side)
	if err != nil {
		return 0, nil, err
	}

	s.append(wal.RecordSubmit, book.EncodeSubmit(id, price, qty, side))
	for _, tr := range trades {
		seq := s.seq.Next()
		payload := tr.EncodeBinary()
		if s.journal != nil {
			if err := s.journal.Append(&wal.Record{Type: wal.RecordTrade, Seq: seq, Time: tr.Time.UnixNano(), Data: payload}); err != nil {
				s.log.Error("journal append failed", zap.Error(err))
			}
		}
		if s.outbox != nil {
			if err := s.outbox.PutNew(seq, payload); err != nil {
				s.log.Error("outbox enqueue failed", zap.Uint64("seq", seq), zap.Error(err))
			}
		}
		for _, fn := range s.listeners {
			fn(tr)
		}
	}

	s.log.Debug("order submitted",
		zap.Uint64("order_id", id),
		zap.String("side", side.String()),
		zap.Uint64("price", price),
		zap.Uint32("quantity", qty),
		zap.Int("trades", len(trades)),
	)
	return id, trades, nil
}

// Cancel removes a resting order. False means the ID is unknown.
func (s *OrderService) Cancel(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.book.Cancel(id)
	if ok {
		s.append(wal.RecordCancel, book.EncodeCancel(id))
	}

	s.log.Debug("order cancel", zap.Uint64("order_id", id), zap.Bool("found", ok))
	return ok
}

// Stats returns the top-of-book read model.
func (s *OrderService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BestBid:    s.book.BestBid(),
		BestAsk:    s.book.BestAsk(),
		Spread:     s.book.Spread(),
		OrderCount: s.book.OrderCount(),
		BidLevels:  s.book.BidLevels(),
		AskLevels:  s.book.AskLevels(),
	}
}

// Depth returns up to maxLevels aggregated rows per side, best first.
func (s *OrderService) Depth(maxLevels int) (bids, asks []book.DepthLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Depth(maxLevels)
}

func (s *OrderService) append(t wal.RecordType, payload []byte) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(wal.NewRecord(t, s.seq.Next(), payload)); err != nil {
		s.log.Error("journal append failed", zap.Error(err))
	}
}
