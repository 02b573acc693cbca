// Package broadcaster drains the trade outbox to Kafka. Delivery is
// at-least-once: an entry is deleted after the broker acknowledges it,
// so a crash mid-flight replays the trade. An entry whose retry counter
// has reached maxRetries, or whose payload does not decode, is deleted
// without being delivered.
package broadcaster

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"clob/domain/book"
	"clob/infra/outbox"
)

const maxRetries = 5

// Event is the wire format published to the trade topic.
type Event struct {
	V        int    `json:"v"`
	Seq      uint64 `json:"seq"`
	BuyerID  uint64 `json:"buyer_id"`
	SellerID uint64 `json:"seller_id"`
	Price    uint64 `json:"price"`
	Quantity uint32 `json:"quantity"`
}

type Broadcaster struct {
	outbox   *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *zap.Logger
}

func New(ob *outbox.Outbox, brokers []string, topic string, interval time.Duration, logger *zap.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:   ob,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      logger,
	}, nil
}

// Run drains pending entries until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.drainOnce(ctx)
		}
	}
}

func (b *Broadcaster) drainOnce(ctx context.Context) {
	err := b.outbox.ScanPending(func(e outbox.Entry) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.Retries >= maxRetries {
			b.log.Warn("dropping outbox entry after max retries", zap.Uint64("seq", e.Seq))
			return b.outbox.Delete(e.Seq)
		}
		return b.publish(e)
	})
	if err != nil && ctx.Err() == nil {
		b.log.Error("outbox drain failed", zap.Error(err))
	}
}

func (b *Broadcaster) publish(e outbox.Entry) error {
	tr, err := book.DecodeTrade(e.Payload)
	if err != nil {
		b.log.Error("undecodable outbox payload, dropping", zap.Uint64("seq", e.Seq), zap.Error(err))
		return b.outbox.Delete(e.Seq)
	}

	value, err := json.Marshal(Event{
		V:        1,
		Seq:      e.Seq,
		BuyerID:  tr.BuyerID,
		SellerID: tr.SellerID,
		Price:    tr.Price,
		Quantity: tr.Quantity,
	})
	if err != nil {
		return err
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, e.Seq)

	if err := b.outbox.MarkSent(e.Seq); err != nil {
		return err
	}
	_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		b.log.Warn("trade publish failed", zap.Uint64("seq", e.Seq), zap.Error(err))
		return b.outbox.Fail(e.Seq)
	}

	if err := b.outbox.MarkAcked(e.Seq); err != nil {
		return err
	}
	return b.outbox.Delete(e.Seq)
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
