// Package depth periodically publishes aggregated book snapshots to a
// Kafka topic for market-data consumers.
package depth

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"clob/domain/book"
	"clob/infra/kafka"
)

// Snapshot is the wire format published to the depth topic. Prices are
// in minor units.
type Snapshot struct {
	V    int               `json:"v"`
	Time int64             `json:"time"`
	Bids []book.DepthLevel `json:"bids"`
	Asks []book.DepthLevel `json:"asks"`
}

// Source yields the current aggregated depth, best price first.
type Source interface {
	Depth(maxLevels int) (bids, asks []book.DepthLevel)
}

type Publisher struct {
	source   Source
	producer *kafka.Producer
	levels   int
	interval time.Duration
	log      *zap.Logger
}

func NewPublisher(src Source, producer *kafka.Producer, levels int, interval time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{
		source:   src,
		producer: producer,
		levels:   levels,
		interval: interval,
		log:      logger,
	}
}

// Run publishes snapshots until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce(ctx)
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) {
	bids, asks := p.source.Depth(p.levels)
	value, err := json.Marshal(Snapshot{
		V:    1,
		Time: time.Now().UnixNano(),
		Bids: bids,
		Asks: asks,
	})
	if err != nil {
		p.log.Error("depth snapshot marshal failed", zap.Error(err))
		return
	}
	if err := p.producer.Send(ctx, nil, value); err != nil && ctx.Err() == nil {
		p.log.Warn("depth publish failed", zap.Error(err))
	}
}
