// Package outbox implements a pebble-backed at-least-once delivery
// outbox for trade dissemination. The matching path enqueues trades
// durably; the broadcaster drains pending entries to Kafka and marks
// them acknowledged. A crash between the two replays the entry.
package outbox

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Entry is one outbox record keyed by trade sequence number.
type Entry struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// value encoding: [state:1][retries:4][lastAttempt:8][payload...]
const valueHeader = 1 + 4 + 8

var ErrInvalidEntry = errors.New("outbox: invalid entry encoding")

func encodeValue(e Entry) []byte {
	buf := make([]byte, valueHeader+len(e.Payload))
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(e.LastAttempt))
	copy(buf[valueHeader:], e.Payload)
	return buf
}

func decodeValue(seq uint64, b []byte) (Entry, error) {
	if len(b) < valueHeader {
		return Entry{}, ErrInvalidEntry
	}
	payload := make([]byte, len(b)-valueHeader)
	copy(payload, b[valueHeader:])
	return Entry{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

func keyFor(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// PutNew inserts a fresh entry, synced so a crash cannot lose it.
func (o *Outbox) PutNew(seq uint64, payload []byte) error {
	e := Entry{Seq: seq, State: StateNew, Payload: payload}
	return o.db.Set(keyFor(seq), encodeValue(e), pebble.Sync)
}

// Get returns the entry for seq.
func (o *Outbox) Get(seq uint64) (Entry, error) {
	v, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return Entry{}, err
	}
	defer closer.Close()
	return decodeValue(seq, v)
}

// MarkSent moves an entry to SENT and bumps its retry counter.
func (o *Outbox) MarkSent(seq uint64) error {
	return o.transition(seq, StateSent)
}

// MarkAcked records successful delivery.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.transition(seq, StateAcked)
}

// Fail records a delivery failure; the entry stays pending.
func (o *Outbox) Fail(seq uint64) error {
	return o.transition(seq, StateFailed)
}

func (o *Outbox) transition(seq uint64, to State) error {
	e, err := o.Get(seq)
	if err != nil {
		return err
	}
	e.State = to
	e.Retries++
	e.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(seq), encodeValue(e), pebble.Sync)
}

// Delete removes an entry, normally after it is ACKED.
func (o *Outbox) Delete(seq uint64) error {
	return o.db.Delete(keyFor(seq), pebble.Sync)
}

// ScanPending visits every entry not yet acknowledged, lowest sequence
// first. SENT entries are included: a crash between send and ack must
// replay the trade, at the cost of a possible duplicate downstream.
// The callback returning an error stops the scan.
func (o *Outbox) ScanPending(fn func(Entry) error) error {
	iter, err := o.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if len(iter.Key()) != 8 {
			continue
		}
		seq := binary.BigEndian.Uint64(iter.Key())
		e, err := decodeValue(seq, iter.Value())
		if err != nil {
			return err
		}
		if e.State == StateAcked {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}
