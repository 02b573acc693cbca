package book

import (
	"encoding/binary"
	"errors"
)

// Fixed-width binary codecs for journal and outbox payloads.

var ErrShortPayload = errors.New("book: payload too short")

const (
	submitEventSize = 8 + 8 + 4 + 1
	cancelEventSize = 8
	tradeEventSize  = 8 + 8 + 8 + 4
)

// EncodeSubmit serializes an accepted submission: id, price, quantity, side.
func EncodeSubmit(id uint64, price uint64, qty uint32, side Side) []byte {
	buf := make([]byte, submitEventSize)
	binary.BigEndian.PutUint64(buf[0:8], id)
	binary.BigEndian.PutUint64(buf[8:16], price)
	binary.BigEndian.PutUint32(buf[16:20], qty)
	buf[20] = byte(side)
	return buf
}

// EncodeCancel serializes a cancellation.
func EncodeCancel(id uint64) []byte {
	buf := make([]byte, cancelEventSize)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// EncodeBinary serializes a trade for the journal and the outbox.
func (t Trade) EncodeBinary() []byte {
	buf := make([]byte, tradeEventSize)
	binary.BigEndian.PutUint64(buf[0:8], t.BuyerID)
	binary.BigEndian.PutUint64(buf[8:16], t.SellerID)
	binary.BigEndian.PutUint64(buf[16:24], t.Price)
	binary.BigEndian.PutUint32(buf[24:28], t.Quantity)
	return buf
}

// DecodeTrade reverses Trade.EncodeBinary. The timestamp is not part
// of the payload; journal records carry it in the frame.
func DecodeTrade(data []byte) (Trade, error) {
	if len(data) < tradeEventSize {
		return Trade{}, ErrShortPayload
	}
	return Trade{
		BuyerID:  binary.BigEndian.Uint64(data[0:8]),
		SellerID: binary.BigEndian.Uint64(data[8:16]),
		Price:    binary.BigEndian.Uint64(data[16:24]),
		Quantity: binary.BigEndian.Uint32(data[24:28]),
	}, nil
}
