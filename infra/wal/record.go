package wal

import "time"

type RecordType uint8

const (
	RecordSubmit RecordType = 1
	RecordCancel RecordType = 2
	RecordTrade  RecordType = 3
)

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64 // unix nanoseconds
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
