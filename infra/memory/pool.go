// Package memory provides object pooling for the hot allocation paths.
// The matching loop allocates and destroys an order record per
// submission; pooling keeps GC churn out of the latency path.
package memory

import "sync"

// Pool is a typed object pool. Records recycled through it must be
// fully reset by the caller before reuse.
type Pool[T any] struct {
	p *sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	p.p.Put(v)
}
