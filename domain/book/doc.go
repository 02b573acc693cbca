// Package book implements the in-memory matching engine: a dual-sided
// price-ordered book with per-price FIFO queues, price-time priority
// matching, and an order index for O(log N) cancellation. It maintains
// two red-black trees for the bid and ask sides and an append-only tape
// of every trade produced.
//
// The book is a single-writer structure. Submit and Cancel must never
// run concurrently with each other or with the snapshot accessors;
// callers serialize access (see the service layer).
package book
