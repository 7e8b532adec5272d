// Package cmap provides a concurrent map implementation for licmesh.
//
// Keys are spread across a power-of-two number of shards by murmur3
// hash; each shard has its own RWMutex. Read operations (Get, Has) take
// the read lock, write operations (Set, Delete, Update) the write lock.
//
// Usage:
//
//	m := cmap.New[uint64, *Entry]()
//	m.Set(7, entry)
//	val, ok := m.Get(7)
package cmap
