package access

import (
	"github.com/minirel/MinirelDB/storage/tuple"
)

// PageStoreIterator walks the live records of a page store in position order
//
// The tuple being pointed to can be accessed with the method Current.
// Records appended after the iterator passed the end are not visited.
type PageStoreIterator struct {
	store *PageStore
	pos   int
	tuple *tuple.Tuple
}

// NewPageStoreIterator points to the first live record of store
func NewPageStoreIterator(store *PageStore) *PageStoreIterator {
	it := &PageStoreIterator{store, -1, nil}
	it.Next()
	return it
}

func (it *PageStoreIterator) Current() *tuple.Tuple {
	return it.tuple
}

func (it *PageStoreIterator) End() bool {
	return it.Current() == nil
}

// Next advances to the next live record. records deleted after the
// iterator was created are skipped.
func (it *PageStoreIterator) Next() *tuple.Tuple {
	it.store.latch.RLock()
	defer it.store.latch.RUnlock()
	it.tuple = nil
	for it.pos+1 < len(it.store.records) {
		it.pos++
		if !it.store.deleted[it.pos] && it.store.records[it.pos] != nil {
			it.tuple = it.store.records[it.pos]
			break
		}
	}
	return it.tuple
}
