package series

import (
	"github.com/relaydb/relaydb/codec"
	"github.com/relaydb/relaydb/internal/pool"
	"github.com/relaydb/relaydb/section"
	"github.com/relaydb/relaydb/storage"
)

// PageInMemory is the write-side half of a data page: the codec
// accumulating points into a pooled scratch buffer, plus where in the
// owning Tsdb's HeaderFile this page's page_info_on_disk record lives
// once the page has been made durable.
//
// A page starts out writing into Scratch, borrowed from the page buffer
// pool; once it is flushed to a DataFile, the caller copies Scratch's
// bytes into the mapped page and calls Codec.Rebase against that mapped
// slice, after which Scratch is returned to the pool.
type PageInMemory struct {
	Codec       codec.PageCodec
	Scratch     *pool.ByteBuffer
	FileIndex   storage.FileIndex
	HeaderIndex storage.HeaderIndex
	PageIndex   uint32
	OutOfOrder  bool
	TstampFrom  int64
	TstampTo    int64
}

// ReleaseScratch returns the page's staging buffer to the pool once its
// bytes have been copied into a durable DataFile page. Safe to call at
// most once per page.
func (p *PageInMemory) ReleaseScratch() {
	if p.Scratch != nil {
		pool.PutPageBuffer(p.Scratch)
		p.Scratch = nil
	}
}

// Linked reports whether this page has been assigned a HeaderFile slot,
// i.e. is reachable from the IndexFile/page chain rather than purely
// in-memory scratch space.
func (p *PageInMemory) Linked() bool {
	return p.HeaderIndex != storage.HeaderIndex(section.InvalidHeaderIndex)
}
