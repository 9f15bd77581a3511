// Package pager offers random access to fixed-size pages of a SQLite file,
// computing page offsets and reading raw bytes on demand. It mirrors the
// teacher's FileReader/ReadPage split but reads through io.ReaderAt so the
// same Pager works against a real file or an in-memory fixture.
package pager

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/hgye/litescan/internal/litescanerr"
)

const headerMagic = "SQLite format 3\x00"

// databaseHeaderSize is the fixed 100-byte header every SQLite file begins
// with; only the fields this core cares about are kept.
const databaseHeaderSize = 100

// Pager reads fixed-size pages from an underlying ReaderAt. It is safe to
// call ReadPage any number of times; no caching is performed, and each call
// reads a fresh buffer. Pager does no locking of its own: the engine drives
// it from a single goroutine, one page read at a time.
type Pager struct {
	r               io.ReaderAt
	pageSize        int
	reservedPerPage int
	log             *logrus.Entry
}

// Open reads and validates the 100-byte database header from r, returning a
// Pager configured with the header's page size and reserved-space-per-page.
func Open(r io.ReaderAt, log *logrus.Entry) (*Pager, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	var hdr [databaseHeaderSize]byte
	n, err := r.ReadAt(hdr[:], 0)
	if err != nil && n < databaseHeaderSize {
		return nil, litescanerr.Wrap("pager.Open", fmt.Errorf("%w: %v", litescanerr.ErrIO, err), nil)
	}
	if string(hdr[0:16]) != headerMagic {
		return nil, litescanerr.Wrap("pager.Open", fmt.Errorf("%w: bad magic", litescanerr.ErrInvalidHeader), nil)
	}

	pageSize := int(binary.BigEndian.Uint16(hdr[16:18]))
	if pageSize == 1 {
		pageSize = 65536
	}
	if pageSize < 512 || (pageSize&(pageSize-1)) != 0 {
		return nil, litescanerr.Wrap("pager.Open", fmt.Errorf("%w: invalid page size %d", litescanerr.ErrInvalidHeader, pageSize), nil)
	}

	reserved := int(hdr[20])

	log.WithFields(logrus.Fields{"page_size": pageSize, "reserved_per_page": reserved}).Debug("parsed database header")

	return &Pager{r: r, pageSize: pageSize, reservedPerPage: reserved, log: log}, nil
}

// PageSize returns the nominal page size read from the database header.
func (p *Pager) PageSize() int { return p.pageSize }

// UsablePageSize returns the page size minus the reserved-space-per-page
// recorded at header byte 20 — the size the cell readers in package page
// use to detect payloads that would require overflow pages.
func (p *Pager) UsablePageSize() int { return p.pageSize - p.reservedPerPage }

// ReadPage reads page n (1-based) in full, including its first 100 bytes
// of database header if n == 1. Fails with ErrIO on a short read.
func (p *Pager) ReadPage(n uint32) ([]byte, error) {
	if n == 0 {
		return nil, litescanerr.Wrap("pager.ReadPage", fmt.Errorf("%w: page numbers are 1-based", litescanerr.ErrInvalidHeader), nil)
	}
	offset := int64(n-1) * int64(p.pageSize)
	buf := make([]byte, p.pageSize)
	read, err := p.r.ReadAt(buf, offset)
	if err != nil && !(err == io.EOF && read == p.pageSize) {
		return nil, litescanerr.Wrap("pager.ReadPage", fmt.Errorf("%w: page %d: %v", litescanerr.ErrIO, n, err), map[string]any{"page": n})
	}
	p.log.WithField("page", n).Trace("read page")
	return buf, nil
}

// PageHeaderOffset returns the byte offset within a page buffer where its
// B-tree page-header begins: 100 for page 1, 0 otherwise.
func PageHeaderOffset(pageNumber uint32) int {
	if pageNumber == 1 {
		return databaseHeaderSize
	}
	return 0
}
