package core

import (
	"errors"
	"fmt"
	"io"
)

// Reader scans an archive stream record by record. It only reads forward
// and never reads past the first zero block.
type Reader struct {
	r         io.Reader
	hdrBuf    block
	remain    int64 // unread content bytes of the current entry
	pad       int64 // padding after the current entry's content
	err       error // sticky; io.EOF once the archive has ended
	truncated bool
	marker    bool
}

// NewReader returns a Reader positioned at the first header of r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next advances to the next entry, skipping whatever content and padding of
// the previous entry was left unread. It returns io.EOF at the end marker
// and also when the stream runs out at or inside a header record.
func (tr *Reader) Next() (*Header, error) {
	if tr.err != nil {
		return nil, tr.err
	}
	if err := tr.skipUnread(); err != nil {
		tr.err = err
		return nil, err
	}

	if _, err := io.ReadFull(tr.r, tr.hdrBuf[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			tr.err = io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			tr.truncated = true
			tr.err = io.EOF
		default:
			tr.err = fmt.Errorf("read header: %w", err)
		}
		return nil, tr.err
	}
	if tr.hdrBuf == zeroBlock {
		tr.marker = true
		tr.err = io.EOF
		return nil, io.EOF
	}

	hdr, err := DecodeHeader(tr.hdrBuf[:])
	if err != nil {
		tr.err = err
		return nil, err
	}
	var size int64
	if flag := hdr.Typeflag(); flag == TypeRegular || !flag.Known() {
		size = max(hdr.FileSize(), 0)
	}
	tr.remain = size
	tr.pad = paddingSize(size)
	return hdr, nil
}

// Read reads from the content of the current entry. It returns io.EOF at
// the end of the content.
func (tr *Reader) Read(p []byte) (int, error) {
	if tr.remain == 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > tr.remain {
		p = p[:tr.remain]
	}
	n, err := tr.r.Read(p)
	tr.remain -= int64(n)
	if errors.Is(err, io.EOF) && tr.remain > 0 {
		err = io.ErrUnexpectedEOF
	}
	if err == nil && tr.remain == 0 {
		err = io.EOF
	}
	return n, err
}

// skipUnread discards the rest of the current entry's content and its
// padding. Running out of stream inside the content is an error; running
// out inside the padding ends the archive with io.EOF.
func (tr *Reader) skipUnread() error {
	if tr.remain == 0 && tr.pad == 0 {
		return nil
	}
	content, pad := tr.remain, tr.pad
	tr.remain, tr.pad = 0, 0

	n, err := io.CopyN(io.Discard, tr.r, content+pad)
	if err == nil {
		return nil
	}
	if !errors.Is(err, io.EOF) {
		return fmt.Errorf("skip entry content: %w", err)
	}
	if n < content {
		return fmt.Errorf("skip entry content: %w", io.ErrUnexpectedEOF)
	}
	tr.truncated = true
	return io.EOF
}

// Truncated reports whether the stream ended without an end marker part
// way through a record
func (tr *Reader) Truncated() bool {
	return tr.truncated
}

// EndMarker reports whether the scan stopped at a zero block
func (tr *Reader) EndMarker() bool {
	return tr.marker
}

// ListArchive returns the entries of an archive stream in order
func ListArchive(r io.Reader) ([]ListEntry, error) {
	tr := NewReader(r)
	var entries []ListEntry
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, ListEntry{
			Name:     hdr.FileName(),
			Type:     hdr.Typeflag(),
			Size:     hdr.FileSize(),
			Mode:     hdr.Mode(),
			LinkName: hdr.LinkName(),
			Owner:    hdr.UserName(),
			Group:    hdr.GroupName(),
			ModTime:  hdr.ModTime(),
		})
	}
}
