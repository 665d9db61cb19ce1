// Package fits reads and writes the subset of the FITS format needed for
// instrument response files: a primary HDU followed by binary table
// extensions. Encoding and decoding go through github.com/astrogo/fitsio.
//
// Decoding keeps the primary header and every BINTABLE extension; other
// extensions and primary array data are dropped. Before a buffer reaches
// the decoder its HDU layout is checked against the buffer length.
package fits

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/astrogo/fitsio"
)

// HDUList is an ordered list of HDUs, the first of which is primary.
type HDUList struct {
	hdus []HDU
}

// NewHDUList returns a list holding hdus. A primary HDU is prepended when
// the first HDU is not one.
func NewHDUList(hdus ...HDU) *HDUList {
	l := &HDUList{}
	if len(hdus) == 0 {
		l.hdus = []HDU{NewPrimaryHDU()}
		return l
	}
	if _, ok := hdus[0].(*PrimaryHDU); !ok {
		l.hdus = append(l.hdus, NewPrimaryHDU())
	}
	l.hdus = append(l.hdus, hdus...)
	return l
}

// Len returns the number of HDUs including the primary.
func (l *HDUList) Len() int { return len(l.hdus) }

// HDUs returns the HDUs in file order.
func (l *HDUList) HDUs() []HDU {
	out := make([]HDU, len(l.hdus))
	copy(out, l.hdus)
	return out
}

// Append adds an extension at the end of the list.
func (l *HDUList) Append(h HDU) {
	l.hdus = append(l.hdus, h)
}

// Index returns the HDU with the given EXTNAME (case-insensitive).
func (l *HDUList) Index(name string) (HDU, error) {
	for _, h := range l.hdus {
		if strings.EqualFold(h.Name(), name) {
			return h, nil
		}
	}
	return nil, &LookupError{Kind: "extension", Name: name}
}

// BinTable returns the binary table extension with the given EXTNAME.
func (l *HDUList) BinTable(name string) (*BinTable, error) {
	h, err := l.Index(name)
	if err != nil {
		return nil, err
	}
	t, ok := h.(*BinTable)
	if !ok {
		return nil, fmt.Errorf("extension %q is not a binary table", name)
	}
	return t, nil
}

// Validate checks that every header card can be written. The error
// matches ErrValue.
func (l *HDUList) Validate() error {
	for i, h := range l.hdus {
		if err := h.Header().Validate(); err != nil {
			return fmt.Errorf("hdu %d: %w", i, err)
		}
	}
	return nil
}

// WriteTo encodes the list to w. Nothing is written when Validate fails.
func (l *HDUList) WriteTo(w io.Writer) (int64, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	f, err := fitsio.Create(cw)
	if err != nil {
		return cw.n, err
	}
	for i, h := range l.hdus {
		hdu, err := h.encode()
		if err != nil {
			f.Close()
			return cw.n, fmt.Errorf("hdu %d: %w", i, err)
		}
		err = f.Write(hdu)
		hdu.Close()
		if err != nil {
			f.Close()
			return cw.n, fmt.Errorf("hdu %d: %w", i, err)
		}
	}
	return cw.n, f.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Bytes encodes the list into memory.
func (l *HDUList) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := l.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteOption configures WriteFile.
type WriteOption func(*writeOptions)

type writeOptions struct {
	overwrite bool
}

// Overwrite allows WriteFile to replace an existing file.
func Overwrite(overwrite bool) WriteOption {
	return func(o *writeOptions) { o.overwrite = overwrite }
}

// WriteFile writes the list to path. Without Overwrite(true) an existing
// file is left untouched and an error matching os.ErrExist is returned.
// The list is encoded before the file is opened, so an invalid list
// leaves no partial file behind.
func (l *HDUList) WriteFile(path string, opts ...WriteOption) (err error) {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}

	data, err := l.Bytes()
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !o.overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Decode reads a complete FITS file from r. Malformed input is reported
// as an error matching ErrFormat.
func Decode(r io.Reader) (*HDUList, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := checkLayout(buf); err != nil {
		return nil, err
	}
	return decodeBytes(buf)
}

// Open reads the FITS file at path. The file is closed before returning.
func Open(path string) (*HDUList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	l, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

func decodeBytes(buf []byte) (l *HDUList, err error) {
	// The layout is already known to be sound; a panic here means a
	// table body fitsio could not interpret.
	defer func() {
		if p := recover(); p != nil {
			l, err = nil, formatErr("%v", p)
		}
	}()

	f, err := fitsio.Open(bytes.NewReader(buf))
	if err != nil {
		return nil, formatErr("%v", err)
	}
	defer f.Close()

	l = &HDUList{}
	for i, hdu := range f.HDUs() {
		if i == 0 {
			p := NewPrimaryHDU()
			importCards(p.header, hdu.Header())
			l.hdus = append(l.hdus, p)
			continue
		}
		tbl, ok := hdu.(*fitsio.Table)
		if !ok || hdu.Type() != fitsio.BINARY_TBL {
			continue
		}
		t, err := decodeTable(tbl)
		if err != nil {
			return nil, fmt.Errorf("hdu %d: %w", i, err)
		}
		l.hdus = append(l.hdus, t)
	}
	if len(l.hdus) == 0 {
		return nil, formatErr("no primary HDU")
	}
	return l, nil
}
