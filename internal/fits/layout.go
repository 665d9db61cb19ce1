package fits

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxAxes is the largest NAXIS the standard allows.
const maxAxes = 999

// checkLayout walks the HDU headers in buf and verifies that every data
// section is well formed and lies inside buf. Only the size keywords are
// read; everything else is left to the decoder.
func checkLayout(buf []byte) error {
	if len(buf) < blockSize {
		return formatErr("file shorter than one block")
	}

	off := 0
	for n := 0; off < len(buf); n++ {
		if isPadding(buf[off:]) {
			break
		}
		size, used, err := hduLayout(buf[off:], n == 0)
		if err != nil {
			return fmt.Errorf("hdu %d: %w", n, err)
		}
		off += used
		if size > int64(len(buf)-off) {
			return formatErr("hdu %d: data truncated", n)
		}
		off += int(size)
		if rem := off % blockSize; rem != 0 {
			off += blockSize - rem
		}
	}
	return nil
}

// hduLayout scans one header. It returns the data size in bytes and the
// header length rounded up to whole blocks.
func hduLayout(buf []byte, primary bool) (size int64, used int, err error) {
	want := "XTENSION"
	if primary {
		want = "SIMPLE"
	}

	sizes := make(map[string]int64)
	for off := 0; off+cardSize <= len(buf); off += cardSize {
		rec := buf[off : off+cardSize]
		key := strings.TrimSpace(string(rec[:8]))
		if off == 0 && key != want {
			return 0, 0, formatErr("header must start with %s", want)
		}
		if key == "END" {
			used = off + cardSize
			if rem := used % blockSize; rem != 0 {
				used += blockSize - rem
			}
			size, err = dataSize(sizes)
			return size, used, err
		}
		if isSizeKey(key) && string(rec[8:10]) == "= " {
			v, err := cardInt(string(rec[10:]))
			if err != nil {
				return 0, 0, formatErr("keyword %s: %v", key, err)
			}
			sizes[key] = v
		}
	}
	return 0, 0, formatErr("header has no END card")
}

func isSizeKey(key string) bool {
	switch key {
	case "BITPIX", "NAXIS", "PCOUNT", "GCOUNT":
		return true
	}
	rest, ok := strings.CutPrefix(key, "NAXIS")
	return ok && rest != "" && strings.Trim(rest, "0123456789") == ""
}

// cardInt parses the integer in a card's value field.
func cardInt(field string) (int64, error) {
	if i := strings.IndexByte(field, '/'); i >= 0 {
		field = field[:i]
	}
	return strconv.ParseInt(strings.TrimSpace(field), 10, 64)
}

// dataSize computes |BITPIX|/8 * GCOUNT * (PCOUNT + NAXIS1*...*NAXISn)
// with every factor checked for sign and the product for overflow.
func dataSize(sizes map[string]int64) (int64, error) {
	naxis, ok := sizes["NAXIS"]
	if !ok {
		return 0, formatErr("missing NAXIS")
	}
	if naxis < 0 || naxis > maxAxes {
		return 0, formatErr("NAXIS = %d out of range", naxis)
	}

	var width int64
	switch bitpix := sizes["BITPIX"]; bitpix {
	case 8, 16, 32, 64, -32, -64:
		width = max(bitpix, -bitpix) / 8
	default:
		return 0, formatErr("BITPIX = %d is not valid", bitpix)
	}
	if naxis == 0 {
		return 0, nil
	}

	elems := int64(1)
	for i := int64(1); i <= naxis; i++ {
		key := "NAXIS" + strconv.FormatInt(i, 10)
		v, ok := sizes[key]
		if !ok {
			return 0, formatErr("missing %s", key)
		}
		if v < 0 {
			return 0, formatErr("%s = %d is negative", key, v)
		}
		if elems, ok = mul(elems, v); !ok {
			return 0, formatErr("data size overflows")
		}
	}

	pcount, gcount := int64(0), int64(1)
	if v, ok := sizes["PCOUNT"]; ok {
		pcount = v
	}
	if v, ok := sizes["GCOUNT"]; ok {
		gcount = v
	}
	if pcount < 0 {
		return 0, formatErr("PCOUNT = %d is negative", pcount)
	}
	if gcount < 1 {
		return 0, formatErr("GCOUNT = %d must be at least 1", gcount)
	}

	if elems > math.MaxInt64-pcount {
		return 0, formatErr("data size overflows")
	}
	size, ok := mul(width, elems+pcount)
	if ok {
		size, ok = mul(size, gcount)
	}
	if !ok {
		return 0, formatErr("data size overflows")
	}
	return size, nil
}

// mul returns a*b for non-negative a and b, and false on overflow.
func mul(a, b int64) (int64, bool) {
	if a != 0 && b > math.MaxInt64/a {
		return 0, false
	}
	return a * b, true
}

// isPadding reports whether b holds only trailing zero or blank bytes.
func isPadding(b []byte) bool {
	for _, c := range b {
		if c != 0 && c != ' ' {
			return false
		}
	}
	return true
}
