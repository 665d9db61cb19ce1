package fits

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
)

// HDU is a header/data unit.
type HDU interface {
	// Header returns the HDU's header. Changes to it are written on encode.
	Header() *Header
	// Name returns the EXTNAME of an extension, or "PRIMARY".
	Name() string

	encode() (fitsio.HDU, error)
}

// PrimaryHDU is the first HDU of every FITS file. Only its header is kept.
type PrimaryHDU struct {
	header *Header
}

// NewPrimaryHDU returns a primary HDU without data.
func NewPrimaryHDU() *PrimaryHDU {
	h := NewHeader()
	h.Set("SIMPLE", true, "conforms to FITS standard")
	h.Set("BITPIX", 8, "array data type")
	h.Set("NAXIS", 0, "number of array dimensions")
	h.Set("EXTEND", true, "")
	return &PrimaryHDU{header: h}
}

func (p *PrimaryHDU) Header() *Header { return p.header }
func (p *PrimaryHDU) Name() string    { return "PRIMARY" }

func (p *PrimaryHDU) encode() (fitsio.HDU, error) {
	return fitsio.NewPrimaryHDU(fitsio.NewHeader(exportCards(p.header), fitsio.IMAGE_HDU, 8, nil))
}

func extName(h *Header) string {
	name, err := h.String("EXTNAME")
	if err != nil {
		return ""
	}
	return name
}

// Column describes one binary table column. Data holds one scalar per row.
type Column struct {
	Name   string
	Format string // TFORM, e.g. "1E" or "D"
	Unit   string
	Data   []float64
}

// column is a table column as stored: one typed cell per row, matching
// the Go type fitsio reads and writes for its TFORM.
type column struct {
	name   string
	format string
	unit   string
	code   byte
	repeat int
	cells  []any
}

var typeWidth = map[byte]int{
	'L': 1, 'B': 1, 'I': 2, 'J': 4, 'K': 8, 'E': 4, 'D': 8, 'A': 1,
}

var cellTypes = map[byte]reflect.Type{
	'L': reflect.TypeOf(false),
	'B': reflect.TypeOf(uint8(0)),
	'I': reflect.TypeOf(int16(0)),
	'J': reflect.TypeOf(int32(0)),
	'K': reflect.TypeOf(int64(0)),
	'E': reflect.TypeOf(float32(0)),
	'D': reflect.TypeOf(float64(0)),
	'A': reflect.TypeOf(""),
}

// cellType is the Go type of one cell: a scalar, a string for character
// columns, or a slice for vector columns.
func cellType(code byte, repeat int) reflect.Type {
	t := cellTypes[code]
	if repeat > 1 && code != 'A' {
		return reflect.SliceOf(t)
	}
	return t
}

// parseTForm splits a TFORM value such as "1E" into repeat count and type.
func parseTForm(tform string) (int, byte, error) {
	tform = strings.TrimSpace(tform)
	i := 0
	for i < len(tform) && tform[i] >= '0' && tform[i] <= '9' {
		i++
	}
	if i == len(tform) {
		return 0, 0, formatErr("invalid TFORM %q", tform)
	}
	repeat := 1
	if i > 0 {
		n, err := strconv.Atoi(tform[:i])
		if err != nil || n < 0 {
			return 0, 0, formatErr("invalid TFORM %q", tform)
		}
		repeat = n
	}
	code := tform[i]
	if _, ok := typeWidth[code]; !ok {
		return 0, 0, formatErr("unsupported TFORM %q", tform)
	}
	return repeat, code, nil
}

// BinTable is a BINTABLE extension.
type BinTable struct {
	header *Header
	cols   []column
	rows   int
}

// NewBinTable builds a table from scalar columns. All columns must have the
// same length and a floating point format (E or D).
func NewBinTable(columns []Column) (*BinTable, error) {
	rows := -1
	t := &BinTable{}
	for _, c := range columns {
		if rows >= 0 && len(c.Data) != rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, len(c.Data), rows)
		}
		rows = len(c.Data)

		repeat, code, err := parseTForm(c.Format)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		if repeat != 1 || (code != 'E' && code != 'D') {
			return nil, fmt.Errorf("column %q: only scalar E and D columns can be written, got %q", c.Name, c.Format)
		}

		col := column{name: c.Name, format: c.Format, unit: c.Unit, code: code, repeat: 1}
		col.cells = make([]any, len(c.Data))
		for i, v := range c.Data {
			if code == 'E' {
				col.cells[i] = float32(v)
			} else {
				col.cells[i] = v
			}
		}
		t.cols = append(t.cols, col)
	}
	t.rows = max(rows, 0)
	t.header = NewHeader()
	t.setLayout()
	return t, nil
}

// setLayout writes the structural cards describing t's columns.
func (t *BinTable) setLayout() {
	rowSize := 0
	for _, c := range t.cols {
		rowSize += c.repeat * typeWidth[c.code]
	}

	h := t.header
	h.Set("XTENSION", "BINTABLE", "binary table extension")
	h.Set("BITPIX", 8, "array data type")
	h.Set("NAXIS", 2, "number of array dimensions")
	h.Set("NAXIS1", rowSize, "length of dimension 1")
	h.Set("NAXIS2", t.rows, "length of dimension 2")
	h.Set("PCOUNT", 0, "number of group parameters")
	h.Set("GCOUNT", 1, "number of groups")
	h.Set("TFIELDS", len(t.cols), "number of table fields")
	for i, c := range t.cols {
		n := strconv.Itoa(i + 1)
		h.Set("TTYPE"+n, c.name, "")
		h.Set("TFORM"+n, c.format, "")
		if c.unit != "" {
			h.Set("TUNIT"+n, c.unit, "")
		}
	}
}

// decodeTable reads every row of a fitsio table into memory.
func decodeTable(src *fitsio.Table) (*BinTable, error) {
	t := &BinTable{header: NewHeader()}
	for _, fc := range src.Cols() {
		repeat, code, err := parseTForm(fc.Format)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", fc.Name, err)
		}
		t.cols = append(t.cols, column{name: fc.Name, format: fc.Format, unit: fc.Unit, code: code, repeat: repeat})
	}

	if n := src.NumRows(); n > 0 {
		rows, err := src.Read(0, n)
		if err != nil {
			return nil, formatErr("read rows: %v", err)
		}
		defer rows.Close()

		ptrs := make([]reflect.Value, len(t.cols))
		args := make([]any, len(t.cols))
		for rows.Next() {
			for i, c := range t.cols {
				ptrs[i] = reflect.New(cellType(c.code, c.repeat))
				args[i] = ptrs[i].Interface()
			}
			if err := rows.Scan(args...); err != nil {
				return nil, formatErr("row %d: %v", t.rows, err)
			}
			for i := range t.cols {
				t.cols[i].cells = append(t.cols[i].cells, ptrs[i].Elem().Interface())
			}
			t.rows++
		}
		if err := rows.Err(); err != nil {
			return nil, formatErr("read rows: %v", err)
		}
	}

	t.setLayout()
	importCards(t.header, src.Header())
	return t, nil
}

func (t *BinTable) encode() (fitsio.HDU, error) {
	cols := make([]fitsio.Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = fitsio.Column{Name: c.name, Format: c.format, Unit: c.unit}
	}
	out, err := fitsio.NewTable(t.Name(), cols, fitsio.BINARY_TBL)
	if err != nil {
		return nil, err
	}
	if err := out.Header().Append(exportCards(t.header)...); err != nil {
		out.Close()
		return nil, err
	}

	args := make([]any, len(t.cols))
	for r := 0; r < t.rows; r++ {
		for i, c := range t.cols {
			p := reflect.New(reflect.TypeOf(c.cells[r]))
			p.Elem().Set(reflect.ValueOf(c.cells[r]))
			args[i] = p.Interface()
		}
		if err := out.Write(args...); err != nil {
			out.Close()
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
	}
	return out, nil
}

func (t *BinTable) Header() *Header { return t.header }
func (t *BinTable) Name() string    { return extName(t.header) }

// Rows returns the number of rows.
func (t *BinTable) Rows() int { return t.rows }

// ColumnNames returns the column names in order.
func (t *BinTable) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

func (t *BinTable) column(name string) (column, error) {
	for _, c := range t.cols {
		if strings.EqualFold(c.name, name) {
			return c, nil
		}
	}
	return column{}, &LookupError{Kind: "column", Name: name}
}

// ColumnUnit returns the TUNIT of a column.
func (t *BinTable) ColumnUnit(name string) (string, error) {
	c, err := t.column(name)
	if err != nil {
		return "", err
	}
	return c.unit, nil
}

// Column returns a scalar numeric column as float64.
func (t *BinTable) Column(name string) ([]float64, error) {
	c, err := t.column(name)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(c.cells))
	for r, v := range c.cells {
		switch x := v.(type) {
		case uint8:
			out[r] = float64(x)
		case int16:
			out[r] = float64(x)
		case int32:
			out[r] = float64(x)
		case int64:
			out[r] = float64(x)
		case float32:
			out[r] = float64(x)
		case float64:
			out[r] = x
		default:
			return nil, fmt.Errorf("column %q is not a numeric scalar column", name)
		}
	}
	return out, nil
}
