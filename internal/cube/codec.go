package cube

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// ErrFormat is returned when a serialized cube cannot be decoded.
var ErrFormat = errors.New("invalid cube encoding")

// Wire format, little endian:
//
//	magic "XCUB" | version u16 | layout u8 | precision u8
//	asof (i64 sec, i32 nsec) | nIDs u32 | nIDs × (len u32, bytes)
//	nDates u32 | nDates × (i64 sec, i32 nsec) | samples u32 | depth u32
//	regular: t0 [nIDs*depth] | data [nIDs*nDates*samples*depth]
//	jagged:  nIDs × (dateLen u32, depth u32, samples u32, cells [depth*(1+dateLen*samples)])
var magic = [4]byte{'X', 'C', 'U', 'B'}

const (
	formatVersion uint16 = 1

	layoutCodeRegular uint8 = 1
	layoutCodeJagged  uint8 = 2

	maxIDLen = 1 << 16
	maxCells = 1 << 34
)

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) put(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *encoder) str(s string) {
	e.put(uint32(len(s)))
	if e.err == nil {
		_, e.err = e.w.WriteString(s)
	}
}

func (e *encoder) time(t time.Time) {
	e.put(t.Unix())
	e.put(int32(t.Nanosecond()))
}

func (e *encoder) f64(v float64) {
	if e.err != nil {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	_, e.err = e.w.Write(buf[:])
}

// Encode writes c to w. Concrete layouts round-trip bit-identically; any
// other Cube is materialized as regular double precision.
func Encode(w io.Writer, c Cube) error {
	layout, precision := Describe(c)
	e := &encoder{w: bufio.NewWriter(w)}

	e.put(magic)
	e.put(formatVersion)
	if layout == LayoutJagged {
		e.put(layoutCodeJagged)
	} else {
		e.put(layoutCodeRegular)
	}
	if precision == PrecisionSingle {
		e.put(uint8(4))
	} else {
		e.put(uint8(8))
	}
	e.time(c.Asof())
	ids := c.IDsAndIndexes()
	e.put(uint32(ids.Len()))
	for i := 0; i < ids.Len(); i++ {
		e.str(ids.ID(i))
	}
	e.put(uint32(c.NumDates()))
	for _, d := range c.Dates() {
		e.time(d)
	}
	e.put(uint32(c.Samples()))
	e.put(uint32(c.Depth()))

	switch cc := c.(type) {
	case *Regular[float64]:
		e.put(cc.t0)
		e.put(cc.data)
	case *Regular[float32]:
		e.put(cc.t0)
		e.put(cc.data)
	case *Jagged[float64]:
		encodeBlocks(e, cc)
	case *Jagged[float32]:
		encodeBlocks(e, cc)
	default:
		encodeGeneric(e, c)
	}
	if e.err != nil {
		return fmt.Errorf("encode cube: %w", e.err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("encode cube: %w", err)
	}
	return nil
}

func encodeBlocks[T Real](e *encoder, c *Jagged[T]) {
	for _, b := range c.blocks {
		e.put(uint32(b.dateLen))
		e.put(uint32(b.depth))
		e.put(uint32(c.samples))
		e.put(c.arena[b.offset : b.offset+b.size(c.samples)])
	}
}

// encodeGeneric writes any cube in regular-double cell order.
func encodeGeneric(e *encoder, c Cube) {
	n, depth := c.NumIDs(), c.Depth()
	for i := 0; i < n; i++ {
		for d := 0; d < depth; d++ {
			e.f64(c.GetT0(i, d))
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < c.NumDates(); j++ {
			for k := 0; k < c.Samples(); k++ {
				for d := 0; d < depth; d++ {
					e.f64(c.Get(i, j, k, d))
				}
			}
		}
	}
}

// Marshal encodes c into a byte slice.
func Marshal(c Cube) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type decoder struct {
	r   *bufio.Reader
	err error
}

func (d *decoder) get(v any) {
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, v)
	}
}

func (d *decoder) u32() int {
	var v uint32
	d.get(&v)
	return int(v)
}

func (d *decoder) str() string {
	n := d.u32()
	if d.err != nil {
		return ""
	}
	if n > maxIDLen {
		d.err = fmt.Errorf("%w: id length %d", ErrFormat, n)
		return ""
	}
	buf := make([]byte, n)
	_, d.err = io.ReadFull(d.r, buf)
	return string(buf)
}

func (d *decoder) time() time.Time {
	var sec int64
	var nsec int32
	d.get(&sec)
	d.get(&nsec)
	return time.Unix(sec, int64(nsec)).UTC()
}

// Decode reads a cube written by Encode.
func Decode(r io.Reader) (Cube, error) {
	d := &decoder{r: bufio.NewReader(r)}

	var m [4]byte
	var version uint16
	var layoutCode, width uint8
	d.get(&m)
	d.get(&version)
	d.get(&layoutCode)
	d.get(&width)
	if d.err != nil {
		return nil, fmt.Errorf("decode cube header: %w", d.err)
	}
	if m != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, m[:])
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, version)
	}
	if width != 4 && width != 8 {
		return nil, fmt.Errorf("%w: element width %d", ErrFormat, width)
	}

	asof := d.time()
	nIDs := d.u32()
	names := make([]string, 0, min(nIDs, 1<<16))
	for i := 0; i < nIDs && d.err == nil; i++ {
		names = append(names, d.str())
	}
	nDates := d.u32()
	dates := make([]time.Time, 0, min(nDates, 1<<16))
	for i := 0; i < nDates && d.err == nil; i++ {
		dates = append(dates, d.time())
	}
	samples := d.u32()
	depth := d.u32()
	if d.err != nil {
		return nil, fmt.Errorf("decode cube axes: %w", d.err)
	}

	ids, err := NewIDIndex(names)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	ax, err := newAxes(asof, ids, dates, samples)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	var c Cube
	switch {
	case layoutCode == layoutCodeRegular && width == 8:
		c, err = decodeRegular[float64](d, ax, depth)
	case layoutCode == layoutCodeRegular && width == 4:
		c, err = decodeRegular[float32](d, ax, depth)
	case layoutCode == layoutCodeJagged && width == 8:
		c, err = decodeJagged[float64](d, ax)
	case layoutCode == layoutCodeJagged && width == 4:
		c, err = decodeJagged[float32](d, ax)
	default:
		return nil, fmt.Errorf("%w: layout code %d", ErrFormat, layoutCode)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func decodeRegular[T Real](d *decoder, ax axes, depth int) (*Regular[T], error) {
	if depth <= 0 {
		return nil, fmt.Errorf("%w: depth %d", ErrFormat, depth)
	}
	n := ax.ids.Len()
	cells, ok := cellCount(n, len(ax.dates), ax.samples, depth)
	if !ok {
		return nil, fmt.Errorf("%w: %d ids x %d dates x %d samples x depth %d exceeds %d cells", ErrFormat, n, len(ax.dates), ax.samples, depth, maxCells)
	}
	if _, ok := cellCount(n, depth); !ok {
		return nil, fmt.Errorf("%w: %d ids x depth %d exceeds %d t0 cells", ErrFormat, n, depth, maxCells)
	}
	c := &Regular[T]{
		axes:  ax,
		depth: depth,
		t0:    make([]T, n*depth),
		data:  make([]T, cells),
	}
	d.get(c.t0)
	d.get(c.data)
	if d.err != nil {
		return nil, fmt.Errorf("decode regular cube: %w", d.err)
	}
	return c, nil
}

func decodeJagged[T Real](d *decoder, ax axes) (*Jagged[T], error) {
	n := ax.ids.Len()
	c := &Jagged[T]{axes: ax, blocks: make([]block, n)}
	var chunks [][]T
	total := 0
	for i := 0; i < n; i++ {
		dateLen, depth, samples := d.u32(), d.u32(), d.u32()
		if d.err != nil {
			return nil, fmt.Errorf("decode jagged block %d: %w", i, d.err)
		}
		if samples != ax.samples || depth <= 0 || dateLen > len(ax.dates) {
			return nil, fmt.Errorf("%w: block %d shape (%d, %d, %d)", ErrFormat, i, dateLen, depth, samples)
		}
		b := block{offset: total, dateLen: dateLen, depth: depth}
		path, ok := cellCount(dateLen, samples)
		if ok {
			_, ok = cellCount(depth, path+1)
		}
		if !ok {
			return nil, fmt.Errorf("%w: block %d shape (%d, %d, %d) exceeds %d cells", ErrFormat, i, dateLen, depth, samples, maxCells)
		}
		size := b.size(samples)
		if total+size > maxCells {
			return nil, fmt.Errorf("%w: %d cells", ErrFormat, total+size)
		}
		chunk := make([]T, size)
		d.get(chunk)
		if d.err != nil {
			return nil, fmt.Errorf("decode jagged block %d: %w", i, d.err)
		}
		c.blocks[i] = b
		chunks = append(chunks, chunk)
		total += size
		if depth > c.maxDepth {
			c.maxDepth = depth
		}
	}
	c.arena = make([]T, 0, total)
	for _, chunk := range chunks {
		c.arena = append(c.arena, chunk...)
	}
	return c, nil
}

// cellCount multiplies factors, reporting false for a negative factor or a
// product above maxCells.
func cellCount(factors ...int) (int, bool) {
	n := 1
	for _, f := range factors {
		if f < 0 {
			return 0, false
		}
		if f != 0 && n > maxCells/f {
			return 0, false
		}
		n *= f
	}
	return n, true
}

// Unmarshal decodes a cube from b.
func Unmarshal(b []byte) (Cube, error) {
	return Decode(bytes.NewReader(b))
}
