package swf

import (
	"fmt"
	"math/bits"
)

type bitWriter struct {
	out   []byte
	cur   byte
	nbits uint
}

func (w *bitWriter) writeUB(v uint32, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		w.cur = w.cur<<1 | byte(v>>uint(i)&1)
		w.nbits++
		if w.nbits == 8 {
			w.out = append(w.out, w.cur)
			w.cur, w.nbits = 0, 0
		}
	}
}

func (w *bitWriter) writeSB(v int32, n uint) {
	w.writeUB(uint32(v)&(1<<n-1), n)
}

// flush pads the current byte with zero bits.
func (w *bitWriter) flush() []byte {
	if w.nbits > 0 {
		w.out = append(w.out, w.cur<<(8-w.nbits))
		w.cur, w.nbits = 0, 0
	}
	return w.out
}

type bitReader struct {
	data []byte
	pos  int // bit position
}

func (r *bitReader) readUB(n uint) (uint32, error) {
	if r.pos+int(n) > len(r.data)*8 {
		return 0, fmt.Errorf("bit field of %d bits overruns %d bytes", n, len(r.data))
	}
	var v uint32
	for i := uint(0); i < n; i++ {
		b := r.data[r.pos/8] >> (7 - uint(r.pos%8)) & 1
		v = v<<1 | uint32(b)
		r.pos++
	}
	return v, nil
}

func (r *bitReader) readSB(n uint) (int32, error) {
	v, err := r.readUB(n)
	if err != nil || n == 0 {
		return 0, err
	}
	shift := 32 - n
	return int32(v<<shift) >> shift, nil
}

// bytesConsumed returns the number of whole bytes touched so far.
func (r *bitReader) bytesConsumed() int {
	return (r.pos + 7) / 8
}

// signedBits returns the SB width needed to hold v.
func signedBits(v int32) uint {
	if v == 0 {
		return 0
	}
	if v < 0 {
		v = ^v
	}
	return uint(bits.Len32(uint32(v))) + 1
}

func encodeRect(r Rect) ([]byte, error) {
	n := signedBits(r.XMin)
	for _, v := range []int32{r.XMax, r.YMin, r.YMax} {
		if b := signedBits(v); b > n {
			n = b
		}
	}
	if n > 31 {
		return nil, fmt.Errorf("rect coordinate needs %d bits, max is 31", n)
	}
	w := &bitWriter{}
	w.writeUB(uint32(n), 5)
	w.writeSB(r.XMin, n)
	w.writeSB(r.XMax, n)
	w.writeSB(r.YMin, n)
	w.writeSB(r.YMax, n)
	return w.flush(), nil
}

func decodeRect(data []byte) (Rect, int, error) {
	r := &bitReader{data: data}
	n, err := r.readUB(5)
	if err != nil {
		return Rect{}, 0, err
	}
	var vals [4]int32
	for i := range vals {
		if vals[i], err = r.readSB(uint(n)); err != nil {
			return Rect{}, 0, err
		}
	}
	return Rect{XMin: vals[0], XMax: vals[1], YMin: vals[2], YMax: vals[3]}, r.bytesConsumed(), nil
}
