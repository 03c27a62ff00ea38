package buffer

// BitReader reads MSB-first bits from a byte slice.
type BitReader struct {
	data    []byte
	bytePos int
	bitPos  uint8
}

func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

func (r *BitReader) Length() int {
	return len(r.data)
}

func (r *BitReader) BytesLeft() int {
	if r.bytePos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.bytePos
}

// SetBytePosition moves the reader to a byte offset, clearing any partial byte.
func (r *BitReader) SetBytePosition(pos int) bool {
	if pos < 0 || pos > len(r.data) {
		return false
	}
	r.bytePos = pos
	r.bitPos = 0
	return true
}

func (r *BitReader) AlignByte() {
	if r.bitPos != 0 {
		r.bitPos = 0
		r.bytePos++
	}
}

func (r *BitReader) ReadBit() (uint64, bool) {
	if r.bytePos >= len(r.data) {
		return 0, false
	}
	b := r.data[r.bytePos]
	bit := (b >> (7 - r.bitPos)) & 0x01
	r.bitPos++
	if r.bitPos == 8 {
		r.bitPos = 0
		r.bytePos++
	}
	return uint64(bit), true
}

func (r *BitReader) ReadBits(n int) (uint64, bool) {
	if n <= 0 {
		return 0, true
	}
	if n > 64 {
		return 0, false
	}
	var v uint64
	for range n {
		bit, ok := r.ReadBit()
		if !ok {
			return 0, false
		}
		v = (v << 1) | bit
	}
	return v, true
}

func (r *BitReader) SkipBits(n int) bool {
	if r.bitPos == 0 && n%8 == 0 {
		return r.SkipBytes(n / 8)
	}
	_, ok := r.ReadBits(n)
	return ok
}

func (r *BitReader) SkipBytes(n int) bool {
	if r.bitPos != 0 {
		return r.SkipBits(n * 8)
	}
	if n < 0 || r.bytePos+n > len(r.data) {
		return false
	}
	r.bytePos += n
	return true
}

func (r *BitReader) ReadByteValue() (byte, bool) {
	if r.bitPos == 0 {
		if r.bytePos >= len(r.data) {
			return 0, false
		}
		b := r.data[r.bytePos]
		r.bytePos++
		return b, true
	}
	v, ok := r.ReadBits(8)
	return byte(v), ok
}

func (r *BitReader) ReadUInt16() (uint16, bool) {
	v, ok := r.ReadBits(16)
	return uint16(v), ok
}

func (r *BitReader) ReadUInt32() (uint32, bool) {
	v, ok := r.ReadBits(32)
	return uint32(v), ok
}

// ReadBytes returns the next n bytes. The reader must be byte aligned.
func (r *BitReader) ReadBytes(n int) ([]byte, bool) {
	if r.bitPos != 0 || n < 0 || r.bytePos+n > len(r.data) {
		return nil, false
	}
	out := r.data[r.bytePos : r.bytePos+n]
	r.bytePos += n
	return out, true
}
