package cache

// SliceBacking serves a byte slice as a BackingStore. Bytes past the end of
// the slice read as zero.
type SliceBacking struct {
	data []byte
}

// NewSliceBacking creates a SliceBacking over data. The slice is not copied.
func NewSliceBacking(data []byte) *SliceBacking {
	return &SliceBacking{data: data}
}

// Read fetches size bytes at addr.
func (s *SliceBacking) Read(addr uint64, size int) []byte {
	out := make([]byte, size)
	if addr < uint64(len(s.data)) {
		copy(out, s.data[addr:])
	}
	return out
}

// Replace swaps the backing bytes.
func (s *SliceBacking) Replace(data []byte) {
	s.data = data
}
