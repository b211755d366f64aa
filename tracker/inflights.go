package tracker

// Inflights is a sliding window of the highest log indices a leader has
// sent to one follower but not yet had acknowledged. It bounds how far a
// follower in StateReplicate can be pipelined ahead of its last ack.
type Inflights struct {
	start int
	count int

	size   int
	buffer []uint64
}

// NewInflights creates an empty sliding window that admits up to size
// in-flight indices at once.
func NewInflights(size int) *Inflights {
	return &Inflights{size: size}
}

// Clone returns an independent copy of in, used when a Progress is reset
// but wants to keep its window capacity.
func (in *Inflights) Clone() *Inflights {
	ins := *in
	ins.buffer = append([]uint64(nil), in.buffer...)
	return &ins
}

// Add records that index is now in flight. The caller must check Full
// first; Add panics on overflow to catch a logic error rather than
// silently dropping flow control.
func (in *Inflights) Add(index uint64) {
	if in.Full() {
		panic("tracker: cannot add to a full inflights window")
	}

	next := in.start + in.count
	size := in.size
	if next >= size {
		next -= size
	}

	if next >= len(in.buffer) {
		in.grow()
	}

	in.buffer[next] = index
	in.count++
}

// grow doubles the backing buffer, capped at size, the first time more
// slots are needed than have been allocated so far.
func (in *Inflights) grow() {
	newSize := len(in.buffer) * 2
	if newSize == 0 {
		newSize = 1
	} else if newSize > in.size {
		newSize = in.size
	}

	newBuffer := make([]uint64, newSize)
	copy(newBuffer, in.buffer)
	in.buffer = newBuffer
}

// FreeLE frees every inflight index less than or equal to toIndex.
func (in *Inflights) FreeLE(toIndex uint64) {
	if in.count == 0 || toIndex < in.buffer[in.start] {
		return
	}

	i, idx := 0, in.start
	for ; i < in.count; i++ {
		if toIndex < in.buffer[idx] {
			break
		}

		size := in.size
		idx++
		if idx >= size {
			idx -= size
		}
	}

	in.count -= i
	in.start = idx
	if in.count == 0 {
		in.start = 0
	}
}

// FreeFirstOne frees the oldest in-flight index, used when a probe needs
// to make room for exactly one more outstanding append.
func (in *Inflights) FreeFirstOne() {
	if in.count == 0 {
		return
	}
	in.FreeLE(in.buffer[in.start])
}

// Full reports whether no further indices may be added without first
// freeing some.
func (in *Inflights) Full() bool {
	return in.count == in.size
}

// Count returns the number of in-flight indices currently tracked.
func (in *Inflights) Count() int {
	return in.count
}

// Reset empties the window without changing its capacity.
func (in *Inflights) Reset() {
	in.count = 0
	in.start = 0
}
