package forecast

// Ring is a fixed-capacity FIFO of normalized values.
// Push drops the oldest value once full; At(0) is always the oldest.
type Ring struct {
	buf   []float64
	start int
	size  int
}

// NewRing creates an empty ring with the given capacity
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]float64, capacity)}
}

// Push appends v, evicting the oldest value when full
func (r *Ring) Push(v float64) {
	if len(r.buf) == 0 {
		return
	}
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of stored values
func (r *Ring) Len() int {
	return r.size
}

// Cap returns the capacity
func (r *Ring) Cap() int {
	return len(r.buf)
}

// At returns the i-th oldest value
func (r *Ring) At(i int) float64 {
	return r.buf[(r.start+i)%len(r.buf)]
}

// Values returns a chronological copy
func (r *Ring) Values() []float64 {
	out := make([]float64, r.size)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}
