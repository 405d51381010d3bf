package obstacle

// History is a fixed-capacity FIFO of obstacle samples.
type History struct {
	samples []bool
	next    int
	size    int
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{samples: make([]bool, capacity)}
}

// Push appends a sample, dropping the oldest once the history is full.
func (h *History) Push(sample bool) {
	h.samples[h.next] = sample
	h.next = (h.next + 1) % len(h.samples)
	if h.size < len(h.samples) {
		h.size++
	}
}

func (h *History) Len() int {
	return h.size
}

func (h *History) Cap() int {
	return len(h.samples)
}

func (h *History) Count() int {
	n := 0
	for _, s := range h.Samples() {
		if s {
			n++
		}
	}
	return n
}

// Samples returns the retained samples from oldest to newest.
func (h *History) Samples() []bool {
	out := make([]bool, 0, h.size)
	start := (h.next - h.size + len(h.samples)) % len(h.samples)
	for i := 0; i < h.size; i++ {
		out = append(out, h.samples[(start+i)%len(h.samples)])
	}
	return out
}

func (h *History) Confirmed(minConfirmations int) bool {
	return h.Count() >= minConfirmations
}

func (h *History) Reset() {
	h.next = 0
	h.size = 0
}
