package k_shortest

// minHeap keeps the element for which less is true on top
type minHeap[T any] struct {
	items []T
	less  func(a, b T) bool
}

func newMinHeap[T any](less func(a, b T) bool) *minHeap[T] {
	return &minHeap[T]{less: less}
}

func (h *minHeap[T]) Len() int {
	return len(h.items)
}

// adjust minHeap from up to down
func (h *minHeap[T]) shiftDown(start, end int) {
	dad := start
	son := dad*2 + 1

	for son <= end { // only compare when son is in range
		if son+1 <= end && h.less(h.items[son+1], h.items[son]) { // choose the smaller son
			son++
		}
		if !h.less(h.items[son], h.items[dad]) {
			break // adjustment is finished
		}
		h.items[dad], h.items[son] = h.items[son], h.items[dad]
		dad = son
		son = dad*2 + 1
	}
}

// adjust minHeap from down to up
func (h *minHeap[T]) shiftUp(start int) {
	son := start
	for son > 0 {
		dad := (son - 1) / 2
		if !h.less(h.items[son], h.items[dad]) {
			break // adjustment is finished
		}
		h.items[dad], h.items[son] = h.items[son], h.items[dad]
		son = dad
	}
}

func (h *minHeap[T]) insert(item T) {
	h.items = append(h.items, item)
	h.shiftUp(len(h.items) - 1)
}

// pop removes and returns the minimum element
func (h *minHeap[T]) pop() T {
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last] // move the last element to the first
	h.items = h.items[:last]
	h.shiftDown(0, last-1)
	return top
}

// contain reports whether any element satisfies match
func (h *minHeap[T]) contain(match func(T) bool) bool {
	for _, item := range h.items {
		if match(item) {
			return true
		}
	}
	return false
}
