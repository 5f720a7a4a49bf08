// Package heapq implements an indexed binary min-heap: a priority queue whose
// elements can be looked up and re-prioritized by a stable handle instead of
// only ever popped from the top. The line-management package uses one
// instance per tier to track GC victims by valid-page-count, and another to
// track pSLC lines awaiting migration by write order.
package heapq

/// Handle identifies an element independent of its current heap position.
type Handle int

const noSlot = -1

type entry struct {
	handle Handle
	prio   int64
	value  interface{}
}

/// Heap is an indexed binary min-heap keyed on an int64 priority: Pop always
/// returns the element with the smallest priority. Unlike container/heap, a
/// live element can be located and reprioritized via its Handle in O(log n)
/// without a linear scan.
type Heap struct {
	entries []entry
	slot    map[Handle]int /// handle -> index into entries, or absent if not present
	next    Handle
}

/// New returns an empty heap.
func New() *Heap {
	return &Heap{slot: make(map[Handle]int)}
}

/// Len returns the number of elements currently in the heap.
func (h *Heap) Len() int {
	return len(h.entries)
}

/// Insert adds value at the given priority and returns a handle for later
/// Remove/ChangePriority calls.
func (h *Heap) Insert(prio int64, value interface{}) Handle {
	hd := h.next
	h.next++
	idx := len(h.entries)
	h.entries = append(h.entries, entry{handle: hd, prio: prio, value: value})
	h.slot[hd] = idx
	h.siftUp(idx)
	return hd
}

/// Peek returns the minimum-priority element without removing it. ok is false
/// if the heap is empty.
func (h *Heap) Peek() (value interface{}, prio int64, handle Handle, ok bool) {
	if len(h.entries) == 0 {
		return nil, 0, 0, false
	}
	e := h.entries[0]
	return e.value, e.prio, e.handle, true
}

/// Pop removes and returns the minimum-priority element.
func (h *Heap) Pop() (value interface{}, prio int64, handle Handle, ok bool) {
	if len(h.entries) == 0 {
		return nil, 0, 0, false
	}
	e := h.entries[0]
	h.removeAt(0)
	return e.value, e.prio, e.handle, true
}

/// Remove deletes the element identified by handle, wherever it sits in the
/// heap. Returns false if handle is not present (already popped/removed).
func (h *Heap) Remove(handle Handle) bool {
	idx, ok := h.slot[handle]
	if !ok {
		return false
	}
	h.removeAt(idx)
	return true
}

/// ChangePriority re-keys the element identified by handle and restores heap
/// order. Returns false if handle is not present.
func (h *Heap) ChangePriority(handle Handle, newPrio int64) bool {
	idx, ok := h.slot[handle]
	if !ok {
		return false
	}
	old := h.entries[idx].prio
	h.entries[idx].prio = newPrio
	if newPrio < old {
		h.siftUp(idx)
	} else if newPrio > old {
		h.siftDown(idx)
	}
	return true
}

/// Contains reports whether handle currently names a live element.
func (h *Heap) Contains(handle Handle) bool {
	_, ok := h.slot[handle]
	return ok
}

func (h *Heap) removeAt(idx int) {
	last := len(h.entries) - 1
	delete(h.slot, h.entries[idx].handle)
	if idx != last {
		h.entries[idx] = h.entries[last]
		h.slot[h.entries[idx].handle] = idx
	}
	h.entries = h.entries[:last]
	if idx < len(h.entries) {
		h.siftDown(idx)
		h.siftUp(idx)
	}
}

func (h *Heap) siftUp(idx int) {
	for idx > 0 {
		parent := (idx - 1) / 2
		if h.entries[idx].prio >= h.entries[parent].prio {
			break
		}
		h.swap(idx, parent)
		idx = parent
	}
}

func (h *Heap) siftDown(idx int) {
	n := len(h.entries)
	for {
		left, right := 2*idx+1, 2*idx+2
		smallest := idx
		if left < n && h.entries[left].prio < h.entries[smallest].prio {
			smallest = left
		}
		if right < n && h.entries[right].prio < h.entries[smallest].prio {
			smallest = right
		}
		if smallest == idx {
			return
		}
		h.swap(idx, smallest)
		idx = smallest
	}
}

func (h *Heap) swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.slot[h.entries[i].handle] = i
	h.slot[h.entries[j].handle] = j
}
