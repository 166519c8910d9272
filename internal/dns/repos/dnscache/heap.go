package dnscache

// lruHeap orders owner partitions by last-access time, oldest first. It
// backs eviction: when the cache overflows its desired size, whole owner
// partitions are dropped starting from the least recently read.
type lruHeap []*ownerEntry

func (h lruHeap) Len() int { return len(h) }
func (h lruHeap) Less(i, j int) bool {
	return h[i].lastAccess.Before(h[j].lastAccess)
}
func (h lruHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].lruIndex = i
	h[j].lruIndex = j
}
func (h *lruHeap) Push(x any) {
	e := x.(*ownerEntry)
	e.lruIndex = len(*h)
	*h = append(*h, e)
}
func (h *lruHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.lruIndex = -1
	*h = old[:n-1]
	return e
}

// expiryHeap orders owner partitions by their soonest-to-expire rdata entry,
// earliest first. It backs the eager removal of expired records.
type expiryHeap []*ownerEntry

func (h expiryHeap) Len() int { return len(h) }
func (h expiryHeap) Less(i, j int) bool {
	return h[i].nextExpiry.Before(h[j].nextExpiry)
}
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].expiryIndex = i
	h[j].expiryIndex = j
}
func (h *expiryHeap) Push(x any) {
	e := x.(*ownerEntry)
	e.expiryIndex = len(*h)
	*h = append(*h, e)
}
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.expiryIndex = -1
	*h = old[:n-1]
	return e
}
