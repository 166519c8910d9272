// Package dnscache implements the resolver's shared, TTL-bounded response
// cache: an owner-name-partitioned store with two priority queues (one by
// last access, one by next expiry) that together drive eager expiry removal
// and LRU-ordered eviction when the cache overflows its desired size.
package dnscache

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"github.com/hawknest/rrdns/internal/dns/common/clock"
	"github.com/hawknest/rrdns/internal/dns/domain"
)

// ErrMultipleKeys describes a batch of records with different owner names.
// InsertMany does not return it: it accepts records of any mix of owners.
var ErrMultipleKeys = errors.New("multiple records with different owner names provided")

// cachedRecord is one (rdata, absoluteExpiry) tuple for a given owner/rtype.
type cachedRecord struct {
	rr     domain.ResourceRecord
	expiry time.Time
}

// ownerEntry is one partition of the cache: every cached record set for a
// single owner name, plus the bookkeeping the two priority queues need.
type ownerEntry struct {
	name       string
	records    map[domain.RRType][]cachedRecord
	size       int // total rdata entries across all types for this owner
	lastAccess time.Time
	nextExpiry time.Time

	lruIndex    int
	expiryIndex int
}

// Cache is the process-wide response cache. A single mutex guards all state;
// every public method holds it for its whole duration, per the coarse
// locking model the resolver core relies on — most resolver work (wire I/O,
// zone lookups) happens outside the cache's critical section.
type Cache struct {
	mu    sync.Mutex
	clock clock.Clock

	owners map[string]*ownerEntry
	lru    lruHeap
	expiry expiryHeap

	currentSize int
	desiredSize int
}

// New returns an empty Cache with the given desired size budget (in total
// rdata entries across all owners). clk lets tests control "now" instead of
// depending on wall-clock time.
func New(desiredSize int, clk clock.Clock) *Cache {
	return &Cache{
		clock:       clk,
		owners:      make(map[string]*ownerEntry),
		lru:         lruHeap{},
		expiry:      expiryHeap{},
		desiredSize: desiredSize,
	}
}

// Get returns cached records for (name, qtype) whose remaining TTL is > 0 at
// the current instant, with their TTL rewritten to that residual value.
// qtype = domain.RRTypeANY returns every type cached for the owner.
func (c *Cache) Get(name string, qtype domain.RRType) ([]domain.ResourceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	owner, ok := c.owners[name]
	if !ok {
		return nil, false
	}

	now := c.clock.Now()
	var out []domain.ResourceRecord
	for rtype, entries := range owner.records {
		if qtype != domain.RRTypeANY && qtype != rtype {
			continue
		}
		for _, e := range entries {
			remaining := e.expiry.Sub(now)
			if remaining <= 0 {
				continue
			}
			rr, err := domain.NewCachedResourceRecord(e.rr.Name, e.rr.Type, e.rr.Class, uint32(remaining.Seconds()), e.rr.Data, e.rr.Text, now)
			if err != nil {
				continue
			}
			out = append(out, rr)
		}
	}
	if len(out) == 0 {
		return nil, false
	}

	owner.lastAccess = now
	heap.Fix(&c.lru, owner.lruIndex)
	return out, true
}

// Insert stores rr, unless rr's TTL is zero. It acquires the lock for the
// duration of a single record insertion; InsertMany is preferred for batches
// since it amortizes the lock over the whole set.
func (c *Cache) Insert(rr domain.ResourceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(rr)
}

// InsertMany stores every record in rrs under a single critical section.
// Each record is inserted under its own owner name, so a batch may mix
// owners (e.g. a CNAME chain plus its terminal RRset). It always returns nil.
func (c *Cache) InsertMany(rrs []domain.ResourceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rr := range rrs {
		c.insertLocked(rr)
	}
	return nil
}

func (c *Cache) insertLocked(rr domain.ResourceRecord) {
	ttl := rr.TTL()
	if ttl == 0 {
		return
	}
	now := c.clock.Now()
	expiry := now.Add(time.Duration(ttl) * time.Second)

	owner, exists := c.owners[rr.Name]
	if !exists {
		owner = &ownerEntry{
			name:       rr.Name,
			records:    make(map[domain.RRType][]cachedRecord),
			lastAccess: now,
		}
		c.owners[rr.Name] = owner
		heap.Push(&c.lru, owner)
		heap.Push(&c.expiry, owner)
	}

	entries := owner.records[rr.Type]
	replaced := false
	for i, e := range entries {
		if sameRdata(e.rr, rr) {
			wasEarliest := owner.nextExpiry.Equal(e.expiry)
			entries[i].expiry = expiry
			entries[i].rr = rr
			c.currentSize--
			if wasEarliest {
				owner.nextExpiry = recomputeOwnerExpiry(owner, rr.Type)
			}
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, cachedRecord{rr: rr, expiry: expiry})
		owner.size++
	}
	owner.records[rr.Type] = entries
	c.currentSize++

	owner.lastAccess = now
	heap.Fix(&c.lru, owner.lruIndex)

	if owner.nextExpiry.IsZero() || expiry.Before(owner.nextExpiry) {
		owner.nextExpiry = expiry
	}
	heap.Fix(&c.expiry, owner.expiryIndex)
}

// sameRdata reports whether a and b carry the same rdata for cache
// deduplication purposes: same owner, type, class, and wire-encoded data.
func sameRdata(a, b domain.ResourceRecord) bool {
	return a.Name == b.Name && a.Type == b.Type && a.Class == b.Class && string(a.Data) == string(b.Data)
}

// recomputeOwnerExpiry scans every cached record for owner and returns the
// earliest expiry across all types. Called when the previous nextExpiry was
// the one just replaced and after expired records are removed, so it stays
// off the plain lookup path.
func recomputeOwnerExpiry(owner *ownerEntry, _ domain.RRType) time.Time {
	var earliest time.Time
	for _, entries := range owner.records {
		for _, e := range entries {
			if earliest.IsZero() || e.expiry.Before(earliest) {
				earliest = e.expiry
			}
		}
	}
	return earliest
}

// Prune atomically removes expired records, then evicts whole owner
// partitions in LRU order until size is within the desired budget. It
// returns whether any eviction occurred, the resulting size, and how many
// rdata entries were removed by expiry versus by eviction.
func (c *Cache) Prune() (didOverflow bool, size int, numExpired int, numEvicted int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	numExpired = c.removeExpiredLocked(now)

	for c.currentSize > c.desiredSize && c.lru.Len() > 0 {
		owner := heap.Pop(&c.lru).(*ownerEntry)
		heap.Remove(&c.expiry, owner.expiryIndex)
		delete(c.owners, owner.name)
		c.currentSize -= owner.size
		numEvicted += owner.size
		didOverflow = true
	}

	return didOverflow, c.currentSize, numExpired, numEvicted
}

// removeExpiredLocked pops owners from the expiry heap while their
// nextExpiry is due, stripping only the individual rdata entries that have
// actually expired from each. It must be called with c.mu held.
func (c *Cache) removeExpiredLocked(now time.Time) int {
	removed := 0
	for c.expiry.Len() > 0 {
		owner := c.expiry[0]
		if owner.nextExpiry.After(now) {
			break
		}
		heap.Pop(&c.expiry)

		for rtype, entries := range owner.records {
			kept := entries[:0]
			for _, e := range entries {
				if e.expiry.After(now) {
					kept = append(kept, e)
				} else {
					removed++
					c.currentSize--
					owner.size--
				}
			}
			if len(kept) == 0 {
				delete(owner.records, rtype)
			} else {
				owner.records[rtype] = kept
			}
		}

		if len(owner.records) == 0 {
			heap.Remove(&c.lru, owner.lruIndex)
			delete(c.owners, owner.name)
			continue
		}

		owner.nextExpiry = recomputeOwnerExpiry(owner, 0)
		heap.Push(&c.expiry, owner)
	}
	return removed
}

// Len returns the number of distinct owner partitions currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.owners)
}

// Size returns currentSize: the total number of rdata entries across all owners.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}
