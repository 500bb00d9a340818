package movedetect

import (
	"container/list"

	"github.com/0xmhha/pathwatch/pkg/pathid"
)

// pool holds one side (removes or creates) of the correlator's pending
// events, indexed three ways per spec §4.3: by_inode (one slot per
// identity), by_size (bucketed list), and no_size (fallback list for
// entries missing both signals). insertionOrder threads every live entry
// through a single list so capacity eviction and timeout sweeps can find
// the oldest entry in O(1)/O(k) without scanning every bucket.
type pool struct {
	byInode map[pathid.ID]*list.Element
	bySize  map[int64][]*list.Element
	noSize  []*list.Element

	insertionOrder *list.List // front = oldest
	maxSize        int
}

func newPool(maxSize int) *pool {
	return &pool{
		byInode:        make(map[pathid.ID]*list.Element),
		bySize:         make(map[int64][]*list.Element),
		insertionOrder: list.New(),
		maxSize:        maxSize,
	}
}

func (p *pool) size() int {
	return p.insertionOrder.Len()
}

// insert adds e to the pool's indices, evicting the single oldest entry
// (LRU by insertion time) if the pool is already at capacity. Returns the
// evicted entry, if any, so the caller can log/emit a final event for it.
func (p *pool) insert(e *pendingEvent) *pendingEvent {
	var evicted *pendingEvent
	if p.maxSize > 0 && p.size() >= p.maxSize {
		evicted = p.evictOldest()
	}

	el := p.insertionOrder.PushBack(e)

	if e.id != nil {
		p.byInode[*e.id] = el
	} else if e.size != nil {
		p.bySize[*e.size] = append(p.bySize[*e.size], el)
	} else {
		p.noSize = append(p.noSize, el)
	}

	return evicted
}

// remove detaches el from every index it may appear in.
func (p *pool) remove(el *list.Element) *pendingEvent {
	e := el.Value.(*pendingEvent)
	p.insertionOrder.Remove(el)

	if e.id != nil {
		delete(p.byInode, *e.id)
	} else if e.size != nil {
		p.bySize[*e.size] = removeElement(p.bySize[*e.size], el)
		if len(p.bySize[*e.size]) == 0 {
			delete(p.bySize, *e.size)
		}
	} else {
		p.noSize = removeElement(p.noSize, el)
	}
	return e
}

func (p *pool) evictOldest() *pendingEvent {
	front := p.insertionOrder.Front()
	if front == nil {
		return nil
	}
	return p.remove(front)
}

// candidates returns every live entry that could pair with e: first an
// exact inode match (handled by the caller before calling this), then
// entries sharing e's size, then the no_size fallback bucket if neither
// side carries a size.
func (p *pool) candidates(e *pendingEvent) []*list.Element {
	if e.size != nil {
		if els, ok := p.bySize[*e.size]; ok {
			return els
		}
		return nil
	}
	return p.noSize
}

func removeElement(els []*list.Element, target *list.Element) []*list.Element {
	out := els[:0]
	for _, el := range els {
		if el != target {
			out = append(out, el)
		}
	}
	return out
}
