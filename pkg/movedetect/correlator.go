package movedetect

import (
	"container/list"
	"hash/fnv"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/0xmhha/pathwatch/pkg/events"
	"github.com/0xmhha/pathwatch/pkg/logger"
	"github.com/0xmhha/pathwatch/pkg/pathid"
	"github.com/0xmhha/pathwatch/pkg/pathtype"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
)

// metaCacheSize bounds the recent-metadata cache referenced by spec §4.3
// ("a recent-metadata cache (path → last observed {size, inode, mtime})").
const metaCacheSize = 4096

// Correlator is the Move Correlator of spec §4.3. It owns its pending
// pools exclusively (spec §9: "no sharing... no locking is needed
// there"); the mutex below lets the cross-goroutine Stats() call used by
// the runtime handle take a consistent snapshot, and also guards the
// lookups handed to the Path-Type Inferrer, so the inferrer is never
// consulted while the mutex is held.
type Correlator struct {
	cfg    Config
	logger logger.Logger

	mu        sync.Mutex
	removes   *pool
	creates   *pool
	metaCache *lru.Cache[string, metaEntry]
}

// New returns a Correlator configured per cfg. log may be nil.
func New(cfg Config, log logger.Logger) *Correlator {
	if log == nil {
		log = logger.Noop()
	}
	meta, _ := lru.New[string, metaEntry](metaCacheSize)
	return &Correlator{
		cfg:       cfg,
		logger:    log,
		removes:   newPool(cfg.MaxPendingEvents),
		creates:   newPool(cfg.MaxPendingEvents),
		metaCache: meta,
	}
}

// MetadataLookup returns a pathtype.MetadataLookup backed by the
// correlator's recent-metadata cache, for wiring into the Path-Type
// Inferrer (spec §4.2(a)).
func (c *Correlator) MetadataLookup() pathtype.MetadataLookup {
	return func(path string) (bool, bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		e, ok := c.metaCache.Get(path)
		if !ok {
			return false, false
		}
		return e.isDirectory, true
	}
}

// PendingCreateLookup returns a pathtype.PendingCreateLookup backed by the
// correlator's own pending-create pool (spec §4.2(c)).
func (c *Correlator) PendingCreateLookup() pathtype.PendingCreateLookup {
	return func(path string) (bool, bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		for el := c.creates.insertionOrder.Front(); el != nil; el = el.Next() {
			e := el.Value.(*pendingEvent)
			if e.rawPath == path {
				return e.isDirectory, true
			}
		}
		return false, false
	}
}

// OnCreate processes a RawCreate (or the destination half of a rename):
// it reads live metadata, attempts to pair against pending Removes, and
// returns either a single Move event (paired) or a single Create event
// (unpaired, emitted eagerly per spec §4.3). A pending Create evicted at
// capacity is dropped without an event.
func (c *Correlator) OnCreate(raw events.RawEvent, inferrer *pathtype.Inferrer) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, size, isDir, statOK := pathid.Stat(raw.Path)

	var hashPtr *uint64
	if statOK && !isDir && size <= c.cfg.ContentHashMaxFileSize {
		if h, err := hashFileContent(raw.Path); err == nil {
			hashPtr = &h
		}
	}

	entry := metaEntry{mtime: raw.Timestamp, isDirectory: isDir}
	if statOK {
		entry.size = size
		entry.id = id
		entry.hasID = true
	}
	if hashPtr != nil {
		entry.contentHash = *hashPtr
		entry.hasHash = true
	}
	c.metaCache.Add(raw.Path, entry)

	cand := &pendingEvent{rawPath: raw.Path, timestamp: raw.Timestamp, isDirectory: isDir}
	if statOK {
		cand.size = &size
		cand.id = &id
	}
	cand.contentHash = hashPtr

	if el, score, method, ok := c.tryMatch(cand, c.removes); ok {
		matched := c.removes.remove(el)
		return []events.Event{c.moveEvent(matched.rawPath, raw.Path, raw.Timestamp, score, method)}
	}

	evicted := c.creates.insert(cand)
	out := []events.Event{c.createEvent(raw)}
	_ = evicted // unmatched Create eviction is silent per spec §4.3
	return out
}

// OnRemove processes a RawRemove (or the source half of a rename): it
// captures last-known metadata from the recent-metadata cache (the path
// is already gone), attempts an immediate pair against pending Creates,
// and either returns a Move event (paired) or inserts a pending Remove
// and emits nothing (spec §4.3).
func (c *Correlator) OnRemove(raw events.RawEvent, inferrer *pathtype.Inferrer) []events.Event {
	// The inferrer's lookups take c.mu, so it runs before the lock.
	var inferredDir, inferred bool
	if inferrer != nil {
		inferredDir, inferred = inferrer.Infer(raw).IsDirectory, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var isDir bool
	cand := &pendingEvent{rawPath: raw.Path, timestamp: raw.Timestamp}

	if entry, ok := c.metaCache.Get(raw.Path); ok {
		sz := entry.size
		cand.size = &sz
		if entry.hasID {
			id := entry.id
			cand.id = &id
		}
		if entry.hasHash {
			h := entry.contentHash
			cand.contentHash = &h
		}
		isDir = entry.isDirectory
	} else if inferred {
		isDir = inferredDir
	}
	cand.isDirectory = isDir

	if el, score, method, ok := c.tryMatch(cand, c.creates); ok {
		matched := c.creates.remove(el)
		return []events.Event{c.moveEvent(raw.Path, matched.rawPath, raw.Timestamp, score, method)}
	}

	if evicted := c.removes.insert(cand); evicted != nil {
		c.logger.Warn("pending remove evicted at capacity", "path", evicted.rawPath)
	}
	return nil
}

// Sweep expires pending entries older than cfg.Timeout: an unmatched
// pending Remove emits a final Remove event; an unmatched pending Create
// expires silently (it was already emitted) per spec §4.3.
func (c *Correlator) Sweep(now time.Time) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-c.cfg.Timeout)
	var out []events.Event

	for {
		front := c.removes.insertionOrder.Front()
		if front == nil {
			break
		}
		e := front.Value.(*pendingEvent)
		if e.timestamp.After(cutoff) {
			break
		}
		c.removes.remove(front)
		out = append(out, c.removeEvent(e.rawPath, e.isDirectory, now))
	}

	for {
		front := c.creates.insertionOrder.Front()
		if front == nil {
			break
		}
		e := front.Value.(*pendingEvent)
		if e.timestamp.After(cutoff) {
			break
		}
		c.creates.remove(front)
	}

	return out
}

// Stop flushes every pending Remove as a final Remove event and drains
// both pools, per spec §4.3's cancellation contract.
func (c *Correlator) Stop() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var out []events.Event
	for el := c.removes.insertionOrder.Front(); el != nil; {
		next := el.Next()
		e := c.removes.remove(el)
		out = append(out, c.removeEvent(e.rawPath, e.isDirectory, now))
		el = next
	}
	for el := c.creates.insertionOrder.Front(); el != nil; {
		next := el.Next()
		c.creates.remove(el)
		el = next
	}
	return out
}

// Stats returns a snapshot of both pending pools' bucket sizes, per
// SPEC_FULL §B.3.
func (c *Correlator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		PendingRemoves: poolStats(c.removes),
		PendingCreates: poolStats(c.creates),
	}
}

func poolStats(p *pool) PoolStats {
	sizeBucket := 0
	for _, els := range p.bySize {
		sizeBucket += len(els)
	}
	return PoolStats{
		ByInode: len(p.byInode),
		BySize:  sizeBucket,
		NoSize:  len(p.noSize),
		Total:   p.size(),
	}
}

// tryMatch implements the pairing algorithm of spec §4.3: an exact
// identity match short-circuits at confidence 0.95, otherwise every
// candidate sharing e's size (or the no_size fallback) is scored and the
// best-scoring candidate meeting the confidence threshold wins, tie-broken
// by smallest Δt, then closest name similarity, then first-inserted.
func (c *Correlator) tryMatch(e *pendingEvent, opposite *pool) (*list.Element, float64, events.DetectionMethod, bool) {
	if e.id != nil {
		if el, ok := opposite.byInode[*e.id]; ok {
			cand := el.Value.(*pendingEvent)
			if cand.rawPath != e.rawPath {
				method := events.MethodInodeMatching
				if runtime.GOOS == "windows" {
					method = events.MethodWindowsID
				}
				return el, 0.95, method, true
			}
		}
	}

	var best *list.Element
	var bestScore float64
	var bestDt time.Duration
	var bestNameSim float64
	var bestSizeMatch, bestInodeMatch, bestHashMatch bool

	for _, el := range opposite.candidates(e) {
		cand := el.Value.(*pendingEvent)
		if cand.rawPath == e.rawPath {
			continue // rule 5: never self-match
		}

		sizeMatch := e.size != nil && cand.size != nil && *e.size == *cand.size
		inodeMatch := e.id != nil && cand.id != nil && *e.id == *cand.id
		hashMatch := e.contentHash != nil && cand.contentHash != nil && *e.contentHash == *cand.contentHash

		dt := e.timestamp.Sub(cand.timestamp)
		if dt < 0 {
			dt = -dt
		}
		timeFactor := 1 - float64(dt)/float64(c.cfg.Timeout)
		if timeFactor < 0 {
			timeFactor = 0
		}

		nameSim := nameSimilarity(e.rawPath, cand.rawPath)

		score := 0.0
		if sizeMatch {
			score += c.cfg.WeightSize
		}
		score += c.cfg.WeightTime * timeFactor
		if inodeMatch {
			score += c.cfg.WeightInode
		}
		if hashMatch {
			score += c.cfg.WeightHash
		}
		score += c.cfg.WeightName * nameSim

		better := best == nil ||
			score > bestScore ||
			(score == bestScore && dt < bestDt) ||
			(score == bestScore && dt == bestDt && nameSim > bestNameSim)
		if better {
			best, bestScore, bestDt, bestNameSim = el, score, dt, nameSim
			bestSizeMatch, bestInodeMatch, bestHashMatch = sizeMatch, inodeMatch, hashMatch
		}
	}

	if best == nil || bestScore < c.cfg.ConfidenceThreshold {
		return nil, 0, "", false
	}

	method := events.MethodMetadata
	switch {
	case bestInodeMatch:
		method = events.MethodInodeMatching
		if runtime.GOOS == "windows" {
			method = events.MethodWindowsID
		}
	case bestHashMatch:
		method = events.MethodContentHash
	case bestSizeMatch:
		method = events.MethodSizeAndTime
	case bestNameSim > 0:
		method = events.MethodNameAndTiming
	}

	return best, bestScore, method, true
}

func (c *Correlator) createEvent(raw events.RawEvent) events.Event {
	return events.Event{ID: newEventID(), Kind: events.KindCreate, Path: raw.Path, Timestamp: raw.Timestamp}
}

func (c *Correlator) removeEvent(path string, isDir bool, ts time.Time) events.Event {
	return events.Event{ID: newEventID(), Kind: events.KindRemove, Path: path, Timestamp: ts, IsDirectory: isDir}
}

func (c *Correlator) moveEvent(src, dst string, ts time.Time, confidence float64, method events.DetectionMethod) events.Event {
	return events.Event{
		ID: newEventID(), Kind: events.KindMove, Path: dst, Timestamp: ts,
		Move: &events.MoveData{SourcePath: src, DestinationPath: dst, Confidence: confidence, DetectionMethod: method},
	}
}

func newEventID() string {
	return uuid.NewString()
}

// hashFileContent computes a fast non-cryptographic 64-bit content hash,
// per spec §4.3's content-hash fallback. Used only for files at or under
// content_hash_max_file_size (default 1 MiB).
func hashFileContent(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := fnv.New64a()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
