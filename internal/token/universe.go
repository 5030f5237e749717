package token

import (
	"container/list"
	"context"
	"log"
	"sync"

	"github.com/rawblock/dex-momentum-core/internal/mintverify"
)

// rejectedCacheCap bounds the rejected-mint memoization set (spec.md §4.5:
// "capped (~10k entries; LRU-trimmed)").
const rejectedCacheCap = 10_000

// lruSet is a fixed-capacity set with least-recently-used eviction, used to
// memoize mints that failed verification so the universe doesn't re-ask the
// verifier for the same bad address on every observation.
type lruSet struct {
	mu       sync.Mutex
	cap      int
	ll       *list.List
	elements map[string]*list.Element
}

func newLRUSet(capacity int) *lruSet {
	return &lruSet{cap: capacity, ll: list.New(), elements: make(map[string]*list.Element)}
}

func (l *lruSet) Contains(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	el, ok := l.elements[key]
	if !ok {
		return false
	}
	l.ll.MoveToFront(el)
	return true
}

func (l *lruSet) Add(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.elements[key]; ok {
		l.ll.MoveToFront(el)
		return
	}
	el := l.ll.PushFront(key)
	l.elements[key] = el
	if l.ll.Len() > l.cap {
		oldest := l.ll.Back()
		if oldest != nil {
			l.ll.Remove(oldest)
			delete(l.elements, oldest.Value.(string))
		}
	}
}

// EntryNotification and ExitNotification are the typed variants emitted on
// admission and eviction — spec.md §9's "event-emitter callbacks → typed
// channels" note, realized here as plain callback functions threaded in at
// construction (the teacher's AlertManager.alertCallback shape), which the
// caller is free to forward onto a channel if it wants one.
type EntryNotification struct {
	Mint string
}

type ExitNotification struct {
	Mint string
}

// Universe is the registry of live tokens. Admission requires
// MintVerifier approval; inactive tokens are evicted on Tick.
type Universe struct {
	mu       sync.RWMutex
	tokens   map[string]*State
	verifier *mintverify.Verifier
	rejected *lruSet

	inactivityTimeoutMs int64

	onEnter func(EntryNotification)
	onExit  func(ExitNotification)
}

// NewUniverse constructs a Universe. onEnter/onExit may be nil.
func NewUniverse(verifier *mintverify.Verifier, inactivityTimeoutMs int64, onEnter func(EntryNotification), onExit func(ExitNotification)) *Universe {
	return &Universe{
		tokens:              make(map[string]*State),
		verifier:             verifier,
		rejected:             newLRUSet(rejectedCacheCap),
		inactivityTimeoutMs:  inactivityTimeoutMs,
		onEnter:              onEnter,
		onExit:               onExit,
	}
}

// Get returns the existing state for mint, if admitted.
func (u *Universe) Get(mint string) (*State, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	s, ok := u.tokens[mint]
	return s, ok
}

// Admit returns the token's state, verifying and creating it on first
// observation. Returns (nil, false) if the mint fails verification or has
// previously been memoized as rejected.
func (u *Universe) Admit(ctx context.Context, mint string, nowMs int64) (*State, bool) {
	if s, ok := u.Get(mint); ok {
		return s, true
	}

	if u.rejected.Contains(mint) {
		return nil, false
	}

	if !u.verifier.IsValid(ctx, mint) {
		u.rejected.Add(mint)
		return nil, false
	}

	u.mu.Lock()
	// Re-check under the write lock in case of a concurrent admit race.
	if s, ok := u.tokens[mint]; ok {
		u.mu.Unlock()
		return s, true
	}
	s := NewState(mint, nowMs)
	u.tokens[mint] = s
	u.mu.Unlock()

	log.Printf("[TokenUniverse] admitted %s", mint)
	if u.onEnter != nil {
		u.onEnter(EntryNotification{Mint: mint})
	}
	return s, true
}

// Snapshot returns the currently live token states. The slice is a copy of
// the registry's values at call time; callers may range over it without
// holding any lock, but must not assume it stays in sync with later
// admissions or evictions.
func (u *Universe) Snapshot() []*State {
	u.mu.RLock()
	defer u.mu.RUnlock()
	snapshot := make([]*State, 0, len(u.tokens))
	for _, s := range u.tokens {
		snapshot = append(snapshot, s)
	}
	return snapshot
}

// Tick advances every token's windows and evicts anything inactive beyond
// inactivityTimeoutMs. Intended to run on a 10s cadence (spec.md §4.5).
func (u *Universe) Tick(nowMs int64) {
	snapshot := u.Snapshot()

	var evicted []string
	for _, s := range snapshot {
		s.Tick(nowMs)
		if s.isInactive(nowMs, u.inactivityTimeoutMs) {
			evicted = append(evicted, s.Mint)
		}
	}

	if len(evicted) == 0 {
		return
	}

	u.mu.Lock()
	for _, mint := range evicted {
		delete(u.tokens, mint)
	}
	u.mu.Unlock()

	for _, mint := range evicted {
		log.Printf("[TokenUniverse] evicted %s (inactive)", mint)
		if u.onExit != nil {
			u.onExit(ExitNotification{Mint: mint})
		}
	}
}

// Size returns the number of live tokens.
func (u *Universe) Size() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.tokens)
}
