package keyvar

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
	"github.com/Subaru-PFS/tron-actorcore-sub000/keys"
	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
)

// Callback observes a KeyVar; it receives the KeyVar itself and reads
// state off it.
type Callback func(kv *KeyVar)

// KeyVar caches the last-seen values of one (actor, keyword) pair.
//
// isCurrent reports whether any value has been recorded since the last
// invalidation (disconnect or explicit reset); isGenuine reports
// whether that value came from the owning actor rather than the hub's
// cache relay. A KeyVar is never destroyed once created; stale state
// is expressed through isCurrent.
type KeyVar struct {
	Actor string
	Key   *keys.Key

	logger *slog.Logger

	mu           sync.Mutex
	values       []any
	isCurrent    bool
	isGenuine    bool
	timestamp    time.Time
	reply        *message.Reply
	refreshActor string
	refreshCmd   string
	callbacks    []callbackEntry
	nextCbID     int
}

type callbackEntry struct {
	id int
	cb Callback
}

// New creates a KeyVar for one actor's keyword. When the key declares
// its own refresh command the recipe defaults to the owning actor.
func New(actor string, key *keys.Key, logger *slog.Logger) *KeyVar {
	if logger == nil {
		logger = slog.Default()
	}
	kv := &KeyVar{
		Actor:  actor,
		Key:    key,
		logger: logger.With("actor", actor, "keyword", key.Name),
		values: make([]any, key.Types.MinVals()),
	}
	if key.RefreshCmd != "" {
		kv.refreshActor = key.RefreshActor
		if kv.refreshActor == "" {
			kv.refreshActor = actor
		}
		kv.refreshCmd = key.RefreshCmd
	}
	return kv
}

// Name returns the keyword name.
func (kv *KeyVar) Name() string { return kv.Key.Name }

func (kv *KeyVar) String() string {
	return fmt.Sprintf("KeyVar(%s.%s)", kv.Actor, kv.Key.Name)
}

// SetRefreshInfo installs a refresh recipe, overriding anything from
// the key. The model uses this to point cacheable keywords at the hub
// cache relay.
func (kv *KeyVar) SetRefreshInfo(actor, cmd string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.refreshActor = actor
	kv.refreshCmd = cmd
}

// HasRefreshCmd reports whether the KeyVar can be refreshed.
func (kv *KeyVar) HasRefreshCmd() bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.refreshCmd != ""
}

// RefreshInfo returns the refresh recipe.
func (kv *KeyVar) RefreshInfo() (actor, cmd string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.refreshActor, kv.refreshCmd
}

// Set validates and stores a new value list, marks the KeyVar current,
// and, when notify is set, synchronously invokes every callback in
// registration order. A dispatcher passes notify=false while delaying
// callbacks during a refresh cycle and triggers Notify later.
// Conversion failure wraps errors.ErrValueMismatch and leaves the
// cached value unchanged.
func (kv *KeyVar) Set(values message.Values, isGenuine bool, reply *message.Reply, notify bool) error {
	vals := make(message.Values, len(values))
	copy(vals, values)
	if !kv.Key.Types.Consume(vals) {
		return fmt.Errorf("%w: %s cannot hold %v (want %s)",
			errors.ErrValueMismatch, kv, values.Strings(), kv.Key.Types)
	}
	typed := make([]any, len(vals))
	for i, v := range vals {
		typed[i] = v.Val
	}

	kv.mu.Lock()
	kv.values = typed
	kv.timestamp = time.Now()
	kv.isCurrent = true
	kv.isGenuine = isGenuine
	kv.reply = reply
	kv.mu.Unlock()

	if notify {
		kv.Notify()
	}
	return nil
}

// SetNotCurrent clears the currency flag and notifies callbacks, so
// observers can display the cached value as stale.
func (kv *KeyVar) SetNotCurrent() {
	kv.mu.Lock()
	kv.isCurrent = false
	kv.mu.Unlock()
	kv.Notify()
}

// Notify invokes every registered callback with this KeyVar. Panics
// in a callback are recovered and logged.
func (kv *KeyVar) Notify() {
	kv.mu.Lock()
	snapshot := make([]callbackEntry, len(kv.callbacks))
	copy(snapshot, kv.callbacks)
	kv.mu.Unlock()

	for _, entry := range snapshot {
		kv.invoke(entry.cb)
	}
}

func (kv *KeyVar) invoke(cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			kv.logger.Error("keyvar callback panicked", "panic", r)
		}
	}()
	cb(kv)
}

// AddCallback registers a callback and returns a handle for removal.
func (kv *KeyVar) AddCallback(cb Callback) int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.nextCbID++
	kv.callbacks = append(kv.callbacks, callbackEntry{id: kv.nextCbID, cb: cb})
	return kv.nextCbID
}

// RemoveCallback drops a callback by handle; unknown handles are a
// no-op.
func (kv *KeyVar) RemoveCallback(id int) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for i, entry := range kv.callbacks {
		if entry.id == id {
			kv.callbacks = append(kv.callbacks[:i], kv.callbacks[i+1:]...)
			return
		}
	}
}

// Values returns a snapshot of the converted value list. Entries are
// nil until the keyword has been seen.
func (kv *KeyVar) Values() []any {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	out := make([]any, len(kv.values))
	copy(out, kv.values)
	return out
}

// Value returns the single "value" of the KeyVar: true for a keyword
// with no values, the sole element for a fixed single-value keyword,
// and the whole list otherwise. It fails while any element is still
// unknown.
func (kv *KeyVar) Value() (any, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for _, v := range kv.values {
		if v == nil {
			return nil, fmt.Errorf("%s is unknown", kv)
		}
	}
	types := kv.Key.Types
	switch {
	case types.MaxVals() == 0:
		return true, nil
	case types.MinVals() == 1 && types.MaxVals() == 1:
		return kv.values[0], nil
	default:
		out := make([]any, len(kv.values))
		copy(out, kv.values)
		return out, nil
	}
}

// IsCurrent reports whether the cached value reflects present state.
func (kv *KeyVar) IsCurrent() bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.isCurrent
}

// IsGenuine reports whether the value came from the owning actor.
func (kv *KeyVar) IsGenuine() bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.isGenuine
}

// Timestamp returns when the value was last set; zero if never set.
func (kv *KeyVar) Timestamp() time.Time {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.timestamp
}

// Reply returns the reply that last set this KeyVar, or nil.
func (kv *KeyVar) Reply() *message.Reply {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.reply
}

// floatAt converts the value at index ind to a float64, used for
// time-limit keywords.
func (kv *KeyVar) floatAt(ind int) (float64, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if ind < 0 || ind >= len(kv.values) {
		return 0, false
	}
	switch v := kv.values[ind].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
