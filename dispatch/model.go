package dispatch

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
	"github.com/Subaru-PFS/tron-actorcore-sub000/keys"
	"github.com/Subaru-PFS/tron-actorcore-sub000/keyvar"
)

// cacheBatchSize bounds how many keyword names one cache-relay refresh
// command carries; the hub rejects overlong getFor lines.
const cacheBatchSize = 20

// Model holds one KeyVar per key of an actor's dictionary, registered
// with a dispatcher. Cacheable keys without their own refresh command
// are refreshed through the hub's cache relay in batches.
type Model struct {
	actor      string
	dict       *keys.Dictionary
	dispatcher *Dispatcher
	keyVars    map[string]*keyvar.KeyVar // by lowercased dictionary name
}

// NewModel builds the model for actor from dict and registers every
// KeyVar with d. At most one model per actor may be registered.
func NewModel(d *Dispatcher, actor string, dict *keys.Dictionary, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Model{
		actor:      actor,
		dict:       dict,
		dispatcher: d,
		keyVars:    make(map[string]*keyvar.KeyVar, dict.Len()),
	}

	var cacheable []*keyvar.KeyVar
	for _, key := range dict.Keys() {
		kv := keyvar.New(actor, key, logger)
		m.keyVars[strings.ToLower(key.DictName())] = kv
		if key.DoCache && key.RefreshCmd == "" {
			cacheable = append(cacheable, kv)
		}
	}
	assignCacheRefresh(actor, cacheable)

	if err := d.registerModel(m); err != nil {
		return nil, err
	}
	for _, kv := range m.keyVars {
		d.AddKeyVar(kv)
	}
	return m, nil
}

// assignCacheRefresh points cacheable KeyVars at the hub cache relay,
// one getFor command per batch.
func assignCacheRefresh(actor string, kvs []*keyvar.KeyVar) {
	for start := 0; start < len(kvs); start += cacheBatchSize {
		batch := kvs[start:min(start+cacheBatchSize, len(kvs))]
		names := make([]string, len(batch))
		for i, kv := range batch {
			names[i] = kv.Name()
		}
		cmd := fmt.Sprintf("getFor=%s %s", actor, strings.Join(names, " "))
		for _, kv := range batch {
			kv.SetRefreshInfo(cacheRelayActor, cmd)
		}
	}
}

// Actor returns the actor this model describes.
func (m *Model) Actor() string { return m.actor }

// Dictionary returns the keyword dictionary the model was built from.
func (m *Model) Dictionary() *keys.Dictionary { return m.dict }

// KeyVar looks up a KeyVar by key name or alias, ignoring case.
func (m *Model) KeyVar(name string) (*keyvar.KeyVar, bool) {
	kv, ok := m.keyVars[strings.ToLower(name)]
	return kv, ok
}

// KeyVars returns every KeyVar sorted by key name.
func (m *Model) KeyVars() []*keyvar.KeyVar {
	names := make([]string, 0, len(m.keyVars))
	for name := range m.keyVars {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*keyvar.KeyVar, len(names))
	for i, name := range names {
		out[i] = m.keyVars[name]
	}
	return out
}

// registerModel records a model, rejecting a second model for the same
// actor.
func (d *Dispatcher) registerModel(m *Model) error {
	key := strings.ToLower(m.actor)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.models[key]; dup {
		return errors.WrapInvalid(
			fmt.Errorf("%w: model for actor %q", errors.ErrAlreadyRegistered, m.actor),
			"dispatch.Dispatcher", "registerModel", "register actor model")
	}
	d.models[key] = m
	return nil
}

// Model returns the registered model for actor, if any.
func (d *Dispatcher) Model(actor string) (*Model, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.models[strings.ToLower(actor)]
	return m, ok
}
