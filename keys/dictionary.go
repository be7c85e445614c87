package keys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
)

// Dictionary is an immutable, versioned collection of Keys for one
// actor, keyed by name (or unique alias) ignoring case.
type Dictionary struct {
	Name  string
	Major int
	Minor int

	// Checksum is the SHA-256 hex digest of the source file, when the
	// dictionary was loaded from disk.
	Checksum string

	keys map[string]*Key
}

// NewDictionary builds a dictionary from keys, rejecting duplicates.
func NewDictionary(name string, major, minor int, keys ...*Key) (*Dictionary, error) {
	d := &Dictionary{
		Name:  name,
		Major: major,
		Minor: minor,
		keys:  make(map[string]*Key, len(keys)),
	}
	for _, k := range keys {
		if err := d.add(k); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dictionary) add(k *Key) error {
	name := strings.ToLower(k.DictName())
	if name == "" {
		return errors.WrapInvalid(fmt.Errorf("key with empty name"), "keys.Dictionary", "add", "register key")
	}
	if _, dup := d.keys[name]; dup {
		return errors.WrapInvalid(fmt.Errorf("duplicate key name %q", k.DictName()), "keys.Dictionary", "add", "register key")
	}
	d.keys[name] = k
	return nil
}

// Version renders the declared version as "major.minor".
func (d *Dictionary) Version() string {
	return fmt.Sprintf("%d.%d", d.Major, d.Minor)
}

// Key looks up a key by name or alias, ignoring case.
func (d *Dictionary) Key(name string) (*Key, bool) {
	k, ok := d.keys[strings.ToLower(name)]
	return k, ok
}

// Keys returns every key sorted by registration name.
func (d *Dictionary) Keys() []*Key {
	names := make([]string, 0, len(d.keys))
	for name := range d.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Key, len(names))
	for i, name := range names {
		out[i] = d.keys[name]
	}
	return out
}

// Len returns the number of keys.
func (d *Dictionary) Len() int { return len(d.keys) }

// Describe renders the whole dictionary for help output.
func (d *Dictionary) Describe() string {
	s := fmt.Sprintf("Keys dictionary %q version %s\n", d.Name, d.Version())
	for _, k := range d.Keys() {
		s += "\n" + k.Describe()
	}
	return s
}
