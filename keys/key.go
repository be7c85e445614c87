package keys

import (
	"fmt"

	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
)

// Key describes one keyword: its name, value type signature, and
// optional metadata. A Key with a refresh recipe marks the keyword as
// refreshable; the dispatcher groups stale KeyVars by recipe and
// issues one refresh command per group.
type Key struct {
	Name  string
	Types TypedValues
	Help  string

	// Unique, when set, overrides Name as the registration name inside
	// a dictionary. Used when two actors share a keyword name.
	Unique string

	// RefreshActor and RefreshCmd form the refresh recipe: the command
	// sent to re-populate a stale cached value. Both empty means the
	// keyword is not refreshable on its own; DoCache keywords without a
	// recipe fall back to the hub cache relay.
	RefreshActor string
	RefreshCmd   string

	// DoCache marks the keyword as served by the hub's cache relay.
	DoCache bool
}

// DictName returns the name the key registers under.
func (k *Key) DictName() string {
	if k.Unique != "" {
		return k.Unique
	}
	return k.Name
}

// Consume matches kw against the key, converting its values in place.
// The keyword name comparison ignores case. On a values mismatch the
// keyword is left unmodified.
func (k *Key) Consume(kw *message.Keyword) bool {
	if !kw.Matches(k.Name) {
		return false
	}
	return k.Types.Consume(kw.Values)
}

// Create builds a typed Keyword from raw tokens using this key as the
// template.
func (k *Key) Create(raw ...string) (message.Keyword, error) {
	kw := message.NewKeyword(k.Name, raw...)
	if !k.Types.Consume(kw.Values) {
		return message.Keyword{}, fmt.Errorf("values %v do not match key %s (%s)", raw, k.Name, k.Types)
	}
	return kw, nil
}

// Describe renders the key for help output.
func (k *Key) Describe() string {
	s := fmt.Sprintf("%12s: %s\n", "Keyword", k.Name)
	if k.Help != "" {
		s += fmt.Sprintf("%12s: %s\n", "Description", k.Help)
	}
	s += fmt.Sprintf("%12s: %s\n", "Values", k.Types.Descriptor())
	for _, rep := range k.Types.Entries() {
		s += fmt.Sprintf("%14s%s", "", rep.String())
		if units := rep.Type.Units(); units != "" {
			s += " [" + units + "]"
		}
		if help := rep.Type.Help(); help != "" {
			s += "  " + help
		}
		s += "\n"
	}
	return s
}
