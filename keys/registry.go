package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
)

// Registry loads and caches dictionaries by name. A dictionary is
// loaded from disk at most once; Reload forces a fresh read. Safe for
// concurrent use.
type Registry struct {
	logger *slog.Logger
	dirs   []string

	mu    sync.Mutex
	dicts map[string]*Dictionary
}

// NewRegistry builds a registry searching the given directories for
// "<name>.toml" dictionary files, in order.
func NewRegistry(logger *slog.Logger, dirs ...string) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger.With("component", "keys.Registry"),
		dirs:   dirs,
		dicts:  make(map[string]*Dictionary),
	}
}

// Register installs an in-code dictionary under its name. Registering
// a name twice fails.
func (r *Registry) Register(d *Dictionary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(d.Name)
	if _, dup := r.dicts[name]; dup {
		return errors.WrapInvalid(errors.ErrAlreadyRegistered, "keys.Registry", "Register", "register dictionary "+d.Name)
	}
	r.dicts[name] = d
	return nil
}

// Load returns the dictionary for name, reading it from disk on first
// use.
func (r *Registry) Load(name string) (*Dictionary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.dicts[strings.ToLower(name)]; ok {
		return d, nil
	}
	return r.loadLocked(name)
}

// Reload reads the dictionary from disk even when a cached copy
// exists. The cached copy is only replaced on success.
func (r *Registry) Reload(name string) (*Dictionary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(name)
}

func (r *Registry) loadLocked(name string) (*Dictionary, error) {
	path, data, err := r.read(name)
	if err != nil {
		return nil, err
	}
	d, err := decodeDictionary(data)
	if err != nil {
		return nil, errors.WrapInvalid(err, "keys.Registry", "Load", "decode dictionary "+path)
	}
	sum := sha256.Sum256(data)
	d.Checksum = hex.EncodeToString(sum[:])

	r.dicts[strings.ToLower(d.Name)] = d
	r.logger.Info("loaded keys dictionary",
		"name", d.Name,
		"version", d.Version(),
		"keys", d.Len(),
		"checksum", d.Checksum[:12],
		"path", path)
	return d, nil
}

func (r *Registry) read(name string) (string, []byte, error) {
	for _, dir := range r.dirs {
		path := filepath.Join(dir, name+".toml")
		data, err := os.ReadFile(path)
		if err == nil {
			return path, data, nil
		}
		if !os.IsNotExist(err) {
			return "", nil, errors.WrapTransient(err, "keys.Registry", "Load", "read dictionary "+path)
		}
	}
	return "", nil, fmt.Errorf("%w: %s (searched %v)", errors.ErrDictNotFound, name, r.dirs)
}
