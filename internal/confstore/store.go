package confstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
)

// Sentinel errors for policy outcomes callers need to distinguish.
var (
	// ErrReadOnly is returned when a write targets a device-owned key.
	ErrReadOnly = errors.New("confstore: key is read-only")

	// ErrUnknownKey is returned for reads of keys that do not exist.
	ErrUnknownKey = errors.New("confstore: unknown key")
)

// Store holds the device configuration document and serializes all
// access to it. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	path   string
	doc    map[string]map[string]any
	logger *logging.Logger

	nextListenerID int
	keyListeners   map[string]map[int]func(oldValue, newValue any)
	allListeners   map[int]func(key string, oldValue, newValue any)
}

// change is a single accepted write, queued for notification after the
// document has been persisted.
type change struct {
	key      string
	oldValue any
	newValue any
}

// Load opens the configuration document at path, creating it with
// defaults if missing. A document that fails validation is discarded in
// favour of defaults rather than failing startup. sys.uuid is generated
// on first load.
func Load(path string, logger *logging.Logger) (*Store, error) {
	s := &Store{
		path:         path,
		doc:          normalizeDoc(defaultDoc()),
		logger:       logger.With("component", "confstore"),
		keyListeners: make(map[string]map[int]func(any, any)),
		allListeners: make(map[int]func(string, any, any)),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info("config file missing, creating with defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		var loaded map[string]map[string]any
		if uerr := json.Unmarshal(data, &loaded); uerr != nil {
			s.logger.Warn("config file unreadable, reverting to defaults", "error", uerr)
		} else if verr := validateDoc(loaded); verr != nil {
			s.logger.Warn("persisted config failed validation, reverting to defaults", "error", verr)
		} else {
			s.doc = loaded
		}
	}

	if id, _ := s.lookup("sys.uuid"); id == "" {
		newID := strings.ReplaceAll(uuid.NewString(), "-", "")
		s.doc["sys"]["uuid"] = newID
		s.logger.Info("generated device uuid", "uuid", newID)
	}

	if err := s.save(); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	return s, nil
}

// Get returns the value at a dotted key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(key)
}

// GetGroup returns a copy of one configuration group.
func (s *Store) GetGroup(name string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.doc[name]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(group))
	for k, v := range group {
		out[k] = v
	}
	return out, true
}

// GetAll returns a deep copy of the entire document.
func (s *Store) GetAll() map[string]map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]map[string]any, len(s.doc))
	for g, group := range s.doc {
		cp := make(map[string]any, len(group))
		for k, v := range group {
			cp[k] = v
		}
		out[g] = cp
	}
	return out
}

// Set validates and writes a single key, persists the document, and
// then notifies listeners. The old value is restored if persistence
// fails, so listeners only ever see durable changes.
func (s *Store) Set(key string, value any) error {
	return s.set(key, value, false)
}

// SetSystem writes a key on behalf of the device itself, bypassing the
// read-only guard that protects device-owned keys from the backend.
// Used for values the firmware maintains: the restart counter, the
// detected MAC address. Validation still applies.
func (s *Store) SetSystem(key string, value any) error {
	return s.set(key, value, true)
}

func (s *Store) set(key string, value any, system bool) error {
	s.mu.Lock()
	ch, err := s.apply(key, value, system)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if err := s.save(); err != nil {
		s.revert(ch)
		s.mu.Unlock()
		return fmt.Errorf("saving config: %w", err)
	}

	pending := s.collectNotifications([]change{ch})
	s.mu.Unlock()

	deliver(pending)
	return nil
}

// SetBatch applies several writes, each validated independently, and
// reports a per-key result. Accepted keys are persisted with a single
// save; a save failure reverts all of them.
func (s *Store) SetBatch(values map[string]any) map[string]error {
	results := make(map[string]error, len(values))

	s.mu.Lock()
	var accepted []change
	for key, value := range values {
		ch, err := s.apply(key, value, false)
		results[key] = err
		if err == nil {
			accepted = append(accepted, ch)
		}
	}

	if len(accepted) == 0 {
		s.mu.Unlock()
		return results
	}

	if err := s.save(); err != nil {
		for _, ch := range accepted {
			s.revert(ch)
			results[ch.key] = fmt.Errorf("saving config: %w", err)
		}
		s.mu.Unlock()
		return results
	}

	pending := s.collectNotifications(accepted)
	s.mu.Unlock()

	deliver(pending)
	return results
}

// Reset restores every group to factory defaults, preserving the
// device identity keys (sys.uuid, sys.devmac). Used by the factory
// reset command; the caller reboots afterwards.
func (s *Store) Reset() error {
	s.mu.Lock()

	fresh := normalizeDoc(defaultDoc())
	for _, key := range []string{"sys.uuid", "sys.devmac"} {
		if v, ok := s.lookup(key); ok {
			group, name, _ := splitKey(key)
			fresh[group][name] = v
		}
	}

	var changes []change
	for group, names := range fresh {
		for name, newValue := range names {
			key := group + "." + name
			if old, _ := s.lookup(key); !reflect.DeepEqual(old, newValue) {
				changes = append(changes, change{key: key, oldValue: old, newValue: newValue})
			}
		}
	}

	prev := s.doc
	s.doc = fresh
	if err := s.save(); err != nil {
		s.doc = prev
		s.mu.Unlock()
		return fmt.Errorf("saving config: %w", err)
	}

	pending := s.collectNotifications(changes)
	s.mu.Unlock()

	deliver(pending)
	return nil
}

// Subscribe registers fn for changes to one key and returns an
// unsubscribe function.
func (s *Store) Subscribe(key string, fn func(oldValue, newValue any)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListenerID
	s.nextListenerID++

	if s.keyListeners[key] == nil {
		s.keyListeners[key] = make(map[int]func(any, any))
	}
	s.keyListeners[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.keyListeners[key], id)
	}
}

// SubscribeAll registers fn for every accepted change and returns an
// unsubscribe function.
func (s *Store) SubscribeAll(fn func(key string, oldValue, newValue any)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListenerID
	s.nextListenerID++
	s.allListeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.allListeners, id)
	}
}

// apply validates one write and mutates the in-memory document.
// Caller holds s.mu and is responsible for persisting. system writes
// skip the read-only guard.
func (s *Store) apply(key string, value any, system bool) (change, error) {
	group, name, ok := splitKey(key)
	if !ok {
		return change{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	if _, ro := readonlyKeys[key]; ro && !system {
		return change{}, fmt.Errorf("%w: %s", ErrReadOnly, key)
	}

	value = normalize(value)

	if v, has := validators[key]; has {
		if err := v(value); err != nil {
			// A write equal to the key's default always goes
			// through, so a bad persisted value can be healed.
			if def, hasDef := defaultValue(key); !hasDef || !reflect.DeepEqual(value, def) {
				return change{}, fmt.Errorf("%s: %w", key, err)
			}
			s.logger.Warn("accepting default value that fails validation", "key", key, "error", err)
		}
	}

	old, _ := s.lookup(key)

	if s.doc[group] == nil {
		s.doc[group] = make(map[string]any)
	}
	s.doc[group][name] = value

	return change{key: key, oldValue: old, newValue: value}, nil
}

// revert undoes an applied change after a failed save. Caller holds s.mu.
func (s *Store) revert(ch change) {
	group, name, _ := splitKey(ch.key)
	if ch.oldValue == nil {
		delete(s.doc[group], name)
		return
	}
	s.doc[group][name] = ch.oldValue
}

// lookup reads a dotted key. Caller holds s.mu.
func (s *Store) lookup(key string) (any, bool) {
	group, name, ok := splitKey(key)
	if !ok {
		return nil, false
	}
	g, ok := s.doc[group]
	if !ok {
		return nil, false
	}
	v, ok := g[name]
	return v, ok
}

// save writes the document atomically: temp file in the same directory,
// fsync, then rename over the target.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temp config: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temp config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp config: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing config file: %w", err)
	}
	return nil
}

// notification is a listener invocation ready to run outside the lock.
type notification func()

// collectNotifications snapshots the listeners for a set of changes.
// Caller holds s.mu; the returned closures must run after unlock so a
// listener can call back into the store.
func (s *Store) collectNotifications(changes []change) []notification {
	var pending []notification
	for _, ch := range changes {
		ch := ch
		for _, fn := range s.allListeners {
			fn := fn
			pending = append(pending, func() { fn(ch.key, ch.oldValue, ch.newValue) })
		}
		for _, fn := range s.keyListeners[ch.key] {
			fn := fn
			pending = append(pending, func() { fn(ch.oldValue, ch.newValue) })
		}
	}
	return pending
}

// deliver runs queued listener invocations, isolating panics so one
// listener cannot affect the others.
func deliver(pending []notification) {
	for _, fn := range pending {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Default().Error("config listener panicked", "panic", r)
				}
			}()
			fn()
		}()
	}
}

// splitKey parses "group.name". Deeper nesting is not supported.
func splitKey(key string) (group, name string, ok bool) {
	group, name, found := strings.Cut(key, ".")
	if !found || group == "" || name == "" || strings.Contains(name, ".") {
		return "", "", false
	}
	return group, name, true
}

// defaultValue returns the factory value for a key, JSON-normalized for
// comparison with incoming writes.
func defaultValue(key string) (any, bool) {
	group, name, ok := splitKey(key)
	if !ok {
		return nil, false
	}
	g, ok := defaultDoc()[group]
	if !ok {
		return nil, false
	}
	v, ok := g[name]
	if !ok {
		return nil, false
	}
	return normalize(v), true
}

// validateDoc runs every validator against a candidate document,
// tolerating values that match factory defaults.
func validateDoc(doc map[string]map[string]any) error {
	var errs []string
	for key, v := range validators {
		group, name, _ := splitKey(key)
		g, ok := doc[group]
		if !ok {
			continue
		}
		value, ok := g[name]
		if !ok {
			continue
		}
		if err := v(value); err != nil {
			if def, hasDef := defaultValue(key); hasDef && reflect.DeepEqual(value, def) {
				continue
			}
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// normalize round-trips a value through JSON so in-process writes carry
// the same dynamic types as values decoded from the wire or from disk.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	//nolint:errcheck // output of Marshal always decodes
	json.Unmarshal(data, &out)
	return out
}

// normalizeDoc applies normalize to every value in a document.
func normalizeDoc(doc map[string]map[string]any) map[string]map[string]any {
	for _, group := range doc {
		for k, v := range group {
			group[k] = normalize(v)
		}
	}
	return doc
}
