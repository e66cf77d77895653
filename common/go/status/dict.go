// Package status implements the shared key/value status dictionary that
// every component in the assembler process reads configuration from and
// publishes telemetry to. It models the hashpipe status buffer: one
// mutex-guarded map, snapshot-on-read, minimal critical sections.
package status

import (
	"maps"
	"sync"
)

// Dict is a process-wide key/value map guarded by a single mutex.
//
// Writers must hold the lock for the minimum duration needed to swap
// values; no scatter work or other long-running computation is ever
// performed while holding it.
type Dict struct {
	mu     sync.Mutex
	values map[string]any
}

// New returns an empty Dict.
func New() *Dict {
	return &Dict{values: map[string]any{}}
}

// Set stores value under key.
func (d *Dict) Set(key string, value any) {
	d.mu.Lock()
	d.values[key] = value
	d.mu.Unlock()
}

// SetAll stores every key/value pair in kv in a single critical section.
func (d *Dict) SetAll(kv map[string]any) {
	d.mu.Lock()
	for k, v := range kv {
		d.values[k] = v
	}
	d.mu.Unlock()
}

// Get returns the raw value stored under key, if any.
func (d *Dict) Get(key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.values[key]
	return v, ok
}

// Delete removes key from the dictionary.
func (d *Dict) Delete(key string) {
	d.mu.Lock()
	delete(d.values, key)
	d.mu.Unlock()
}

// Snapshot returns a shallow copy of the entire dictionary. This is the
// mechanism used to stamp a finalized block's header region with the
// observation context in effect at hand-off time.
func (d *Dict) Snapshot() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.values)
}

// GetUint32 returns the value stored under key as a uint32, and whether it
// was present and of a convertible type.
func GetUint32(d *Dict, key string) (uint32, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case uint32:
		return n, true
	case uint64:
		return uint32(n), true
	case int:
		return uint32(n), true
	}
	return 0, false
}

// GetUint64 returns the value stored under key as a uint64, and whether it
// was present and of a convertible type.
func GetUint64(d *Dict, key string) (uint64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	case int64:
		return uint64(n), true
	case int:
		return uint64(n), true
	}
	return 0, false
}

// GetInt32 returns the value stored under key as an int32, and whether it
// was present and of a convertible type.
func GetInt32(d *Dict, key string) (int32, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int32:
		return n, true
	case int:
		return int32(n), true
	}
	return 0, false
}

// GetFloat64 returns the value stored under key as a float64, and whether it
// was present and of a convertible type.
func GetFloat64(d *Dict, key string) (float64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// GetString returns the value stored under key as a string, and whether it
// was present and of string type.
func GetString(d *Dict, key string) (string, bool) {
	v, ok := d.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
