package config

import (
	"fmt"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Options is the free-form per-engine and per-parser bag from the config
// file. Getters return def when a key is absent or holds a value of the
// wrong shape; they never fail.
type Options map[string]any

func lookup[T any](o Options, key string) (T, bool) {
	v, ok := o[key].(T)
	return v, ok
}

// String returns the string at key, or def.
func (o Options) String(key, def string) string {
	if s, ok := lookup[string](o, key); ok {
		return s
	}
	return def
}

// Bool returns the bool at key, or def.
func (o Options) Bool(key string, def bool) bool {
	if b, ok := lookup[bool](o, key); ok {
		return b
	}
	return def
}

// Int returns the integer at key, or def. YAML decodes integers as int and
// anything with a fraction or exponent as float64; whole floats are accepted.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
	}
	return def
}

// Duration accepts a Go duration string ("1500ms", "30s") or a plain number
// of seconds.
func (o Options) Duration(key string, def time.Duration) time.Duration {
	switch v := o[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return def
}

// Rune returns the first rune of the string at key, or def when the value is
// empty or not valid UTF-8. Used for single-character settings such as a CSV
// delimiter.
func (o Options) Rune(key string, def rune) rune {
	s, _ := lookup[string](o, key)
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return def
	}
	return r
}

// StringMap returns the string-valued entries of the mapping at key. It is
// never nil.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	m, _ := lookup[map[string]any](o, key)
	for k, v := range m {
		if s, ok := v.(string); ok {
			res[k] = s
		}
	}
	return res
}

// UnmarshalYAML accepts only a mapping. yaml.v3 leaves a null value as a nil
// Options without calling this; the getters treat nil as empty.
func (o *Options) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: options must be a mapping", n.Line)
	}
	m := map[string]any{}
	if err := n.Decode(&m); err != nil {
		return err
	}
	*o = Options(m)
	return nil
}
