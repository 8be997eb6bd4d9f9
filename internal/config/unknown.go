package config

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Unknown keys within this edit distance of a real one get a suggestion.
const maxSuggestDistance = 3

// knownKeys is every toml tag on Config's embedded groups.
var knownKeys = tomlKeys(reflect.TypeFor[Config]())

// knownKeyList is knownKeys sorted, so ties in suggestion distance resolve
// the same way every run.
var knownKeyList = func() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

func tomlKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool)

	for i := range t.NumField() {
		f := t.Field(i)
		if f.Anonymous {
			maps.Copy(keys, tomlKeys(f.Type))
			continue
		}

		if tag, _, _ := strings.Cut(f.Tag.Get("toml"), ","); tag != "" && tag != "-" {
			keys[tag] = true
		}
	}

	return keys
}

// checkUnknownKeys reports every key the decoder left untouched.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	// A table header is reported through the keys inside it.
	hasChildren := make(map[string]bool)
	for _, key := range undecoded {
		if len(key) > 1 {
			hasChildren[key[0]] = true
		}
	}

	var errs []error

	for _, key := range undecoded {
		if len(key) == 1 && hasChildren[key[0]] {
			continue
		}

		errs = append(errs, buildKeyError(key.String(), key[0]))
	}

	return errors.Join(errs...)
}

// buildKeyError explains one unknown key. Keys are flat, so a real key
// nested under a table gets told to move up.
func buildKeyError(fullKey, field string) error {
	if fullKey != field {
		leaf := fullKey[strings.LastIndex(fullKey, ".")+1:]
		if knownKeys[leaf] {
			return fmt.Errorf("unknown config key %q: %q is a top-level key, move it out of [%s]",
				fullKey, leaf, field)
		}

		if suggestion := closestMatch(leaf, knownKeyList); suggestion != "" {
			return fmt.Errorf("unknown config key %q: did you mean top-level %q?", fullKey, suggestion)
		}
	}

	if suggestion := closestMatch(field, knownKeyList); suggestion != "" {
		return fmt.Errorf("unknown config key %q: did you mean %q?", field, suggestion)
	}

	return fmt.Errorf("unknown config key %q", fullKey)
}

// closestMatch returns the nearest known key, or "" when none is close.
func closestMatch(unknown string, known []string) string {
	best, bestDist := "", maxSuggestDistance+1

	for _, k := range known {
		if d := levenshtein(unknown, k); d < bestDist {
			best, bestDist = k, d
		}
	}

	return best
}

// levenshtein is byte-wise edit distance over two rolling rows.
func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			sub := prev[j]
			if a[i] != b[j] {
				sub++
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, sub)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
