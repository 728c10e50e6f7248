// Package dictionary holds per-guild pronunciation rules: a pattern that is
// matched against message text and the kana reading that replaces it.
package dictionary

import (
	"iter"
	"slices"
	"sync"
	"time"

	apperrors "texvoice/backend/pkg/errors"

	"github.com/dlclark/regexp2"
)

// DefaultMatchTimeout bounds a single rule's replace pass. regexp2 backtracks,
// so a hostile pattern could otherwise stall the message path.
const DefaultMatchTimeout = 100 * time.Millisecond

// readingPattern accepts hiragana, katakana, the prolonged sound mark and whitespace.
var readingPattern = regexp2.MustCompile(`^[ぁ-んァ-ンー　\s]+$`, regexp2.None)

// Entry is a key/reading pair in registration order.
type Entry struct {
	Key         string `json:"key"`
	Replacement string `json:"replacement"`
}

// Rule is a compiled pronunciation rule. Rules are immutable once built;
// an overwrite swaps in a new Rule at the same position.
type Rule struct {
	Key         string
	Replacement string
	matcher     *regexp2.Regexp
}

// Apply rewrites every match of the rule's pattern in text. A matcher
// timeout leaves text untouched.
func (r *Rule) Apply(text string) string {
	out, err := r.matcher.Replace(text, r.Replacement, -1, -1)
	if err != nil {
		return text
	}
	return out
}

// Dictionary is an ordered set of rules for one guild.
type Dictionary struct {
	mu      sync.RWMutex
	rules   []*Rule
	index   map[string]int
	timeout time.Duration
}

// New creates an empty dictionary
func New() *Dictionary {
	return &Dictionary{
		index:   make(map[string]int),
		timeout: DefaultMatchTimeout,
	}
}

// Register validates and stores key -> replacement. A new key is appended;
// an existing key keeps its position. Nothing changes on error.
func (d *Dictionary) Register(key, replacement string) error {
	ok, err := readingPattern.MatchString(replacement)
	if err != nil || !ok {
		return apperrors.NewValidationError("reading", replacement, "only hiragana or katakana are allowed")
	}

	matcher, err := regexp2.Compile(key, regexp2.None)
	if err != nil {
		return apperrors.NewPatternError(key, err)
	}
	matcher.MatchTimeout = d.timeout

	rule := &Rule{Key: key, Replacement: replacement, matcher: matcher}

	d.mu.Lock()
	defer d.mu.Unlock()

	if i, exists := d.index[key]; exists {
		d.rules[i] = rule
		return nil
	}
	d.index[key] = len(d.rules)
	d.rules = append(d.rules, rule)
	return nil
}

// Unregister removes key, or returns a NotFoundError
func (d *Dictionary) Unregister(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i, exists := d.index[key]
	if !exists {
		return apperrors.NewNotFoundError("dictionary key", key)
	}

	d.rules = slices.Delete(d.rules, i, i+1)
	delete(d.index, key)
	for j := i; j < len(d.rules); j++ {
		d.index[d.rules[j].Key] = j
	}
	return nil
}

// List yields (key, reading) pairs in registration order. Each range over the
// returned sequence starts from a fresh snapshot.
func (d *Dictionary) List() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, r := range d.snapshot() {
			if !yield(r.Key, r.Replacement) {
				return
			}
		}
	}
}

// Entries returns the rules as plain pairs in registration order
func (d *Dictionary) Entries() []Entry {
	rules := d.snapshot()
	entries := make([]Entry, 0, len(rules))
	for _, r := range rules {
		entries = append(entries, Entry{Key: r.Key, Replacement: r.Replacement})
	}
	return entries
}

// Len returns the number of rules
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rules)
}

// Rewrite applies every rule in registration order; each rule sees the
// output of the rules before it.
func (d *Dictionary) Rewrite(text string) string {
	for _, r := range d.snapshot() {
		text = r.Apply(text)
	}
	return text
}

func (d *Dictionary) snapshot() []*Rule {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.rules)
}
