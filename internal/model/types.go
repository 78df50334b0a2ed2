// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category is one of the fixed point-count classifications.
type Category int

const (
	Paste Category = iota
	CoarseAggregate
	FineAggregate
	EntrainedAir
	EntrappedAir
	Other
)

// NumCategories is the size of the closed category set.
const NumCategories = 6

// AllCategories lists every category in its default order.
var AllCategories = [NumCategories]Category{
	Paste,
	CoarseAggregate,
	FineAggregate,
	EntrainedAir,
	EntrappedAir,
	Other,
}

var categoryIDs = [NumCategories]string{
	"paste",
	"coarse-aggregate",
	"fine-aggregate",
	"entrained-air",
	"entrapped-air",
	"other",
}

var categoryLabels = [NumCategories]string{
	"Paste",
	"Coarse Aggregate",
	"Fine Aggregate",
	"Entrained Air",
	"Entrapped Air",
	"Other",
}

var categoryKeys = [NumCategories]string{"a", "s", "d", "f", "c", "x"}

// Valid reports whether c is a member of the closed set.
func (c Category) Valid() bool {
	return c >= 0 && c < NumCategories
}

// ID returns the stable identifier used in config files.
func (c Category) ID() string {
	if !c.Valid() {
		return "unknown"
	}
	return categoryIDs[c]
}

// String returns the default display label.
func (c Category) String() string {
	if !c.Valid() {
		return "Unknown"
	}
	return categoryLabels[c]
}

// ParseCategory resolves a config identifier to a Category.
func ParseCategory(id string) (Category, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for i, candidate := range categoryIDs {
		if candidate == id {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q (valid: %s)", id, strings.Join(categoryIDs[:], ", "))
}

// Binding ties a category to its input key and display label.
type Binding struct {
	Category Category
	Key      string
	Label    string
}

// CategorySet is the ordered, immutable set of category bindings for a run.
type CategorySet struct {
	bindings []Binding
	byKey    map[string]Category
}

// ReservedKeys cannot be bound to a category.
var ReservedKeys = map[string]struct{}{
	" ": {},
}

// DefaultCategorySet returns the standard a/s/d/f/c/x bindings.
func DefaultCategorySet() CategorySet {
	bindings := make([]Binding, 0, NumCategories)
	for _, c := range AllCategories {
		bindings = append(bindings, Binding{Category: c, Key: categoryKeys[c], Label: categoryLabels[c]})
	}
	set, err := NewCategorySet(bindings)
	if err != nil {
		panic(err)
	}
	return set
}

// NewCategorySet validates bindings and builds a CategorySet. Every category
// must appear exactly once with a unique single-character key.
func NewCategorySet(bindings []Binding) (CategorySet, error) {
	if len(bindings) != NumCategories {
		return CategorySet{}, fmt.Errorf("expected %d categories, got %d", NumCategories, len(bindings))
	}
	seen := map[Category]struct{}{}
	byKey := make(map[string]Category, len(bindings))
	out := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		if !b.Category.Valid() {
			return CategorySet{}, fmt.Errorf("invalid category %d", b.Category)
		}
		if _, ok := seen[b.Category]; ok {
			return CategorySet{}, fmt.Errorf("category %q bound more than once", b.Category.ID())
		}
		seen[b.Category] = struct{}{}
		if err := validateKey(b.Key); err != nil {
			return CategorySet{}, fmt.Errorf("category %q: %w", b.Category.ID(), err)
		}
		if prev, ok := byKey[b.Key]; ok {
			return CategorySet{}, fmt.Errorf("key %q bound to both %q and %q", b.Key, prev.ID(), b.Category.ID())
		}
		byKey[b.Key] = b.Category
		if strings.TrimSpace(b.Label) == "" {
			b.Label = b.Category.String()
		}
		out = append(out, b)
	}
	return CategorySet{bindings: out, byKey: byKey}, nil
}

func validateKey(key string) error {
	if utf8.RuneCountInString(key) != 1 {
		return fmt.Errorf("key %q must be a single character", key)
	}
	r, _ := utf8.DecodeRuneInString(key)
	if !unicode.IsPrint(r) {
		return fmt.Errorf("key %q is not printable", key)
	}
	if _, ok := ReservedKeys[key]; ok {
		return fmt.Errorf("key %q is reserved", key)
	}
	return nil
}

// Bindings returns the bindings in configured order.
func (s CategorySet) Bindings() []Binding {
	out := make([]Binding, len(s.bindings))
	copy(out, s.bindings)
	return out
}

// Lookup returns the category bound to key.
func (s CategorySet) Lookup(key string) (Category, bool) {
	c, ok := s.byKey[key]
	return c, ok
}

// Label returns the configured label for c.
func (s CategorySet) Label(c Category) string {
	for _, b := range s.bindings {
		if b.Category == c {
			return b.Label
		}
	}
	return c.String()
}

// Key returns the key bound to c.
func (s CategorySet) Key(c Category) string {
	for _, b := range s.bindings {
		if b.Category == c {
			return b.Key
		}
	}
	return ""
}

// StageConfig defines stage driver settings.
type StageConfig struct {
	USBManufacturer string
	StepDistance    float64
	MaxStepDistance float64
}

// Config defines counting session settings.
type Config struct {
	Categories CategorySet
	Stage      StageConfig
	ExportDir  string
}

// Row is one line of a tally table.
type Row struct {
	Key     string
	Label   string
	Count   int
	Percent float64
}

// Tally is a snapshot of the ledger rendered in category order.
type Tally struct {
	Rows         []Row
	TotalLabel   string
	TotalCount   int
	TotalPercent float64
}
