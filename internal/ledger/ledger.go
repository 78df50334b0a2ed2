// Package ledger keeps the point-count tally and its undo history.
package ledger

import (
	"math"

	"github.com/verte-zerg/pointcount/internal/model"
)

// Ledger owns per-category counts and the chronological record of
// observations. The sum of counts always equals the history length.
type Ledger struct {
	counts  [model.NumCategories]int
	history []model.Category
}

// Percentages holds the derived percent for every category plus the total row.
type Percentages struct {
	ByCategory [model.NumCategories]float64
	Total      float64
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Record appends an observation of c.
func (l *Ledger) Record(c model.Category) {
	if !c.Valid() {
		return
	}
	l.history = append(l.history, c)
	l.counts[c]++
}

// Undo removes the most recent observation. It reports the removed category
// and false when there was nothing to undo.
func (l *Ledger) Undo() (model.Category, bool) {
	if len(l.history) == 0 {
		return 0, false
	}
	last := l.history[len(l.history)-1]
	l.history = l.history[:len(l.history)-1]
	l.counts[last]--
	return last, true
}

// Reset clears every count and the history.
func (l *Ledger) Reset() {
	l.counts = [model.NumCategories]int{}
	l.history = nil
}

// Count returns the tally for c.
func (l *Ledger) Count(c model.Category) int {
	if !c.Valid() {
		return 0
	}
	return l.counts[c]
}

// Counts returns a copy of all counts indexed by category.
func (l *Ledger) Counts() [model.NumCategories]int {
	return l.counts
}

// History returns a copy of the recorded observations, oldest first.
func (l *Ledger) History() []model.Category {
	out := make([]model.Category, len(l.history))
	copy(out, l.history)
	return out
}

// Total returns the number of recorded observations.
func (l *Ledger) Total() int {
	total := 0
	for _, n := range l.counts {
		total += n
	}
	return total
}

// Percent returns the share of c rounded to one decimal place.
func (l *Ledger) Percent(c model.Category) float64 {
	return percentOf(l.Count(c), l.Total())
}

// Percentages computes the percent of each category. The total row is 100.0
// for a non-empty ledger and 0.0 otherwise; it is never the sum of the rounded
// category values.
func (l *Ledger) Percentages() Percentages {
	total := l.Total()
	var p Percentages
	for i, n := range l.counts {
		p.ByCategory[i] = percentOf(n, total)
	}
	if total > 0 {
		p.Total = 100.0
	}
	return p
}

// Tally renders the ledger in the order of the given category set.
func (l *Ledger) Tally(set model.CategorySet) model.Tally {
	p := l.Percentages()
	bindings := set.Bindings()
	rows := make([]model.Row, 0, len(bindings))
	for _, b := range bindings {
		rows = append(rows, model.Row{
			Key:     b.Key,
			Label:   b.Label,
			Count:   l.counts[b.Category],
			Percent: p.ByCategory[b.Category],
		})
	}
	return model.Tally{
		Rows:         rows,
		TotalLabel:   TotalLabel,
		TotalCount:   l.Total(),
		TotalPercent: p.Total,
	}
}

// TotalLabel is the label of the summary row.
const TotalLabel = "Total"

func percentOf(count, total int) float64 {
	if total <= 0 {
		return 0.0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}
