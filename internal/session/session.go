// Package session binds key events to ledger and stage operations.
package session

import (
	"log/slog"

	"github.com/verte-zerg/pointcount/internal/ledger"
	"github.com/verte-zerg/pointcount/internal/model"
	"github.com/verte-zerg/pointcount/internal/stage"
)

// Stage is the motion side a session drives.
type Stage interface {
	Advance() (string, error)
	Retreat() (string, error)
	SetStepDistance(float64) float64
	StepDistance() float64
	MaxStepDistance() float64
	State() stage.State
}

// Result describes what one event did.
type Result struct {
	Category model.Category
	Recorded bool
	Undone   bool
	Command  string
	MoveErr  error
}

// Session owns the ledger and forwards motion to the stage. Errors never stop
// a session; a failed move is reported in the Result and logged.
type Session struct {
	categories model.CategorySet
	ledger     *ledger.Ledger
	stage      Stage
	logger     *slog.Logger
}

// New creates a session over an empty ledger.
func New(categories model.CategorySet, st Stage, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		categories: categories,
		ledger:     ledger.New(),
		stage:      st,
		logger:     logger,
	}
}

// Categories returns the category bindings.
func (s *Session) Categories() model.CategorySet {
	return s.categories
}

// Stage returns the stage the session drives.
func (s *Session) Stage() Stage {
	return s.stage
}

// HandleKey records the category bound to key. It reports false when the key
// is not bound.
func (s *Session) HandleKey(key string) (Result, bool) {
	c, ok := s.categories.Lookup(key)
	if !ok {
		return Result{}, false
	}
	return s.Record(c), true
}

// Record counts c and advances the stage. An invalid category does neither.
func (s *Session) Record(c model.Category) Result {
	if !c.Valid() {
		return Result{}
	}
	s.ledger.Record(c)
	res := Result{Category: c, Recorded: true}
	res.Command, res.MoveErr = s.stage.Advance()
	s.logMove("record", res)
	return res
}

// Undo removes the last observation and retreats the stage. With nothing to
// undo neither the ledger nor the stage is touched.
func (s *Session) Undo() Result {
	c, ok := s.ledger.Undo()
	if !ok {
		return Result{}
	}
	res := Result{Category: c, Undone: true}
	res.Command, res.MoveErr = s.stage.Retreat()
	s.logMove("undo", res)
	return res
}

// Reset clears the tally. The stage is not moved.
func (s *Session) Reset() {
	s.ledger.Reset()
	s.logger.Info("tally reset")
}

// Advance jogs the stage forward without counting.
func (s *Session) Advance() Result {
	var res Result
	res.Command, res.MoveErr = s.stage.Advance()
	s.logMove("jog forward", res)
	return res
}

// Retreat jogs the stage backward without counting.
func (s *Session) Retreat() Result {
	var res Result
	res.Command, res.MoveErr = s.stage.Retreat()
	s.logMove("jog backward", res)
	return res
}

// SetStepDistance stores a clamped step distance and returns it.
func (s *Session) SetStepDistance(v float64) float64 {
	stored := s.stage.SetStepDistance(v)
	if stored != v {
		s.logger.Info("step distance clamped", "requested", v, "stored", stored)
	}
	return stored
}

// Tally returns the current counts in category order.
func (s *Session) Tally() model.Tally {
	return s.ledger.Tally(s.categories)
}

// Total returns the number of recorded observations.
func (s *Session) Total() int {
	return s.ledger.Total()
}

func (s *Session) logMove(action string, res Result) {
	if res.MoveErr != nil {
		s.logger.Warn("stage move failed", "action", action, "command", res.Command, "error", res.MoveErr)
	}
}
