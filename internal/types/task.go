package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTaskContext is returned when a task context field is missing or
// outside its enumeration.
var ErrInvalidTaskContext = errors.New("invalid task context")

type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Complexities lists every complexity in canonical order.
var Complexities = []Complexity{ComplexitySimple, ComplexityMedium, ComplexityComplex}

func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return true
	default:
		return false
	}
}

func ParseComplexity(s string) (Complexity, bool) {
	c := Complexity(normalize(s))
	return c, c.Valid()
}

type TaskType string

const (
	TaskChat     TaskType = "chat"
	TaskAnalysis TaskType = "analysis"
	TaskCode     TaskType = "code"
	TaskCreative TaskType = "creative"
)

// TaskTypes lists every task type in canonical order.
var TaskTypes = []TaskType{TaskChat, TaskAnalysis, TaskCode, TaskCreative}

func (t TaskType) Valid() bool {
	switch t {
	case TaskChat, TaskAnalysis, TaskCode, TaskCreative:
		return true
	default:
		return false
	}
}

func ParseTaskType(s string) (TaskType, bool) {
	t := TaskType(normalize(s))
	return t, t.Valid()
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Urgencies lists every urgency in canonical order.
var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh}

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	default:
		return false
	}
}

func ParseUrgency(s string) (Urgency, bool) {
	u := Urgency(normalize(s))
	return u, u.Valid()
}

// TaskContext classifies a unit of work along the three selection axes.
// A TaskContext is a comparable value and is safe to use as a map key.
type TaskContext struct {
	Complexity Complexity `json:"complexity"`
	Type       TaskType   `json:"type"`
	Urgency    Urgency    `json:"urgency"`
}

// Validate reports whether every field is present and drawn from its enumeration.
func (tc TaskContext) Validate() error {
	switch {
	case !tc.Complexity.Valid():
		return fmt.Errorf("%w: complexity %q", ErrInvalidTaskContext, tc.Complexity)
	case !tc.Type.Valid():
		return fmt.Errorf("%w: type %q", ErrInvalidTaskContext, tc.Type)
	case !tc.Urgency.Valid():
		return fmt.Errorf("%w: urgency %q", ErrInvalidTaskContext, tc.Urgency)
	}
	return nil
}

func (tc TaskContext) String() string {
	return string(tc.Complexity) + "/" + string(tc.Type) + "/" + string(tc.Urgency)
}

// ParseTaskContext builds a TaskContext from raw strings. Matching is
// case-insensitive; partial contexts are rejected.
func ParseTaskContext(complexity, taskType, urgency string) (TaskContext, error) {
	tc := TaskContext{
		Complexity: Complexity(normalize(complexity)),
		Type:       TaskType(normalize(taskType)),
		Urgency:    Urgency(normalize(urgency)),
	}
	if err := tc.Validate(); err != nil {
		return TaskContext{}, err
	}
	return tc, nil
}

// AllTaskContexts enumerates the 36 valid combinations, complexity-major.
func AllTaskContexts() []TaskContext {
	all := make([]TaskContext, 0, len(Complexities)*len(TaskTypes)*len(Urgencies))
	for _, c := range Complexities {
		for _, t := range TaskTypes {
			for _, u := range Urgencies {
				all = append(all, TaskContext{Complexity: c, Type: t, Urgency: u})
			}
		}
	}
	return all
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
