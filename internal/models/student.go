// Package models defines data structures for the roster client.
package models

import (
	"fmt"
	"strings"
)

// Level is a student's study level.
type Level string

const (
	LevelL1 Level = "L1"
	LevelL2 Level = "L2"
	LevelL3 Level = "L3"
	LevelM1 Level = "M1"
	LevelM2 Level = "M2"
)

// Levels lists every valid level in display order.
var Levels = []Level{LevelL1, LevelL2, LevelL3, LevelM1, LevelM2}

// ParseLevel converts user input ("l2", " M1 ") into a Level.
// An empty string parses to the empty (absent) level.
func ParseLevel(s string) (Level, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	level := Level(s)
	if !level.Valid() {
		return "", fmt.Errorf("invalid level %q (expected one of %s)", s, LevelNames())
	}
	return level, nil
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	for _, known := range Levels {
		if l == known {
			return true
		}
	}
	return false
}

// IsSet reports whether a level filter is present.
func (l Level) IsSet() bool {
	return l != ""
}

func (l Level) String() string {
	return string(l)
}

// LevelNames returns the levels as a comma-separated string for help text.
func LevelNames() string {
	names := make([]string, len(Levels))
	for i, l := range Levels {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

// Student is a roster entry as returned by /api/students.
type Student struct {
	ID       int64  `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Level    Level  `json:"level" yaml:"level"`
}

// StudentRequest is the body of create and update calls.
type StudentRequest struct {
	Username string `json:"username" validate:"required,notblank,max=50"`
	Level    Level  `json:"level" validate:"required,level"`
}
