// Package quiznet holds the data model shared by the question bank,
// account store and session engine: themes, questions, sessions and the
// small value types used to describe them on the wire.
package quiznet

import (
	"strings"

	"github.com/hactazia/quiznet/internal/textmatch"
)

// Difficulty is a question or session difficulty level. Its wire
// representation always serializes to French, but accepts both French and
// English spellings on input — the original server's bilingual behavior,
// preserved for wire compatibility (see DESIGN.md).
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

// String renders the French spelling used on the wire.
func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "facile"
	case Hard:
		return "difficile"
	default:
		return "moyen"
	}
}

// ParseDifficulty accepts French or English spellings, case-insensitively.
// Anything unrecognized silently defaults to Medium, matching the reference
// implementation rather than erroring (see DESIGN.md).
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "facile", "easy":
		return Easy
	case "difficile", "hard":
		return Hard
	default:
		return Medium
	}
}

// BasePoints is the score awarded for a correct answer of this difficulty,
// before any speed bonus.
func (d Difficulty) BasePoints() int {
	switch d {
	case Easy:
		return 5
	case Hard:
		return 15
	default:
		return 10
	}
}

// SpeedBonus is the extra score awarded when the response arrives within
// half the question's time limit.
func (d Difficulty) SpeedBonus() int {
	switch d {
	case Easy:
		return 1
	case Hard:
		return 6
	default:
		return 3
	}
}

// Mode is the game mode of a session.
type Mode int

const (
	Solo Mode = iota
	Battle
)

func (m Mode) String() string {
	if m == Battle {
		return "battle"
	}
	return "solo"
}

// ParseMode defaults to Solo for anything but "battle" (matched
// case-insensitively, surrounding spaces ignored),
// matching the reference implementation's silent-default behavior.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "battle") {
		return Battle
	}
	return Solo
}

// QuestionKind is the shape of a question's expected answer.
type QuestionKind int

const (
	MultiChoice QuestionKind = iota
	Boolean
	Text
)

func (k QuestionKind) String() string {
	switch k {
	case Boolean:
		return "boolean"
	case Text:
		return "text"
	default:
		return "qcm"
	}
}

// Theme is a question category, assigned a dense id in discovery order
// when the question bank is loaded.
type Theme struct {
	ID   int
	Name string
}

// Question is one bank entry. Exactly one of the kind-specific correctness
// fields is meaningful, selected by Kind.
type Question struct {
	ID          int
	ThemeIDs    []int
	Difficulty  Difficulty
	Kind        QuestionKind
	Prompt      string
	Options     [4]string // populated for MultiChoice
	CorrectIdx  int       // meaningful for MultiChoice
	CorrectBool bool      // meaningful for Boolean
	AcceptedAns []string  // meaningful for Text
	Explanation string
}

// HasTheme reports whether the question belongs to any of the given themes.
func (q Question) HasTheme(themeIDs []int) bool {
	for _, want := range themeIDs {
		for _, have := range q.ThemeIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}

// CheckAnswer evaluates a submitted answer against the question's kind.
// idx is used for MultiChoice, b for Boolean, text for Text.
func (q Question) CheckAnswer(idx int, text string, b bool) bool {
	switch q.Kind {
	case MultiChoice:
		return idx == q.CorrectIdx
	case Boolean:
		return b == q.CorrectBool
	case Text:
		for _, accepted := range q.AcceptedAns {
			if textmatch.Equal(text, accepted) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// SessionStatus is the session lifecycle state.
type SessionStatus int

const (
	Waiting SessionStatus = iota
	Playing
	Finished
)

func (s SessionStatus) String() string {
	switch s {
	case Playing:
		return "playing"
	case Finished:
		return "finished"
	default:
		return "waiting"
	}
}
