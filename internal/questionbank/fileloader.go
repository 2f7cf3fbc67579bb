package questionbank

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hactazia/quiznet/internal/quiznet"
)

// LoadFile populates the bank from a semicolon-delimited flat file, the
// convenience default collaborator grounded on the reference
// implementation's load_questions record format:
//
//	theme(s);difficulty;type;question;answers;correct;explanation
//
// theme(s) and answers/accepted-answers are comma-sub-delimited. Themes are
// auto-created in first-seen order, exactly as the reference loader does.
// This loader is an external collaborator to the core per the spec's
// scoping of the content file format out of core — the Bank itself depends
// only on Theme/Question values, never on this file format.
func (b *Bank) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("questionbank: open %s: %w", path, err)
	}
	defer f.Close()

	themeIDs := map[string]int{}
	var themes []quiznet.Theme
	var questions []quiznet.Question
	nextThemeID := 0
	nextQuestionID := 1

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < 6 {
			return fmt.Errorf("questionbank: %s:%d: expected at least 6 fields, got %d", path, lineNo, len(fields))
		}

		themeNames := strings.Split(fields[0], ",")
		ids := make([]int, 0, len(themeNames))
		for _, name := range themeNames {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			id, ok := themeIDs[name]
			if !ok {
				id = nextThemeID
				nextThemeID++
				themeIDs[name] = id
				themes = append(themes, quiznet.Theme{ID: id, Name: name})
			}
			ids = append(ids, id)
		}

		q := quiznet.Question{
			ID:         nextQuestionID,
			ThemeIDs:   ids,
			Difficulty: quiznet.ParseDifficulty(fields[1]),
			Prompt:     fields[3],
		}
		nextQuestionID++

		kind := strings.ToLower(strings.TrimSpace(fields[2]))
		switch kind {
		case "boolean":
			q.Kind = quiznet.Boolean
			q.CorrectBool = strings.EqualFold(strings.TrimSpace(fields[5]), "true") ||
				strings.TrimSpace(fields[5]) == "1"
		case "text":
			q.Kind = quiznet.Text
			q.AcceptedAns = splitNonEmpty(fields[4], ",")
		default:
			q.Kind = quiznet.MultiChoice
			opts := splitNonEmpty(fields[4], ",")
			for i := 0; i < 4 && i < len(opts); i++ {
				q.Options[i] = opts[i]
			}
			idx, err := strconv.Atoi(strings.TrimSpace(fields[5]))
			if err != nil {
				return fmt.Errorf("questionbank: %s:%d: bad correct index %q: %w", path, lineNo, fields[5], err)
			}
			q.CorrectIdx = idx
		}
		if len(fields) > 6 {
			q.Explanation = fields[6]
		}
		questions = append(questions, q)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("questionbank: %s: %w", path, err)
	}

	b.Load(themes, questions)
	return nil
}

func splitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
