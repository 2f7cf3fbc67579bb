package questionbank

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hactazia/quiznet/internal/quiznet"
	"github.com/stretchr/testify/require"
)

func sampleQuestions(n int, difficulty quiznet.Difficulty, themeID int) []quiznet.Question {
	return sampleQuestionsFrom(1, n, difficulty, themeID)
}

func sampleQuestionsFrom(startID, n int, difficulty quiznet.Difficulty, themeID int) []quiznet.Question {
	out := make([]quiznet.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, quiznet.Question{
			ID:         startID + i,
			ThemeIDs:   []int{themeID},
			Difficulty: difficulty,
			Kind:       quiznet.MultiChoice,
			Prompt:     "q",
			Options:    [4]string{"a", "b", "c", "d"},
			CorrectIdx: 0,
		})
	}
	return out
}

func TestSelectSucceedsWithEnoughMatches(t *testing.T) {
	b := New()
	b.Load([]quiznet.Theme{{ID: 1, Name: "geo"}}, sampleQuestions(12, quiznet.Easy, 1))

	ids, err := b.Select([]int{1}, quiznet.Easy, 10)
	require.NoError(t, err)
	require.Len(t, ids, 10)

	seen := map[int]bool{}
	for _, id := range ids {
		require.False(t, seen[id], "duplicate id in selection")
		seen[id] = true
	}
}

func TestSelectFailsWhenInsufficient(t *testing.T) {
	b := New()
	b.Load([]quiznet.Theme{{ID: 1, Name: "geo"}}, sampleQuestions(5, quiznet.Easy, 1))

	_, err := b.Select([]int{1}, quiznet.Easy, 10)
	require.ErrorIs(t, err, ErrInsufficientQuestions)
}

func TestSelectFiltersByDifficultyAndTheme(t *testing.T) {
	b := New()
	qs := sampleQuestions(10, quiznet.Easy, 1)
	qs = append(qs, sampleQuestionsFrom(11, 10, quiznet.Hard, 2)...)
	b.Load([]quiznet.Theme{{ID: 1, Name: "geo"}, {ID: 2, Name: "history"}}, qs)

	_, err := b.Select([]int{2}, quiznet.Easy, 5)
	require.ErrorIs(t, err, ErrInsufficientQuestions, "theme 2 has no easy questions")

	ids, err := b.Select([]int{1}, quiznet.Easy, 5)
	require.NoError(t, err)
	require.Len(t, ids, 5)
}

func TestLoadFileParsesRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.dat")
	content := "geo,world;easy;qcm;What is the capital of France?;Paris,Lyon,Nice,Metz;0;Paris is the capital.\n" +
		"history;hard;boolean;The Eiffel Tower is in Paris.;true,false;true;\n" +
		"geo;medium;text;Name a French river.;Seine,Loire,Rhone;;\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	b := New()
	require.NoError(t, b.LoadFile(path))
	require.Equal(t, 3, b.Size())

	themes := b.Themes()
	require.Len(t, themes, 3)

	q1, ok := b.Get(1)
	require.True(t, ok)
	require.Equal(t, quiznet.MultiChoice, q1.Kind)
	require.Equal(t, 0, q1.CorrectIdx)
	require.Equal(t, "Paris", q1.Options[0])

	q2, ok := b.Get(2)
	require.True(t, ok)
	require.Equal(t, quiznet.Boolean, q2.Kind)
	require.True(t, q2.CorrectBool)

	q3, ok := b.Get(3)
	require.True(t, ok)
	require.Equal(t, quiznet.Text, q3.Kind)
	require.ElementsMatch(t, []string{"Seine", "Loire", "Rhone"}, q3.AcceptedAns)
}
