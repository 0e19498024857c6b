package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/config"
)

func TestReadQuizzesFromFilesAndDirs(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	quiz := "code: GEO1\nquestions:\n  - id: q1\n    question: Capital of France?\n    options: [Paris, Lyon]\n"
	req.NoError(os.WriteFile(filepath.Join(dir, "geo.yaml"), []byte(quiz), 0o600))
	single := filepath.Join(t.TempDir(), "solo.json")
	req.NoError(os.WriteFile(single, []byte(`{"id":"solo","questions":[{"id":"q1","question":"?"}]}`), 0o600))

	quizzes, err := readQuizzes([]string{dir, single})
	req.NoError(err)
	req.Len(quizzes, 2)
	req.Equal("geo", quizzes[0].ID)
	req.Equal("solo", quizzes[1].ID)

	_, err = readQuizzes([]string{t.TempDir()})
	req.Error(err)
}

func TestQuizLoaderFallsBackToSample(t *testing.T) {
	loader, err := quizLoader(config.Default(), nil)
	require.NoError(t, err)

	quiz, err := loader.LoadQuiz(context.Background(), "DEMO")
	require.NoError(t, err)
	require.Equal(t, "quiz-1", quiz.ID)
}

func TestTokenCommand(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte("auth:\n  secret: a-long-enough-test-secret\n  issuer: quiz-admin\n"), 0o600))

	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"token", "--config", path, "--subject", "host-7"})
	req.NoError(cmd.Execute())

	identity, err := auth.NewVerifier("a-long-enough-test-secret", "quiz-admin").Verify(strings.TrimSpace(out.String()))
	req.NoError(err)
	req.Equal("host-7", identity.Subject)
	req.True(identity.Admin)
}
