package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"live-quiz-service/internal/domain"
)

// ReadQuizFile parses one quiz document. YAML is a superset of JSON, so both work.
func ReadQuizFile(path string) (domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Quiz{}, err
	}
	var quiz domain.Quiz
	if err := yaml.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if quiz.ID == "" {
		quiz.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if len(quiz.Questions) == 0 {
		return domain.Quiz{}, fmt.Errorf("%s: %w", path, domain.ErrNoQuestions)
	}
	return quiz, nil
}

// LoadQuizDir reads every .yaml, .yml and .json file in dir, keyed by quiz id.
func LoadQuizDir(dir string) (map[string]domain.Quiz, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	quizzes := make(map[string]domain.Quiz)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		quiz, err := ReadQuizFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		quizzes[quiz.ID] = quiz
	}
	return quizzes, nil
}
