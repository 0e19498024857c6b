package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID        string      `bun:"id,pk"`
	Code      *string     `bun:"code"`
	Name      string      `bun:"name"`
	Data      domain.Quiz `bun:"data,type:jsonb"`
	UpdatedAt time.Time   `bun:"updated_at"`
}

// QuizImporter writes quiz documents so rooms can be started from them by id or code.
type QuizImporter struct {
	db *bun.DB
}

func NewQuizImporter(db *bun.DB) *QuizImporter {
	return &QuizImporter{db: db}
}

// Upsert inserts the quizzes or replaces existing ones with the same id, in one transaction.
func (i *QuizImporter) Upsert(ctx context.Context, quizzes ...domain.Quiz) error {
	return i.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, quiz := range quizzes {
			if len(quiz.Questions) == 0 {
				return fmt.Errorf("quiz %s: %w", quiz.ID, domain.ErrNoQuestions)
			}
			row := &quizRow{
				ID:        quiz.ID,
				Name:      quiz.Name,
				Data:      quiz,
				UpdatedAt: time.Now().UTC(),
			}
			if quiz.Code != "" {
				code := quiz.Code
				row.Code = &code
			}
			_, err := tx.NewInsert().
				Model(row).
				On("CONFLICT (id) DO UPDATE").
				Set("code = EXCLUDED.code").
				Set("name = EXCLUDED.name").
				Set("data = EXCLUDED.data").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("upsert quiz %s: %w", quiz.ID, err)
			}
		}
		return nil
	})
}
