package cli

import (
	"fmt"
	"os"

	"github.com/mama165/sdk-go/logs"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	"live-quiz-service/internal/infra/redis"
)

// NewImportQuizCmd upserts YAML or JSON quiz files into Postgres.
func NewImportQuizCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import-quiz <file-or-dir>...",
		Short: "Import quiz files into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logs.GetLoggerFromString(cfg.Log.Level)
			if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
				return err
			}

			quizzes, err := readQuizzes(args)
			if err != nil {
				return err
			}

			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()
			if err := postgres.NewQuizImporter(db).Upsert(ctx, quizzes...); err != nil {
				return err
			}

			// cached copies would otherwise outlive the import
			if cfg.Redis.Addr != "" {
				client := goredis.NewClient(&goredis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer client.Close()
				cache := redis.NewQuizRepository(client, nil, 0)
				for _, quiz := range quizzes {
					if err := cache.Invalidate(ctx, quiz.ID); err != nil {
						log.Warn("cached quiz not invalidated", "quiz", quiz.ID, "error", err)
					}
				}
			}

			for _, quiz := range quizzes {
				log.Info("quiz imported", "quiz", quiz.ID, "code", quiz.Code, "questions", len(quiz.Questions))
			}
			return nil
		},
	}
}

func readQuizzes(paths []string) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			quiz, err := memory.ReadQuizFile(path)
			if err != nil {
				return nil, err
			}
			quizzes = append(quizzes, quiz)
			continue
		}
		found, err := memory.LoadQuizDir(path)
		if err != nil {
			return nil, err
		}
		for _, quiz := range found {
			quizzes = append(quizzes, quiz)
		}
	}
	if len(quizzes) == 0 {
		return nil, fmt.Errorf("no quiz files in %v", paths)
	}
	return quizzes, nil
}
