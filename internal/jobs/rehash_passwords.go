package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"dashfin/internal/auth"
	"dashfin/internal/database"
	"dashfin/internal/logger"
	"dashfin/internal/models"
)

const (
	JobRehashPasswords = "rehash_passwords"
	JobCleanSessions   = "clean_sessions"
)

// RehashResult is stored as the result of a rehash_passwords job
type RehashResult struct {
	UsersChecked  int `json:"users_checked"`
	UsersRehashed int `json:"users_rehashed"`
}

// RehashPasswords replaces every legacy plaintext password with its
// bcrypt hash. progress, if set, receives a 0-100 completion estimate.
func RehashPasswords(ctx context.Context, db *database.DB, progress func(int)) (RehashResult, error) {
	l := logger.FromContext(ctx)

	users, err := db.ListUsers(ctx)
	if err != nil {
		return RehashResult{}, fmt.Errorf("list users: %w", err)
	}

	result := RehashResult{UsersChecked: len(users)}
	for i, u := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if u.Senha != "" && !auth.IsHashed(u.Senha) {
			hash, err := auth.HashPassword(u.Senha)
			if err != nil {
				return result, fmt.Errorf("hash password for %s: %w", u.Telefone, err)
			}
			if err := db.SetUserPassword(ctx, u.Telefone, hash); err != nil {
				return result, err
			}
			result.UsersRehashed++
			l.Info("password_rehashed", "telefone", u.Telefone)
		}
		if progress != nil {
			progress((i + 1) * 100 / len(users))
		}
	}
	return result, nil
}

// RehashPasswordsHandler creates a job handler running RehashPasswords
func RehashPasswordsHandler() JobHandler {
	return func(ctx context.Context, job *models.Job, db *database.DB) error {
		l := logger.FromContext(ctx)

		result, err := RehashPasswords(ctx, db, func(p int) {
			if err := db.UpdateJobProgress(ctx, job.ID, p); err != nil {
				l.Warn("job_progress_error", "error", err.Error())
			}
		})
		if err != nil {
			return err
		}

		resultJSON, _ := json.Marshal(result)
		return db.CompleteJob(ctx, job.ID, string(resultJSON))
	}
}

// CleanSessionsHandler creates a job handler removing expired sessions
func CleanSessionsHandler(a *auth.Auth) JobHandler {
	return func(ctx context.Context, job *models.Job, db *database.DB) error {
		if err := a.CleanExpiredSessions(ctx); err != nil {
			return fmt.Errorf("clean sessions: %w", err)
		}
		return db.CompleteJob(ctx, job.ID, "")
	}
}
