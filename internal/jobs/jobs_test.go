package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"dashfin/internal/auth"
	"dashfin/internal/database"
	"dashfin/internal/models"
	"dashfin/internal/testutil"
)

func init() {
	auth.PasswordCost = bcrypt.MinCost
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRehashPasswordsJob(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	hashed, err := auth.HashPassword("ja-hash")
	require.NoError(t, err)
	testutil.CreateUser(t, db, "5511999990000", "Ana", "ana@example.com", "plaintext")
	testutil.CreateUser(t, db, "5511888880000", "Beto", "beto@example.com", hashed)

	id, err := db.CreateJob(ctx, JobRehashPasswords, struct{}{})
	require.NoError(t, err)

	w := NewWorker(db, quietLogger(), time.Millisecond)
	w.Register(JobRehashPasswords, RehashPasswordsHandler())
	assert.True(t, w.RunOnce())
	assert.False(t, w.RunOnce(), "queue drained")

	job, err := db.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "completed", job.Status)

	var result RehashResult
	require.NoError(t, json.Unmarshal([]byte(job.Result), &result))
	assert.Equal(t, RehashResult{UsersChecked: 2, UsersRehashed: 1}, result)

	ana, err := db.GetUserByPhone(ctx, "5511999990000")
	require.NoError(t, err)
	assert.True(t, auth.IsHashed(ana.Senha))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(ana.Senha), []byte("plaintext")))

	beto, err := db.GetUserByPhone(ctx, "5511888880000")
	require.NoError(t, err)
	assert.Equal(t, hashed, beto.Senha, "already hashed passwords are left alone")
}

func TestWorkerRetriesThenFails(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	id, err := db.CreateJob(ctx, "flaky", nil)
	require.NoError(t, err)

	calls := 0
	w := NewWorker(db, quietLogger(), time.Millisecond)
	w.Register("flaky", func(ctx context.Context, job *models.Job, db *database.DB) error {
		calls++
		return errors.New("boom")
	})

	for w.RunOnce() {
	}

	assert.Equal(t, 3, calls)
	job, err := db.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "failed", job.Status)
	assert.Equal(t, "boom", job.Result)
}

func TestWorkerUnknownType(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	id, err := db.CreateJob(ctx, "mystery", nil)
	require.NoError(t, err)

	NewWorker(db, quietLogger(), 0).RunOnce()

	job, err := db.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "failed", job.Status)
	assert.Contains(t, job.Result, "unknown job type")
}

func TestWorkerStartStop(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	testutil.CreateUser(t, db, "5511999990000", "Ana", "ana@example.com", "x")
	require.NoError(t, db.CreateSession(ctx, "old", "5511999990000", time.Now().Add(-time.Hour)))

	id, err := db.CreateJob(ctx, JobCleanSessions, nil)
	require.NoError(t, err)

	w := NewWorker(db, quietLogger(), 10*time.Millisecond)
	w.Register(JobCleanSessions, CleanSessionsHandler(auth.New(db, true)))
	w.Start()

	assert.Eventually(t, func() bool {
		job, err := db.GetJob(ctx, id)
		return err == nil && job.Status == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	w.Stop()

	_, _, err = db.GetSession(ctx, "old")
	assert.ErrorIs(t, err, database.ErrNotFound)
}
