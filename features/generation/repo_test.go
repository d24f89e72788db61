package generation

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generationColumns() []string {
	return []string{"id", "project_id", "brief", "brand_tone", "audience", "objective", "channels", "status", "short_form", "long_form", "cta", "model", "tokens_used", "error", "created_at", "updated_at"}
}

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepo(db)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO generation_records").
		WithArgs("p1", "launch brief", "playful", "developers", "signups", sqlmock.AnyArg(), StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("gen-1", now, now))

	g := &Generation{
		ProjectID: "p1",
		Brief:     "launch brief",
		BrandTone: "playful",
		Audience:  "developers",
		Objective: "signups",
		Channels:  []string{"twitter"},
		Status:    StatusPending,
	}
	err = repo.Save(context.Background(), g)
	assert.NoError(t, err)
	assert.Equal(t, "gen-1", g.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepo(db)
	now := time.Now()

	rows := sqlmock.NewRows(generationColumns()).
		AddRow("gen-1", "p1", "brief", "", "", "", "{twitter,linkedin}", StatusCompleted, "short", "long", "cta", "gemini-1.5-flash", 512, "", now, now)
	mock.ExpectQuery("SELECT (.+) FROM generation_records WHERE id").WithArgs("gen-1").WillReturnRows(rows)

	g, err := repo.Get(context.Background(), "gen-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, g.Status)
	assert.Equal(t, []string{"twitter", "linkedin"}, g.Channels)
	assert.Equal(t, 512, g.TokensUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_TryMarkProcessing(t *testing.T) {
	t.Run("Claims Pending Job", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewPostgresRepo(db)
		mock.ExpectExec("UPDATE generation_records SET status").
			WithArgs(StatusProcessing, "gen-1", StatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		claimed, err := repo.TryMarkProcessing(context.Background(), "gen-1")
		assert.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("Misses Already Claimed Job", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewPostgresRepo(db)
		mock.ExpectExec("UPDATE generation_records SET status").
			WithArgs(StatusProcessing, "gen-1", StatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))

		claimed, err := repo.TryMarkProcessing(context.Background(), "gen-1")
		assert.NoError(t, err)
		assert.False(t, claimed)
	})
}

func TestPostgresRepo_MarkCompleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepo(db)
	mock.ExpectExec("UPDATE generation_records SET status").
		WithArgs(StatusCompleted, "short", "long", "cta", "gemini-1.5-flash", 512, "gen-1", StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.MarkCompleted(context.Background(), "gen-1", "short", "long", "cta", "gemini-1.5-flash", 512)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpdateContent(t *testing.T) {
	t.Run("Updates Completed Job", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewPostgresRepo(db)
		mock.ExpectExec("UPDATE generation_records SET short_form").
			WithArgs("s", "l", "c", "gen-1", StatusCompleted).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateContent(context.Background(), "gen-1", "s", "l", "c"))
	})

	t.Run("Rejects Non Completed Job", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewPostgresRepo(db)
		mock.ExpectExec("UPDATE generation_records SET short_form").
			WithArgs("s", "l", "c", "gen-1", StatusCompleted).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.UpdateContent(context.Background(), "gen-1", "s", "l", "c")
		assert.ErrorIs(t, err, ErrNotEditable)
	})
}
