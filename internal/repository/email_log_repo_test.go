package repository

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"hrm/internal/domain"
	"hrm/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestEmailLogRepository_ClaimIsConditional(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"claim won", 1, true},
		{"claim lost", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewEmailLogRepository(db)

			mock.ExpectExec("UPDATE `email_logs` SET .*`status`=.* WHERE .*id = \\? AND status = \\?").
				WithArgs(sqlmock.AnyArg(), domain.EmailStatusProcessing, sqlmock.AnyArg(), sqlmock.AnyArg(), domain.EmailStatusPending).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.Claim(context.Background(), 42, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEmailLogRepository_RequeueOnlyFromFailed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmailLogRepository(db)

	mock.ExpectExec("UPDATE `email_logs` SET .* WHERE .*id = \\? AND status = \\? AND last_error <> \\?").
		WithArgs(sqlmock.AnyArg(), domain.EmailStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg(), domain.EmailStatusFailed, domain.EmailOutcomeUnknown).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Requeue(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailLogRepository_ReleaseStaleMarksOutcomeUnknown(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmailLogRepository(db)
	cutoff := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE `email_logs` SET .* WHERE .*status = \\? AND claimed_at < \\?").
		WithArgs(domain.EmailOutcomeUnknown, domain.EmailStatusFailed, sqlmock.AnyArg(), domain.EmailStatusProcessing, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ReleaseStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"ascii", "abcdef", 3, "abc"},
		{"keeps whole rune", "aé", 3, "aé"},
		{"drops split rune", "aé", 2, "a"},
		{"multibyte run", "日本語", 7, "日本"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestEmailLogRepository_CreateClipsSubject(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmailLogRepository(db)
	long := strings.Repeat("é", 200)

	mock.ExpectExec("INSERT INTO `email_logs`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	e := &models.EmailLog{RecipientEmail: "a@example.com", Type: "WELCOME", Subject: long, Status: domain.EmailStatusPending}
	require.NoError(t, repo.Create(context.Background(), e))
	assert.LessOrEqual(t, len(e.Subject), maxSubjectBytes)
	assert.True(t, utf8.ValidString(e.Subject))
	assert.NoError(t, mock.ExpectationsWereMet())
}
