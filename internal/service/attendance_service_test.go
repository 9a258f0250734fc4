package service

import (
	"context"
	"testing"
	"time"

	"hrm/internal/domain"
	"hrm/internal/repository"
	"hrm/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceFlow(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAttendanceService(repository.NewAttendanceRepository(db), NewSettingsService(repository.NewSettingRepository(db)))
	clock := time.Date(2030, 3, 4, 9, 10, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	emp := testutil.CreateUser(t, db, domain.RoleEmployee, "emp@example.com")
	ctx := context.Background()

	_, err := svc.CheckOut(ctx, emp, AttendanceInput{})
	assert.ErrorIs(t, err, ErrNotCheckedIn)

	a, err := svc.CheckIn(ctx, emp, AttendanceInput{Note: " wfh "}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "2030-03-04", a.Date)
	assert.Equal(t, domain.AttendancePresent, a.Status)
	assert.Equal(t, "wfh", a.Note)

	_, err = svc.CheckIn(ctx, emp, AttendanceInput{}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)

	clock = clock.Add(8*time.Hour + 30*time.Minute)
	out, err := svc.CheckOut(ctx, emp, AttendanceInput{})
	require.NoError(t, err)
	assert.Equal(t, 510, out.WorkMinutes)

	_, err = svc.CheckOut(ctx, emp, AttendanceInput{})
	assert.ErrorIs(t, err, ErrAlreadyCheckedOut)
	_, err = svc.CheckIn(ctx, emp, AttendanceInput{}, "10.0.0.1")
	assert.ErrorIs(t, err, ErrAlreadyCheckedOutToday)

	today, err := svc.Today(ctx, emp)
	require.NoError(t, err)
	require.NotNil(t, today)
	assert.NotNil(t, today.CheckOut)
}

func TestAttendanceLateAfterGrace(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAttendanceService(repository.NewAttendanceRepository(db), NewSettingsService(repository.NewSettingRepository(db)))
	svc.now = func() time.Time { return time.Date(2030, 3, 4, 9, 16, 0, 0, time.UTC) }
	emp := testutil.CreateUser(t, db, domain.RoleEmployee, "late@example.com")

	a, err := svc.CheckIn(context.Background(), emp, AttendanceInput{}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.AttendanceLate, a.Status)

	today, err := NewAttendanceService(repository.NewAttendanceRepository(db), svc.settings).Today(context.Background(),
		testutil.CreateUser(t, db, domain.RoleEmployee, "absent@example.com"))
	require.NoError(t, err)
	assert.Nil(t, today)
}
