package service

import (
	"context"
	"errors"
	"testing"

	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/repository"
	"hrm/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type leaveFixture struct {
	db      *gorm.DB
	svc     *LeaveService
	events  *recordedEvents
	inbox   *recordedInbox
	hr      *models.User
	manager *models.User
	emp     *models.User
	paid    *models.LeaveType
	unpaid  *models.LeaveType
}

func newLeaveFixture(t *testing.T) *leaveFixture {
	db := testutil.NewDB(t)
	f := &leaveFixture{db: db, events: &recordedEvents{}, inbox: &recordedInbox{}}
	settings := NewSettingsService(repository.NewSettingRepository(db))
	f.svc = NewLeaveService(testConfig(), db, repository.NewLeaveRepository(db), repository.NewUserRepository(db),
		settings, f.events, f.inbox)
	f.hr = testutil.CreateUser(t, db, domain.RoleHR, "hr@example.com")
	f.manager = testutil.CreateUser(t, db, domain.RoleManager, "manager@example.com")
	f.emp = testutil.CreateUser(t, db, domain.RoleEmployee, "emp@example.com", testutil.WithManager(f.manager.ID))
	f.paid = testutil.CreateLeaveType(t, db, "ANNUAL", true)
	f.unpaid = testutil.CreateLeaveType(t, db, "UNPAID", false)
	return f
}

func (f *leaveFixture) allocate(t *testing.T, total float64) {
	require.NoError(t, f.db.Create(&models.LeaveAllocation{
		UserID: f.emp.ID, LeaveTypeID: f.paid.ID, Year: 2030, TotalDays: total,
	}).Error)
}

func (f *leaveFixture) allocation(t *testing.T) models.LeaveAllocation {
	var a models.LeaveAllocation
	require.NoError(t, f.db.Where("user_id = ? AND leave_type_id = ?", f.emp.ID, f.paid.ID).First(&a).Error)
	return a
}

func TestWorkingDays(t *testing.T) {
	fri, _ := parseDay("start_date", "2030-03-08")
	mon, _ := parseDay("end_date", "2030-03-11")
	sat, _ := parseDay("start_date", "2030-03-09")
	sun, _ := parseDay("end_date", "2030-03-10")

	assert.Equal(t, 2.0, WorkingDays(fri, mon))
	assert.Equal(t, 0.0, WorkingDays(sat, sun))
	assert.Equal(t, 1.0, WorkingDays(fri, fri))
}

func TestCreateRequest_Validation(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   LeaveRequestInput
		want error
	}{
		{"end before start", LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "2030-03-08", EndDate: "2030-03-04"}, ErrInvalidDateRange},
		{"weekend only", LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "2030-03-09", EndDate: "2030-03-10"}, ErrNoWorkingDays},
		{"spans years", LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "2030-12-30", EndDate: "2031-01-02"}, ErrSpansYears},
		{"paid without allocation", LeaveRequestInput{LeaveTypeID: f.paid.ID, StartDate: "2030-03-04", EndDate: "2030-03-05"}, ErrNoAllocation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateRequest(ctx, f.emp, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.svc.CreateRequest(ctx, f.emp, LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "03/04/2030", EndDate: "2030-03-05"})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "start_date must be YYYY-MM-DD", ve.Message)
}

func TestCreateRequest_NotifiesAndRejectsOverlap(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := context.Background()

	lr, err := f.svc.CreateRequest(ctx, f.emp, LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "2030-03-08", EndDate: "2030-03-11", Reason: " family "})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, lr.Status)
	assert.Equal(t, 2.0, lr.Days)
	assert.Equal(t, "family", lr.Reason)

	require.Len(t, f.events.events, 1)
	ev := f.events.events[0]
	assert.Equal(t, domain.NotifyLeaveSubmitted, ev.Type)
	assert.Equal(t, f.emp.ID, ev.SubjectUserID)
	assert.Equal(t, "emp", ev.Variables["employeeName"])
	assert.Equal(t, "2030-03-08", ev.Variables["startDate"])
	assert.Equal(t, 2.0, ev.Attributes.LeaveDays)

	require.Len(t, f.inbox.calls, 1)
	assert.Equal(t, []uint{f.manager.ID}, f.inbox.calls[0].UserIDs)

	_, err = f.svc.CreateRequest(ctx, f.emp, LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "2030-03-11", EndDate: "2030-03-12"})
	assert.ErrorIs(t, err, ErrLeaveOverlap)
}

func TestApprove_DeductsPaidAllocation(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := context.Background()
	f.allocate(t, 10)

	lr, err := f.svc.CreateRequest(ctx, f.emp, LeaveRequestInput{LeaveTypeID: f.paid.ID, StartDate: "2030-03-04", EndDate: "2030-03-08"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, lr.Days)

	approved, err := f.svc.Approve(ctx, f.hr, lr.ID, ReviewInput{Note: "enjoy"})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedByID)
	assert.Equal(t, f.hr.ID, *approved.ReviewedByID)
	assert.Equal(t, "enjoy", approved.ReviewNote)

	a := f.allocation(t)
	assert.Equal(t, 5.0, a.UsedDays)
	assert.Equal(t, []domain.NotificationType{domain.NotifyLeaveSubmitted, domain.NotifyLeaveApproved}, f.events.types())

	_, err = f.svc.Approve(ctx, f.hr, lr.ID, ReviewInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 5.0, f.allocation(t).UsedDays)
}

func TestApprove_InsufficientBalanceLeavesRequestPending(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := context.Background()
	f.allocate(t, 5)

	first, err := f.svc.CreateRequest(ctx, f.emp, LeaveRequestInput{LeaveTypeID: f.paid.ID, StartDate: "2030-03-04", EndDate: "2030-03-06"})
	require.NoError(t, err)
	second, err := f.svc.CreateRequest(ctx, f.emp, LeaveRequestInput{LeaveTypeID: f.paid.ID, StartDate: "2030-03-11", EndDate: "2030-03-13"})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.hr, first.ID, ReviewInput{})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.hr, second.ID, ReviewInput{})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	got, err := f.svc.GetRequest(ctx, f.hr, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, got.Status)
	assert.Equal(t, 3.0, f.allocation(t).UsedDays)
}

func TestReview_Permissions(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := context.Background()

	lr, err := f.svc.CreateRequest(ctx, f.emp, LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "2030-03-04", EndDate: "2030-03-04"})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, f.emp, lr.ID, ReviewInput{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.Approve(ctx, f.manager, lr.ID, ReviewInput{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	own, err := f.svc.CreateRequest(ctx, f.hr, LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "2030-03-04", EndDate: "2030-03-04"})
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, f.hr, own.ID, ReviewInput{})
	assert.ErrorIs(t, err, ErrOwnRequestReview)
}

func TestCancel(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := context.Background()

	lr, err := f.svc.CreateRequest(ctx, f.emp, LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "2030-03-04", EndDate: "2030-03-05"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.hr, lr.ID)
	assert.ErrorIs(t, err, ErrOnlyOwnerCancels)

	cancelled, err := f.svc.Cancel(ctx, f.emp, lr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, f.emp, lr.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// a cancelled request no longer blocks the same dates
	_, err = f.svc.CreateRequest(ctx, f.emp, LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "2030-03-04", EndDate: "2030-03-05"})
	assert.NoError(t, err)
}

func TestRequestVisibility(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := context.Background()
	other := testutil.CreateUser(t, f.db, domain.RoleEmployee, "other@example.com")

	lr, err := f.svc.CreateRequest(ctx, f.emp, LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "2030-03-04", EndDate: "2030-03-05"})
	require.NoError(t, err)

	_, err = f.svc.GetRequest(ctx, other, lr.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	page, err := f.svc.ListRequests(ctx, other, repository.LeaveFilter{}, NewPage(1, 20))
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = f.svc.ListRequests(ctx, f.hr, repository.LeaveFilter{}, NewPage(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, err = f.svc.GetRequest(ctx, f.hr, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteTypeGuard(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRequest(ctx, f.emp, LeaveRequestInput{LeaveTypeID: f.unpaid.ID, StartDate: "2030-03-04", EndDate: "2030-03-05"})
	require.NoError(t, err)

	err = f.svc.DeleteType(ctx, f.hr, f.unpaid.ID)
	assert.ErrorIs(t, err, ErrLeaveTypeInUse)
	assert.NoError(t, f.svc.DeleteType(ctx, f.hr, f.paid.ID))
}

func TestAdjustAllocation(t *testing.T) {
	f := newLeaveFixture(t)
	ctx := context.Background()
	f.allocate(t, 10)
	a := f.allocation(t)
	require.NoError(t, f.db.Model(&a).Update("used_days", 4).Error)

	delta := 2.0
	got, err := f.svc.AdjustAllocation(ctx, f.hr, a.ID, AllocationAdjustment{Delta: &delta})
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.TotalDays)

	low := 3.0
	_, err = f.svc.AdjustAllocation(ctx, f.hr, a.ID, AllocationAdjustment{TotalDays: &low})
	assert.ErrorIs(t, err, ErrAllocationBelowUsed)

	_, err = f.svc.AdjustAllocation(ctx, f.emp, a.ID, AllocationAdjustment{Delta: &delta})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
