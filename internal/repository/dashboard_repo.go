package repository

import (
	"context"
	"time"

	"hrm/internal/domain"
	"hrm/internal/models"

	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalEmployees          int64 `json:"total_employees"`
	ActiveEmployees         int64 `json:"active_employees"`
	PresentToday            int64 `json:"present_today"`
	LateToday               int64 `json:"late_today"`
	OnLeaveToday            int64 `json:"on_leave_today"`
	PendingLeaveRequests    int64 `json:"pending_leave_requests"`
	PendingEmployeeRequests int64 `json:"pending_employee_requests"`
	PendingEmails           int64 `json:"pending_emails"`
	FailedEmails            int64 `json:"failed_emails"`
}

type DashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Stats counts records inside scope for the given day. scope is called with the
// user column of each counted table.
func (r *DashboardRepository) Stats(ctx context.Context, scope func(column string) func(*gorm.DB) *gorm.DB, day time.Time) (*DashboardStats, error) {
	var s DashboardStats
	today := day.Format(domain.DateLayout)
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	db := r.db.WithContext(ctx)
	steps := []struct {
		q   *gorm.DB
		dst *int64
	}{
		{db.Model(&models.User{}).Scopes(scope("users.id")), &s.TotalEmployees},
		{db.Model(&models.User{}).Scopes(scope("users.id")).Where("is_active = ?", true), &s.ActiveEmployees},
		{db.Model(&models.Attendance{}).Scopes(scope("attendances.user_id")).Where("date = ?", today), &s.PresentToday},
		{db.Model(&models.Attendance{}).Scopes(scope("attendances.user_id")).Where("date = ? AND status = ?", today, domain.AttendanceLate), &s.LateToday},
		{db.Model(&models.LeaveRequest{}).Scopes(scope("leave_requests.user_id")).
			Where("status = ? AND start_date <= ? AND end_date >= ?", domain.RequestStatusApproved, dayStart, dayStart), &s.OnLeaveToday},
		{db.Model(&models.LeaveRequest{}).Scopes(scope("leave_requests.user_id")).Where("status = ?", domain.RequestStatusPending), &s.PendingLeaveRequests},
		{db.Model(&models.EmployeeRequest{}).Scopes(scope("employee_requests.user_id")).Where("status = ?", domain.RequestStatusPending), &s.PendingEmployeeRequests},
	}
	for _, step := range steps {
		if err := step.q.Count(step.dst).Error; err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// QueueCounts fills the email queue figures, shown only to queue operators.
func (r *DashboardRepository) QueueCounts(ctx context.Context, s *DashboardStats) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.EmailLog{}).Where("status = ?", domain.EmailStatusPending).Count(&s.PendingEmails).Error; err != nil {
		return err
	}
	return db.Model(&models.EmailLog{}).Where("status = ?", domain.EmailStatusFailed).Count(&s.FailedEmails).Error
}
