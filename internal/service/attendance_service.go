package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrAlreadyCheckedIn       = domain.Invalid("check_in", "Already checked in")
	ErrAlreadyCheckedOutToday = domain.Invalid("check_in", "Already checked out for today")
	ErrNotCheckedIn           = domain.Invalid("check_out", "Not checked in")
	ErrAlreadyCheckedOut      = domain.Invalid("check_out", "Already checked out")
)

type AttendanceInput struct {
	Note string `json:"note" binding:"max=512"`
}

type AttendanceService struct {
	repo     *repository.AttendanceRepository
	settings *SettingsService
	now      func() time.Time
}

func NewAttendanceService(repo *repository.AttendanceRepository, settings *SettingsService) *AttendanceService {
	return &AttendanceService{repo: repo, settings: settings, now: time.Now}
}

// CheckIn opens today's record for the actor. Arrivals after the configured
// start time plus grace are marked LATE.
func (s *AttendanceService) CheckIn(ctx context.Context, actor *models.User, in AttendanceInput, ip string) (*models.Attendance, error) {
	now := s.now()
	day := now.Format(domain.DateLayout)
	existing, err := s.repo.GetByUserDate(ctx, actor.ID, day)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.CheckOut != nil {
			return nil, ErrAlreadyCheckedOutToday
		}
		return nil, ErrAlreadyCheckedIn
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	a := &models.Attendance{
		UserID:    actor.ID,
		Date:      day,
		CheckIn:   &now,
		Status:    attendanceStatus(now, settings.Attendance),
		Note:      strings.TrimSpace(in.Note),
		IPAddress: ip,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		// lost a race against a concurrent check-in for the same day
		if again, lookupErr := s.repo.GetByUserDate(ctx, actor.ID, day); lookupErr == nil && again != nil {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, err
	}
	return a, nil
}

// attendanceStatus compares t with the work start time on t's own calendar day.
func attendanceStatus(t time.Time, cfg models.AttendanceSettings) string {
	start, err := time.Parse("15:04", cfg.WorkStartTime)
	if err != nil {
		return domain.AttendancePresent
	}
	deadline := time.Date(t.Year(), t.Month(), t.Day(), start.Hour(), start.Minute(), 0, 0, t.Location()).
		Add(time.Duration(cfg.LateGraceMinutes) * time.Minute)
	if t.After(deadline) {
		return domain.AttendanceLate
	}
	return domain.AttendancePresent
}

func (s *AttendanceService) CheckOut(ctx context.Context, actor *models.User, in AttendanceInput) (*models.Attendance, error) {
	now := s.now()
	a, err := s.repo.GetByUserDate(ctx, actor.ID, now.Format(domain.DateLayout))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotCheckedIn
		}
		return nil, err
	}
	if a.CheckIn == nil {
		return nil, ErrNotCheckedIn
	}
	if a.CheckOut != nil {
		return nil, ErrAlreadyCheckedOut
	}
	a.CheckOut = &now
	a.WorkMinutes = int(now.Sub(*a.CheckIn).Minutes())
	if note := strings.TrimSpace(in.Note); note != "" {
		a.Note = note
	}
	ok, err := s.repo.CheckOut(ctx, a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyCheckedOut
	}
	return a, nil
}

// Today returns the actor's record for the current day, or nil.
func (s *AttendanceService) Today(ctx context.Context, actor *models.User) (*models.Attendance, error) {
	a, err := s.repo.GetByUserDate(ctx, actor.ID, s.now().Format(domain.DateLayout))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return a, err
}

func (s *AttendanceService) List(ctx context.Context, actor *models.User, f repository.AttendanceFilter, p Page) (*Paged[models.Attendance], error) {
	scope, err := s.settings.ScopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	scope = scope.Require(actor, domain.PermAttendanceViewAll)
	list, total, err := s.repo.List(ctx, scope.Filter("attendances.user_id"), f, p.Page, p.Limit)
	if err != nil {
		return nil, err
	}
	return paged(list, total, p), nil
}
