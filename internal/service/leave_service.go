package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hrm/config"
	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/notify"
	"hrm/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrLeaveTypeTaken      = domain.Invalid("name", "A leave type with this name or code already exists")
	ErrLeaveTypeInUse      = domain.Invalid("id", "Cannot delete leave type with existing leave requests.")
	ErrLeaveTypeInactive   = domain.Invalid("leave_type_id", "Leave type is not available")
	ErrInvalidDateRange    = domain.Invalid("end_date", "End date must be on or after start date")
	ErrNoWorkingDays       = domain.Invalid("end_date", "The selected range contains no working days")
	ErrSpansYears          = domain.Invalid("end_date", "Leave requests cannot span calendar years")
	ErrLeaveOverlap        = domain.Invalid("start_date", "You already have a leave request for these dates")
	ErrNoAllocation        = domain.Invalid("leave_type_id", "No leave allocation for this leave type and year")
	ErrInsufficientBalance = domain.Invalid("days", "Insufficient leave balance")
	ErrAllocationExists    = domain.Invalid("leave_type_id", "Allocation already exists for this user, leave type and year")
	ErrAllocationBelowUsed = domain.Invalid("total_days", "Total days cannot be less than days already used")
	ErrOnlyOwnerCancels    = domain.Forbidden("Only the requester can cancel this request")
	ErrOwnRequestReview    = domain.Forbidden("You cannot review your own request")
)

// EventNotifier dispatches notification events. *notify.Dispatcher implements it.
type EventNotifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// Inbox writes in-app notifications. *NotificationService implements it.
type Inbox interface {
	Notify(ctx context.Context, userIDs []uint, notifType, title, body string, data map[string]interface{})
}

type LeaveTypeInput struct {
	Name        string  `json:"name" binding:"required,max=100"`
	Code        string  `json:"code" binding:"required,max=32"`
	DefaultDays float64 `json:"default_days" binding:"gte=0,lte=366"`
	IsPaid      *bool   `json:"is_paid"`
	IsActive    *bool   `json:"is_active"`
}

type AllocationInput struct {
	UserID      uint    `json:"user_id" binding:"required"`
	LeaveTypeID uint    `json:"leave_type_id" binding:"required"`
	Year        int     `json:"year" binding:"required,gte=2000,lte=2100"`
	TotalDays   float64 `json:"total_days" binding:"gte=0,lte=366"`
}

// AllocationAdjustment sets TotalDays, or adds Delta to it when TotalDays is nil.
type AllocationAdjustment struct {
	TotalDays *float64 `json:"total_days" binding:"omitempty,gte=0,lte=366"`
	Delta     *float64 `json:"delta"`
}

type LeaveRequestInput struct {
	LeaveTypeID uint   `json:"leave_type_id" binding:"required"`
	StartDate   string `json:"start_date" binding:"required"`
	EndDate     string `json:"end_date" binding:"required"`
	Reason      string `json:"reason" binding:"max=2000"`
}

type ReviewInput struct {
	Note string `json:"note" binding:"max=512"`
}

type LeaveService struct {
	cfg      *config.Config
	db       *gorm.DB
	leaves   *repository.LeaveRepository
	users    *repository.UserRepository
	settings *SettingsService
	events   EventNotifier
	inbox    Inbox
	now      func() time.Time
}

func NewLeaveService(cfg *config.Config, db *gorm.DB, leaves *repository.LeaveRepository, users *repository.UserRepository,
	settings *SettingsService, events EventNotifier, inbox Inbox) *LeaveService {
	return &LeaveService{cfg: cfg, db: db, leaves: leaves, users: users, settings: settings, events: events, inbox: inbox, now: time.Now}
}

// Leave types

func (s *LeaveService) ListTypes(ctx context.Context, activeOnly bool) ([]models.LeaveType, error) {
	return s.leaves.ListTypes(ctx, activeOnly)
}

func (s *LeaveService) CreateType(ctx context.Context, actor *models.User, in LeaveTypeInput) (*models.LeaveType, error) {
	if !actor.Can(domain.PermLeaveConfigure) {
		return nil, domain.ErrForbidden
	}
	lt := &models.LeaveType{IsPaid: true, IsActive: true}
	if err := s.applyType(ctx, lt, in); err != nil {
		return nil, err
	}
	if err := s.leaves.CreateType(ctx, lt); err != nil {
		return nil, err
	}
	return lt, nil
}

func (s *LeaveService) UpdateType(ctx context.Context, actor *models.User, id uint, in LeaveTypeInput) (*models.LeaveType, error) {
	if !actor.Can(domain.PermLeaveConfigure) {
		return nil, domain.ErrForbidden
	}
	lt, err := s.leaves.GetType(ctx, id)
	if err != nil {
		return nil, notFound(err, "Leave type not found")
	}
	if err := s.applyType(ctx, lt, in); err != nil {
		return nil, err
	}
	if err := s.leaves.UpdateType(ctx, lt); err != nil {
		return nil, err
	}
	return lt, nil
}

func (s *LeaveService) applyType(ctx context.Context, lt *models.LeaveType, in LeaveTypeInput) error {
	name := strings.TrimSpace(in.Name)
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	taken, err := s.leaves.TypeNameExists(ctx, name, code, lt.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrLeaveTypeTaken
	}
	lt.Name, lt.Code, lt.DefaultDays = name, code, in.DefaultDays
	if in.IsPaid != nil {
		lt.IsPaid = *in.IsPaid
	}
	if in.IsActive != nil {
		lt.IsActive = *in.IsActive
	}
	return nil
}

func (s *LeaveService) DeleteType(ctx context.Context, actor *models.User, id uint) error {
	if !actor.Can(domain.PermLeaveConfigure) {
		return domain.ErrForbidden
	}
	if _, err := s.leaves.GetType(ctx, id); err != nil {
		return notFound(err, "Leave type not found")
	}
	n, err := s.leaves.CountRequestsByType(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrLeaveTypeInUse
	}
	return s.leaves.DeleteType(ctx, id)
}

// Allocations

func (s *LeaveService) ListAllocations(ctx context.Context, actor *models.User, userID uint, year int) ([]models.LeaveAllocation, error) {
	scope, err := s.settings.ScopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.leaves.ListAllocations(ctx, scope.Filter("leave_allocations.user_id"), userID, year)
}

func (s *LeaveService) CreateAllocation(ctx context.Context, actor *models.User, in AllocationInput) (*models.LeaveAllocation, error) {
	if !actor.Can(domain.PermLeaveAllocate) {
		return nil, domain.ErrForbidden
	}
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		return nil, refError(err, "user_id", "User not found")
	}
	if _, err := s.leaves.GetType(ctx, in.LeaveTypeID); err != nil {
		return nil, refError(err, "leave_type_id", "Leave type not found")
	}
	_, err := s.leaves.GetAllocation(ctx, in.UserID, in.LeaveTypeID, in.Year)
	if err == nil {
		return nil, ErrAllocationExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	a := &models.LeaveAllocation{UserID: in.UserID, LeaveTypeID: in.LeaveTypeID, Year: in.Year, TotalDays: in.TotalDays}
	if err := s.leaves.CreateAllocation(ctx, a); err != nil {
		return nil, err
	}
	return s.leaves.GetAllocationByID(ctx, a.ID)
}

// AdjustAllocation changes an allocation's total inside a transaction so a
// concurrent approval cannot push used days above the new total.
func (s *LeaveService) AdjustAllocation(ctx context.Context, actor *models.User, id uint, in AllocationAdjustment) (*models.LeaveAllocation, error) {
	if !actor.Can(domain.PermLeaveAllocate) {
		return nil, domain.ErrForbidden
	}
	if in.TotalDays == nil && in.Delta == nil {
		return nil, domain.Invalid("total_days", "total_days or delta is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.leaves.WithTx(tx)
		cur, err := repo.GetAllocationByID(ctx, id)
		if err != nil {
			return notFound(err, "Allocation not found")
		}
		a, err := repo.GetAllocationForUpdate(ctx, cur.UserID, cur.LeaveTypeID, cur.Year)
		if err != nil {
			return err
		}
		total := a.TotalDays
		if in.TotalDays != nil {
			total = *in.TotalDays
		} else {
			total += *in.Delta
		}
		if total < a.UsedDays {
			return ErrAllocationBelowUsed
		}
		a.TotalDays = total
		return repo.SaveAllocation(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return s.leaves.GetAllocationByID(ctx, id)
}

// Requests

// WorkingDays counts Monday to Friday dates in [start, end].
func WorkingDays(start, end time.Time) float64 {
	days := 0.0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

func parseDay(field, v string) (time.Time, error) {
	d, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		return time.Time{}, domain.Invalid(field, field+" must be YYYY-MM-DD")
	}
	return d, nil
}

func (s *LeaveService) CreateRequest(ctx context.Context, actor *models.User, in LeaveRequestInput) (*models.LeaveRequest, error) {
	start, err := parseDay("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDay("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	if start.Year() != end.Year() {
		return nil, ErrSpansYears
	}
	days := WorkingDays(start, end)
	if days <= 0 {
		return nil, ErrNoWorkingDays
	}
	lt, err := s.leaves.GetType(ctx, in.LeaveTypeID)
	if err != nil {
		return nil, refError(err, "leave_type_id", "Leave type not found")
	}
	if !lt.IsActive {
		return nil, ErrLeaveTypeInactive
	}
	overlap, err := s.leaves.HasOverlap(ctx, actor.ID, start, end)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, ErrLeaveOverlap
	}
	if lt.IsPaid {
		a, err := s.leaves.GetAllocation(ctx, actor.ID, lt.ID, start.Year())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNoAllocation
			}
			return nil, err
		}
		if a.Remaining() < days {
			return nil, ErrInsufficientBalance
		}
	}

	lr := &models.LeaveRequest{
		UserID:      actor.ID,
		LeaveTypeID: lt.ID,
		StartDate:   start,
		EndDate:     end,
		Days:        days,
		Reason:      strings.TrimSpace(in.Reason),
		Status:      domain.RequestStatusPending,
	}
	if err := s.leaves.CreateRequest(ctx, lr); err != nil {
		return nil, err
	}
	lr.LeaveType = lt
	lr.User = actor

	s.events.Notify(ctx, s.leaveEvent(domain.NotifyLeaveSubmitted, actor, lr, nil))
	if actor.ManagerID != nil {
		s.inbox.Notify(ctx, []uint{*actor.ManagerID}, string(domain.NotifyLeaveSubmitted), "New leave request",
			fmt.Sprintf("%s requested %g day(s) of %s", actor.Name, days, lt.Name),
			map[string]interface{}{"leave_request_id": lr.ID})
	}
	return lr, nil
}

func (s *LeaveService) leaveEvent(t domain.NotificationType, actor *models.User, lr *models.LeaveRequest, reviewer *models.User) notify.Event {
	var employee, typeName, typeCode string
	if lr.User != nil {
		employee = lr.User.Name
	}
	if lr.LeaveType != nil {
		typeName, typeCode = lr.LeaveType.Name, lr.LeaveType.Code
	}
	vars := map[string]interface{}{
		"employeeName": employee,
		"leaveType":    typeName,
		"days":         lr.Days,
		"startDate":    lr.StartDate.Format(domain.DateLayout),
		"endDate":      lr.EndDate.Format(domain.DateLayout),
		"reason":       lr.Reason,
		"reviewNote":   lr.ReviewNote,
		"link":         fmt.Sprintf("%s/leave/requests/%d", strings.TrimRight(s.cfg.Mail.AppURL, "/"), lr.ID),
	}
	if reviewer != nil {
		vars["reviewerName"] = reviewer.Name
	}
	return notify.Event{
		Type:          t,
		ActorID:       actor.ID,
		SubjectUserID: lr.UserID,
		Variables:     vars,
		Attributes:    notify.Attributes{LeaveDays: lr.Days, LeaveTypeCode: typeCode},
	}
}

func (s *LeaveService) ListRequests(ctx context.Context, actor *models.User, f repository.LeaveFilter, p Page) (*Paged[models.LeaveRequest], error) {
	scope, err := s.settings.ScopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	list, total, err := s.leaves.ListRequests(ctx, scope.Filter("leave_requests.user_id"), f, p.Page, p.Limit)
	if err != nil {
		return nil, err
	}
	return paged(list, total, p), nil
}

func (s *LeaveService) GetRequest(ctx context.Context, actor *models.User, id uint) (*models.LeaveRequest, error) {
	lr, err := s.leaves.GetRequest(ctx, id)
	if err != nil {
		return nil, notFound(err, "Leave request not found")
	}
	scope, err := s.settings.ScopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(lr.User) {
		return nil, domain.ErrForbidden
	}
	return lr, nil
}

// Approve marks a pending request APPROVED. Paid leave is deducted from the
// year's allocation in the same transaction.
func (s *LeaveService) Approve(ctx context.Context, actor *models.User, id uint, in ReviewInput) (*models.LeaveRequest, error) {
	return s.review(ctx, actor, id, domain.RequestStatusApproved, in.Note)
}

func (s *LeaveService) Reject(ctx context.Context, actor *models.User, id uint, in ReviewInput) (*models.LeaveRequest, error) {
	return s.review(ctx, actor, id, domain.RequestStatusRejected, in.Note)
}

func (s *LeaveService) review(ctx context.Context, actor *models.User, id uint, status, note string) (*models.LeaveRequest, error) {
	if !actor.Can(domain.PermLeaveReview) {
		return nil, domain.ErrForbidden
	}
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.leaves.WithTx(tx)
		lr, err := repo.GetRequest(ctx, id)
		if err != nil {
			return notFound(err, "Leave request not found")
		}
		if lr.UserID == actor.ID {
			return ErrOwnRequestReview
		}
		if lr.Status != domain.RequestStatusPending {
			return domain.ErrInvalidTransition
		}
		if status == domain.RequestStatusApproved && lr.LeaveType != nil && lr.LeaveType.IsPaid {
			a, err := repo.GetAllocationForUpdate(ctx, lr.UserID, lr.LeaveTypeID, lr.StartDate.Year())
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNoAllocation
				}
				return err
			}
			if a.Remaining() < lr.Days {
				return ErrInsufficientBalance
			}
			a.UsedDays += lr.Days
			if err := repo.SaveAllocation(ctx, a); err != nil {
				return err
			}
		}
		ok, err := repo.TransitionRequest(ctx, id, map[string]interface{}{
			"status":         status,
			"reviewed_by_id": actor.ID,
			"reviewed_at":    now,
			"review_note":    strings.TrimSpace(note),
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lr, err := s.leaves.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	t, verb := domain.NotifyLeaveApproved, "approved"
	if status == domain.RequestStatusRejected {
		t, verb = domain.NotifyLeaveRejected, "rejected"
	}
	s.events.Notify(ctx, s.leaveEvent(t, actor, lr, actor))
	s.inbox.Notify(ctx, []uint{lr.UserID}, string(t), "Leave request "+verb,
		fmt.Sprintf("Your leave request for %s to %s was %s",
			lr.StartDate.Format(domain.DateLayout), lr.EndDate.Format(domain.DateLayout), verb),
		map[string]interface{}{"leave_request_id": lr.ID})
	return lr, nil
}

// Cancel withdraws the actor's own pending request.
func (s *LeaveService) Cancel(ctx context.Context, actor *models.User, id uint) (*models.LeaveRequest, error) {
	lr, err := s.leaves.GetRequest(ctx, id)
	if err != nil {
		return nil, notFound(err, "Leave request not found")
	}
	if lr.UserID != actor.ID {
		return nil, ErrOnlyOwnerCancels
	}
	if lr.Status != domain.RequestStatusPending {
		return nil, domain.ErrInvalidTransition
	}
	ok, err := s.leaves.TransitionRequest(ctx, id, map[string]interface{}{"status": domain.RequestStatusCancelled})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidTransition
	}
	lr.Status = domain.RequestStatusCancelled
	s.events.Notify(ctx, s.leaveEvent(domain.NotifyLeaveCancelled, actor, lr, nil))
	return lr, nil
}
