package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hrm/config"
	"hrm/internal/domain"
	"hrm/internal/models"
	"hrm/internal/notify"
	"hrm/internal/repository"
)

type EmployeeRequestInput struct {
	Type        string `json:"type" binding:"required,oneof=DOCUMENT EQUIPMENT CERTIFICATE PROFILE_UPDATE OTHER"`
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description" binding:"max=5000"`
}

type EmployeeRequestService struct {
	cfg      *config.Config
	repo     *repository.EmployeeRequestRepository
	settings *SettingsService
	events   EventNotifier
	inbox    Inbox
	now      func() time.Time
}

func NewEmployeeRequestService(cfg *config.Config, repo *repository.EmployeeRequestRepository, settings *SettingsService,
	events EventNotifier, inbox Inbox) *EmployeeRequestService {
	return &EmployeeRequestService{cfg: cfg, repo: repo, settings: settings, events: events, inbox: inbox, now: time.Now}
}

func (s *EmployeeRequestService) Create(ctx context.Context, actor *models.User, in EmployeeRequestInput) (*models.EmployeeRequest, error) {
	er := &models.EmployeeRequest{
		UserID:      actor.ID,
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      domain.RequestStatusPending,
	}
	if err := s.repo.Create(ctx, er); err != nil {
		return nil, err
	}
	er.User = actor
	s.events.Notify(ctx, s.event(domain.NotifyEmployeeRequestSubmitted, actor, er, nil))
	return er, nil
}

func (s *EmployeeRequestService) event(t domain.NotificationType, actor *models.User, er *models.EmployeeRequest, reviewer *models.User) notify.Event {
	var employee string
	if er.User != nil {
		employee = er.User.Name
	}
	vars := map[string]interface{}{
		"employeeName": employee,
		"requestType":  er.Type,
		"title":        er.Title,
		"description":  er.Description,
		"reviewNote":   er.ReviewNote,
		"link":         fmt.Sprintf("%s/requests/%d", strings.TrimRight(s.cfg.Mail.AppURL, "/"), er.ID),
	}
	if reviewer != nil {
		vars["reviewerName"] = reviewer.Name
	}
	return notify.Event{
		Type:          t,
		ActorID:       actor.ID,
		SubjectUserID: er.UserID,
		Variables:     vars,
		Attributes:    notify.Attributes{RequestType: er.Type},
	}
}

func (s *EmployeeRequestService) List(ctx context.Context, actor *models.User, f repository.EmployeeRequestFilter, p Page) (*Paged[models.EmployeeRequest], error) {
	scope, err := s.settings.ScopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	list, total, err := s.repo.List(ctx, scope.Filter("employee_requests.user_id"), f, p.Page, p.Limit)
	if err != nil {
		return nil, err
	}
	return paged(list, total, p), nil
}

func (s *EmployeeRequestService) Get(ctx context.Context, actor *models.User, id uint) (*models.EmployeeRequest, error) {
	er, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Request not found")
	}
	scope, err := s.settings.ScopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(er.User) {
		return nil, domain.ErrForbidden
	}
	return er, nil
}

func (s *EmployeeRequestService) Approve(ctx context.Context, actor *models.User, id uint, in ReviewInput) (*models.EmployeeRequest, error) {
	return s.review(ctx, actor, id, domain.RequestStatusApproved, in.Note)
}

func (s *EmployeeRequestService) Reject(ctx context.Context, actor *models.User, id uint, in ReviewInput) (*models.EmployeeRequest, error) {
	return s.review(ctx, actor, id, domain.RequestStatusRejected, in.Note)
}

func (s *EmployeeRequestService) review(ctx context.Context, actor *models.User, id uint, status, note string) (*models.EmployeeRequest, error) {
	if !actor.Can(domain.PermRequestsReview) {
		return nil, domain.ErrForbidden
	}
	er, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Request not found")
	}
	if er.UserID == actor.ID {
		return nil, ErrOwnRequestReview
	}
	if er.Status != domain.RequestStatusPending {
		return nil, domain.ErrInvalidTransition
	}
	ok, err := s.repo.Transition(ctx, id, map[string]interface{}{
		"status":         status,
		"reviewed_by_id": actor.ID,
		"reviewed_at":    s.now(),
		"review_note":    strings.TrimSpace(note),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidTransition
	}
	er, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t, verb := domain.NotifyEmployeeRequestApproved, "approved"
	if status == domain.RequestStatusRejected {
		t, verb = domain.NotifyEmployeeRequestRejected, "rejected"
	}
	s.events.Notify(ctx, s.event(t, actor, er, actor))
	s.inbox.Notify(ctx, []uint{er.UserID}, string(t), "Request "+verb,
		fmt.Sprintf("Your request %q was %s", er.Title, verb),
		map[string]interface{}{"employee_request_id": er.ID})
	return er, nil
}

// Cancel withdraws the actor's own pending request.
func (s *EmployeeRequestService) Cancel(ctx context.Context, actor *models.User, id uint) (*models.EmployeeRequest, error) {
	er, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Request not found")
	}
	if er.UserID != actor.ID {
		return nil, ErrOnlyOwnerCancels
	}
	if er.Status != domain.RequestStatusPending {
		return nil, domain.ErrInvalidTransition
	}
	ok, err := s.repo.Transition(ctx, id, map[string]interface{}{"status": domain.RequestStatusCancelled})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidTransition
	}
	er.Status = domain.RequestStatusCancelled
	return er, nil
}
