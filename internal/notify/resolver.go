package notify

import (
	"context"
	"fmt"
	"strings"

	"hrm/internal/domain"
	"hrm/internal/models"
)

// UserDirectory finds active users by role, optionally limited to an audience.
type UserDirectory interface {
	ListActiveByRoles(ctx context.Context, roles []string, branchID, departmentID *uint) ([]models.User, error)
}

// PreferenceStore reports which of the given addresses opted out of a type.
type PreferenceStore interface {
	OptedOutEmails(ctx context.Context, notificationType string, emails []string) ([]string, error)
}

// Audience limits role-based recipients to one branch and/or department.
type Audience struct {
	BranchID     *uint
	DepartmentID *uint
}

type Resolver struct {
	users UserDirectory
	prefs PreferenceStore
}

func NewResolver(users UserDirectory, prefs PreferenceStore) *Resolver {
	return &Resolver{users: users, prefs: prefs}
}

// Resolve computes the recipient addresses for one event. subject is the user
// the event is about, with Manager, Team.Lead and Department.Head loaded; it may
// be nil. A missing relation contributes nothing. The result is lower-cased,
// de-duplicated in first-seen order and excludes opted-out users.
func (r *Resolver) Resolve(ctx context.Context, t domain.NotificationType, subject *models.User, cfg models.RecipientConfig, aud Audience) ([]string, error) {
	set := newAddressSet()

	if subject != nil {
		if cfg.NotifyRequester {
			set.add(subject.Email)
		}
		if cfg.NotifyManager && subject.Manager != nil && subject.Manager.IsActive {
			set.add(subject.Manager.Email)
		}
		if cfg.NotifyTeamLead && subject.Team != nil && subject.Team.Lead != nil && subject.Team.Lead.IsActive {
			set.add(subject.Team.Lead.Email)
		}
		if cfg.NotifyDepartmentHead && subject.Department != nil && subject.Department.Head != nil && subject.Department.Head.IsActive {
			set.add(subject.Department.Head.Email)
		}
	}

	var staffRoles []string
	if cfg.NotifyHR {
		staffRoles = append(staffRoles, domain.RoleHR)
	}
	if cfg.NotifyAdmin {
		staffRoles = append(staffRoles, domain.RoleAdmin)
	}
	if len(staffRoles) > 0 {
		staff, err := r.users.ListActiveByRoles(ctx, staffRoles, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("load staff recipients: %w", err)
		}
		for _, u := range staff {
			set.add(u.Email)
		}
	}

	if roles := validRoles(cfg.RoleRecipients); len(roles) > 0 {
		members, err := r.users.ListActiveByRoles(ctx, roles, aud.BranchID, aud.DepartmentID)
		if err != nil {
			return nil, fmt.Errorf("load role recipients: %w", err)
		}
		for _, u := range members {
			set.add(u.Email)
		}
	}

	for _, addr := range cfg.CustomRecipients {
		set.add(addr)
	}

	if set.len() == 0 {
		return []string{}, nil
	}
	optedOut, err := r.prefs.OptedOutEmails(ctx, string(t), set.list())
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	for _, addr := range optedOut {
		set.remove(addr)
	}
	return set.list(), nil
}

func validRoles(roles []string) []string {
	var out []string
	for _, r := range roles {
		if domain.IsValidRole(r) {
			out = append(out, r)
		}
	}
	return out
}

type addressSet struct {
	order []string
	seen  map[string]bool
}

func newAddressSet() *addressSet {
	return &addressSet{seen: map[string]bool{}}
}

func (s *addressSet) add(addr string) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" || s.seen[addr] {
		return
	}
	s.seen[addr] = true
	s.order = append(s.order, addr)
}

func (s *addressSet) remove(addr string) {
	addr = strings.ToLower(addr)
	if !s.seen[addr] {
		return
	}
	delete(s.seen, addr)
	for i, a := range s.order {
		if a == addr {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *addressSet) len() int { return len(s.order) }

func (s *addressSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
