package domain

import "sort"

// Permission is a named capability checked by middleware and services.
type Permission string

const (
	PermOrgManage             Permission = "org:manage"
	PermUsersView             Permission = "users:view"
	PermUsersManage           Permission = "users:manage"
	PermLeaveConfigure        Permission = "leave:configure"
	PermLeaveAllocate         Permission = "leave:allocate"
	PermLeaveReview           Permission = "leave:review"
	PermRequestsReview        Permission = "requests:review"
	PermNoticesManage         Permission = "notices:manage"
	PermNotificationRulesView Permission = "notifications:rules:view"
	PermNotificationRulesEdit Permission = "notifications:rules:edit"
	PermNotificationTemplates Permission = "notifications:templates"
	PermNotificationQueue     Permission = "notifications:queue"
	PermAuditView             Permission = "audit:view"
	PermSettingsManage        Permission = "settings:manage"
	PermAttendanceViewAll     Permission = "attendance:view"
)

// capabilities is the single role → permission table. Every authorization
// decision goes through Can.
var capabilities = map[string]map[Permission]bool{
	RoleAdmin: set(
		PermOrgManage, PermUsersView, PermUsersManage,
		PermLeaveConfigure, PermLeaveAllocate, PermLeaveReview, PermRequestsReview,
		PermNoticesManage,
		PermNotificationRulesView, PermNotificationRulesEdit, PermNotificationTemplates, PermNotificationQueue,
		PermAuditView, PermSettingsManage, PermAttendanceViewAll,
	),
	RoleHR: set(
		PermOrgManage, PermUsersView, PermUsersManage,
		PermLeaveConfigure, PermLeaveAllocate, PermLeaveReview, PermRequestsReview,
		PermNoticesManage,
		PermNotificationRulesView, PermNotificationRulesEdit, PermNotificationTemplates, PermNotificationQueue,
		PermAttendanceViewAll,
	),
	RoleManager:  set(PermUsersView, PermNotificationRulesView, PermAttendanceViewAll),
	RoleTeamLead: set(PermUsersView, PermNotificationRulesView, PermAttendanceViewAll),
	RoleEmployee: set(),
}

func set(perms ...Permission) map[Permission]bool {
	m := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		m[p] = true
	}
	return m
}

// Can reports whether role holds perm. Unknown roles hold nothing.
func Can(role string, perm Permission) bool {
	return capabilities[role][perm]
}

// PermissionsFor lists the permissions granted to role, for the /auth/me payload.
func PermissionsFor(role string) []Permission {
	out := make([]Permission, 0, len(capabilities[role]))
	for p := range capabilities[role] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
