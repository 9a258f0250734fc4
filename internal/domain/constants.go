package domain

const (
	RoleAdmin    = "ADMIN"
	RoleHR       = "HR"
	RoleManager  = "MANAGER"
	RoleTeamLead = "TEAM_LEAD"
	RoleEmployee = "EMPLOYEE"
)

var Roles = []string{RoleAdmin, RoleHR, RoleManager, RoleTeamLead, RoleEmployee}

func IsValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Request status shared by leave requests and employee requests.
const (
	RequestStatusPending   = "PENDING"
	RequestStatusApproved  = "APPROVED"
	RequestStatusRejected  = "REJECTED"
	RequestStatusCancelled = "CANCELLED"
)

const (
	AttendancePresent = "PRESENT"
	AttendanceLate    = "LATE"
)

const (
	NoticePriorityLow    = "LOW"
	NoticePriorityNormal = "NORMAL"
	NoticePriorityHigh   = "HIGH"
	NoticePriorityUrgent = "URGENT"
)

const (
	EmployeeRequestDocument      = "DOCUMENT"
	EmployeeRequestEquipment     = "EQUIPMENT"
	EmployeeRequestCertificate   = "CERTIFICATE"
	EmployeeRequestProfileUpdate = "PROFILE_UPDATE"
	EmployeeRequestOther         = "OTHER"
)

// Email queue entry lifecycle. PROCESSING is held only between claim and delivery outcome.
const (
	EmailStatusPending    = "PENDING"
	EmailStatusProcessing = "PROCESSING"
	EmailStatusSent       = "SENT"
	EmailStatusFailed     = "FAILED"
)

// EmailOutcomeUnknown marks a FAILED entry whose claim expired without a
// recorded outcome. It may have been delivered, so it is never requeued.
const EmailOutcomeUnknown = "delivery outcome unknown"

// DateLayout is the calendar-day key used by attendance records.
const DateLayout = "2006-01-02"
