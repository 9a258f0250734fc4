package domain

// NotificationType identifies an event that can produce emails. The set is closed.
type NotificationType string

const (
	NotifyLeaveSubmitted           NotificationType = "LEAVE_REQUEST_SUBMITTED"
	NotifyLeaveApproved            NotificationType = "LEAVE_REQUEST_APPROVED"
	NotifyLeaveRejected            NotificationType = "LEAVE_REQUEST_REJECTED"
	NotifyLeaveCancelled           NotificationType = "LEAVE_REQUEST_CANCELLED"
	NotifyEmployeeRequestSubmitted NotificationType = "EMPLOYEE_REQUEST_SUBMITTED"
	NotifyEmployeeRequestApproved  NotificationType = "EMPLOYEE_REQUEST_APPROVED"
	NotifyEmployeeRequestRejected  NotificationType = "EMPLOYEE_REQUEST_REJECTED"
	NotifyNoticePublished          NotificationType = "NOTICE_PUBLISHED"
	NotifyPasswordReset            NotificationType = "PASSWORD_RESET"
	NotifyWelcome                  NotificationType = "WELCOME_EMAIL"
	NotifyTest                     NotificationType = "TEST_EMAIL"
)

var NotificationTypes = []NotificationType{
	NotifyLeaveSubmitted,
	NotifyLeaveApproved,
	NotifyLeaveRejected,
	NotifyLeaveCancelled,
	NotifyEmployeeRequestSubmitted,
	NotifyEmployeeRequestApproved,
	NotifyEmployeeRequestRejected,
	NotifyNoticePublished,
	NotifyPasswordReset,
	NotifyWelcome,
	NotifyTest,
}

func (t NotificationType) Valid() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t NotificationType) String() string { return string(t) }
