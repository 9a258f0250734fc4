package notify

import "errors"

var (
	ErrMailerNotConfigured = errors.New("mail transport is not configured")
	ErrNotRetryable        = errors.New("only FAILED emails can be retried")
	ErrOutcomeUnknown      = errors.New("delivery outcome is unknown, the email may already have been sent")
	ErrEntryNotFound       = errors.New("email log not found")
	ErrSystemTemplate      = errors.New("system templates cannot be deleted")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrRuleNotFound        = errors.New("notification rule not found")
	ErrRuleExists          = errors.New("a rule already exists for this notification type")
	ErrTemplateNameTaken   = errors.New("template name already in use")
	ErrUnknownType         = errors.New("unknown notification type")
)
