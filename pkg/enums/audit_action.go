package enums

import "fmt"

// AuditAction identifies the kind of state change an audit entry records.
type AuditAction string

const (
	AuditActionCheckIn     AuditAction = "check_in"
	AuditActionServe       AuditAction = "serve"
	AuditActionAdjust      AuditAction = "adjust"
	AuditActionReset       AuditAction = "reset"
	AuditActionSync        AuditAction = "sync"
	AuditActionClose       AuditAction = "close"
	AuditActionReopen      AuditAction = "reopen"
	AuditActionUndoCheckIn AuditAction = "undo_check_in"
)

var validAuditActions = []AuditAction{
	AuditActionCheckIn,
	AuditActionServe,
	AuditActionAdjust,
	AuditActionReset,
	AuditActionSync,
	AuditActionClose,
	AuditActionReopen,
	AuditActionUndoCheckIn,
}

// IsValid reports whether the value matches the canonical audit action enum.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
