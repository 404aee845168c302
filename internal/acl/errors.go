package acl

import "fmt"

// Operation names the access being checked.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpManage Operation = "manage"
)

// AccessDeniedError is returned when an actor lacks the access an operation needs.
type AccessDeniedError struct {
	Operation Operation
	Type      string
	UID       string
}

func (e AccessDeniedError) Error() string {
	switch e.Operation {
	case OpRead:
		if e.UID != "" {
			return "You don't have the proper permissions to read this object."
		}
		return "You don't have the proper permissions to read objects of this type."
	case OpCreate:
		return "You don't have the proper permissions to create this object."
	case OpUpdate:
		return "You don't have the proper permissions to update this object."
	case OpDelete:
		return "You don't have the proper permissions to delete this object."
	}
	return fmt.Sprintf("You don't have the proper permissions to %s this object.", e.Operation)
}
