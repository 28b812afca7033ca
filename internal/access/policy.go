// Package access holds the role policy for message operations.
package access

import (
	"errors"
	"slices"

	"messagecrud/pkg/domain"
)

// ErrUnauthorized is returned when the caller's role does not permit an operation.
var ErrUnauthorized = errors.New("unauthorized")

// Operation names a guarded message operation.
type Operation string

const (
	ListOwn     Operation = "message.list.own"
	ListOther   Operation = "message.list.other"
	Create      Operation = "message.create"
	UpdateOwn   Operation = "message.update.own"
	DeleteOwn   Operation = "message.delete.own"
	DeleteOther Operation = "message.delete.other"
)

// Policy maps each operation to the roles allowed to invoke it.
type Policy map[Operation][]domain.UserRole

// DefaultPolicy is the message service policy table.
func DefaultPolicy() Policy {
	return Policy{
		ListOwn:     {domain.RoleUser, domain.RoleAdmin},
		ListOther:   {domain.RoleAdmin},
		Create:      {domain.RoleUser, domain.RoleAdmin},
		UpdateOwn:   {domain.RoleUser, domain.RoleAdmin},
		DeleteOwn:   {domain.RoleUser, domain.RoleAdmin},
		DeleteOther: {domain.RoleAdmin},
	}
}

// Authorize returns nil when role may perform op. Unknown operations are denied.
func (p Policy) Authorize(role domain.UserRole, op Operation) error {
	allowed, ok := p[op]
	if !ok || !slices.Contains(allowed, role) {
		return ErrUnauthorized
	}
	return nil
}
