package access

import (
	"errors"
	"testing"

	"messagecrud/pkg/domain"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		op    Operation
		role  domain.UserRole
		allow bool
	}{
		{ListOwn, domain.RoleUser, true},
		{ListOwn, domain.RoleAdmin, true},
		{ListOther, domain.RoleUser, false},
		{ListOther, domain.RoleAdmin, true},
		{Create, domain.RoleUser, true},
		{Create, domain.RoleAdmin, true},
		{UpdateOwn, domain.RoleUser, true},
		{UpdateOwn, domain.RoleAdmin, true},
		{DeleteOwn, domain.RoleUser, true},
		{DeleteOwn, domain.RoleAdmin, true},
		{DeleteOther, domain.RoleUser, false},
		{DeleteOther, domain.RoleAdmin, true},
		{Create, domain.UserRole("guest"), false},
		{Create, domain.UserRole(""), false},
	}
	for _, tc := range tests {
		t.Run(string(tc.op)+"/"+string(tc.role), func(t *testing.T) {
			err := p.Authorize(tc.role, tc.op)
			if tc.allow && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tc.allow && !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestUnknownOperationDenied(t *testing.T) {
	if err := DefaultPolicy().Authorize(domain.RoleAdmin, Operation("message.purge")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unknown operation to be denied, got %v", err)
	}
}
