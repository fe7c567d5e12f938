package domain

import (
	"testing"

	"github.com/bytedance/sonic"
)

func TestRoleAssignmentDecodesBareTag(t *testing.T) {
	var u User
	payload := []byte(`{"id":"u1","roles":["buyer","lead"]}`)
	if err := sonic.Unmarshal(payload, &u); err != nil {
		t.Fatalf("unmarshal legacy user: %v", err)
	}
	if len(u.Roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(u.Roles))
	}
	if u.Roles[0].Role != RoleBuyer || u.Roles[0].DepartmentID != "" {
		t.Fatalf("unexpected first role: %+v", u.Roles[0])
	}
	if u.Roles[1].Role != RoleLead {
		t.Fatalf("unexpected second role: %+v", u.Roles[1])
	}
}

func TestRoleAssignmentDecodesQualifiedPair(t *testing.T) {
	var u User
	payload := []byte(`{"id":"u1","roles":[{"role":"head","department_id":"dept-gambling"}]}`)
	if err := sonic.Unmarshal(payload, &u); err != nil {
		t.Fatalf("unmarshal user: %v", err)
	}
	if len(u.Roles) != 1 {
		t.Fatalf("expected 1 role, got %d", len(u.Roles))
	}
	if u.Roles[0].Role != RoleHead || u.Roles[0].DepartmentID != "dept-gambling" {
		t.Fatalf("unexpected role: %+v", u.Roles[0])
	}
}
