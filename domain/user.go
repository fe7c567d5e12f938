package domain

import (
	"time"

	"github.com/bytedance/sonic"
)

// Role is a system role tag. Roles are either organization-wide (executive
// tier, legacy admin) or department-scoped (head, lead, buyer, designer,
// tech, office manager).
type Role string

const (
	RoleCEO           Role = "ceo"
	RoleCOO           Role = "coo"
	RoleCTO           Role = "cto"
	RoleHead          Role = "head"
	RoleLead          Role = "lead"
	RoleBuyer         Role = "buyer"
	RoleDesigner      Role = "designer"
	RoleTech          Role = "tech"
	RoleOfficeManager Role = "office_manager"

	// RoleAdmin is the legacy organization-wide tag predating the executive
	// roles. Still present on old user records.
	RoleAdmin Role = "admin"
)

// RoleAssignment binds a role to a user, optionally scoped to a department.
// Old records store roles as bare tag strings, newer ones as objects with a
// department reference; UnmarshalJSON accepts both so stored users of either
// generation decode into the same shape.
type RoleAssignment struct {
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
}

func (r *RoleAssignment) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var tag string
		if err := sonic.Unmarshal(data, &tag); err != nil {
			return err
		}
		r.Role = Role(tag)
		r.DepartmentID = ""
		return nil
	}
	var raw struct {
		Role         Role   `json:"role"`
		DepartmentID string `json:"department_id"`
	}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Role = raw.Role
	r.DepartmentID = raw.DepartmentID
	return nil
}

// User is a read-model snapshot of an account.
type User struct {
	ID                  string           `json:"id"`
	Email               string           `json:"email"`
	FullName            string           `json:"full_name"`
	Roles               []RoleAssignment `json:"roles"`
	Groups              []string         `json:"groups"`
	PrimaryDepartmentID string           `json:"primary_department_id,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// DepartmentType tags a department with its organizational function.
type DepartmentType string

const (
	DepartmentGambling DepartmentType = "gambling"
	DepartmentSweeps   DepartmentType = "sweeps"
	DepartmentOffice   DepartmentType = "office"
	DepartmentTech     DepartmentType = "tech"
	DepartmentAdmins   DepartmentType = "admins"
)

// Department groups users and boards under one organizational unit.
type Department struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      DepartmentType `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Group is a team inside a department. The lead manages membership; leading
// a group is a capability distinct from being listed as a member.
type Group struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DepartmentID string    `json:"department_id"`
	LeadUserID   string    `json:"lead_user_id,omitempty"`
	MemberIDs    []string  `json:"member_ids"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
