package domain

import "time"

// BoardType distinguishes ordinary task boards from expense boards, which
// carry stricter task scoping and mutation rules.
type BoardType string

const (
	BoardTasks    BoardType = "tasks"
	BoardExpenses BoardType = "expenses"
)

// VisibilityMode selects which allow-list of a VisibilityPolicy is consulted.
type VisibilityMode string

const (
	VisibilityUsers  VisibilityMode = "users"
	VisibilityGroups VisibilityMode = "groups"
)

// Permissions are the capability flags of a VisibilityPolicy.
type Permissions struct {
	Read   bool `json:"read"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Manage bool `json:"manage"`
}

// VisibilityPolicy is the modern explicit allow-list descriptor for a board.
// Write paths enforce that only the allow-list matching Mode is populated;
// read paths must tolerate stored records that violate that invariant and
// decide strictly by Mode.
type VisibilityPolicy struct {
	Mode            VisibilityMode `json:"mode"`
	AllowedUserIDs  []string       `json:"allowed_user_ids"`
	AllowedGroupIDs []string       `json:"allowed_group_ids"`
	Permissions     Permissions    `json:"permissions"`
}

// Board is a task or expense board. A board either carries a modern
// VisibilityPolicy or falls back to the legacy role/member/owner fields;
// when both are present the policy wins unconditionally.
type Board struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Key                 string            `json:"key"`
	Type                BoardType         `json:"type"`
	IsArchived          bool              `json:"is_archived"`
	DefaultDepartmentID string            `json:"default_department_id,omitempty"`
	Visibility          *VisibilityPolicy `json:"visibility,omitempty"`

	// Legacy access-control fields, consulted only when Visibility is nil.
	AllowedRoles []string `json:"allowed_roles,omitempty"`
	Members      []string `json:"members,omitempty"`
	Owners       []string `json:"owners,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOwner reports whether the user is listed as a board owner.
func (b Board) IsOwner(userID string) bool {
	for _, id := range b.Owners {
		if id == userID {
			return true
		}
	}
	return false
}

// Column is a lane on a board. Columns whose key appears in the routing
// table trigger cross-team relocation when a task is moved into them.
type Column struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
