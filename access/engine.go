package access

import "taskdesk-api/domain"

// BypassKey identifies a bypass-table entry. An empty DepartmentID matches
// actors of any department.
type BypassKey struct {
	Role         domain.Role `json:"role"`
	DepartmentID string      `json:"department_id"`
}

// BypassTable grants extra board keys to (role, department) pairs on top of
// whatever the board's own ACL allows. It replaces the per-department
// literal checks the product grew organically.
type BypassTable map[BypassKey][]string

// boardKeys collects every bypass board key that applies to the actor:
// entries for each of the actor's departments plus wildcard entries.
func (t BypassTable) boardKeys(actor ActorContext) map[string]struct{} {
	if len(t) == 0 {
		return nil
	}
	var keys map[string]struct{}
	add := func(boards []string) {
		for _, k := range boards {
			if keys == nil {
				keys = make(map[string]struct{})
			}
			keys[k] = struct{}{}
		}
	}
	for role := range actor.Roles {
		add(t[BypassKey{Role: role}])
		for _, dept := range actor.DepartmentIDs {
			add(t[BypassKey{Role: role, DepartmentID: dept}])
		}
	}
	return keys
}

// RoutingTarget is the destination of a routing column: the board a task
// relocates to and the key of that board's intake column.
type RoutingTarget struct {
	BoardKey        string `json:"board_key"`
	IntakeColumnKey string `json:"intake_column_key"`
}

// RoutingTable maps reserved routing column keys to their destinations.
type RoutingTable map[string]RoutingTarget

// Directory bundles the lookup functions the engine needs but does not own.
// All funcs are plain synchronous values; any I/O behind them happened
// before the call. Nil funcs degrade to most-restrictive results.
type Directory struct {
	// UsersByDepartment returns the IDs of all users whose primary
	// department matches.
	UsersByDepartment func(departmentID string) []string

	// UsersByRole returns the IDs of all users holding the role.
	UsersByRole func(role domain.Role) []string

	// IntakeColumn resolves a column by board key and column key.
	IntakeColumn func(boardKey, columnKey string) (domain.Column, bool)

	// AnyDepartmentID returns an arbitrary existing department, the last
	// resort of the task department fallback chain.
	AnyDepartmentID func() (string, bool)
}

// Config carries the data-driven pieces of the engine: the bypass table,
// the routing table and the designated role boards.
type Config struct {
	Bypass         BypassTable
	Routing        RoutingTable
	TechBoardKey   string
	DesignBoardKey string
}

// DefaultConfig reproduces the shipped board layout: buyers see the shared
// tech board plus their own department's design board, and the TO_TECH /
// TO_DESIGNERS columns route across teams.
func DefaultConfig() Config {
	return Config{
		Bypass: BypassTable{
			{Role: domain.RoleBuyer}:                                {"TECH"},
			{Role: domain.RoleBuyer, DepartmentID: "dept-gambling"}: {"GAM_DES"},
			{Role: domain.RoleBuyer, DepartmentID: "dept-sweeps"}:   {"SWE_DES"},
		},
		Routing: RoutingTable{
			"TO_TECH":      {BoardKey: "TECH", IntakeColumnKey: "TODO"},
			"TO_DESIGNERS": {BoardKey: "DES", IntakeColumnKey: "QUEUE"},
		},
		TechBoardKey:   "TECH",
		DesignBoardKey: "DES",
	}
}

// Engine evaluates board access, task visibility, cross-team routing and
// write authorization. It is a pure computation library: no internal state,
// no I/O, safe for concurrent use.
type Engine struct {
	cfg Config
	dir Directory
}

// New creates an engine from the given config and directory lookups.
func New(cfg Config, dir Directory) *Engine {
	return &Engine{cfg: cfg, dir: dir}
}

// IsRoutingColumn reports whether the column key is a reserved routing key.
func (e *Engine) IsRoutingColumn(columnKey string) bool {
	_, ok := e.cfg.Routing[columnKey]
	return ok
}
