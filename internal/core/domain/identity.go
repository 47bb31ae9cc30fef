package domain

import "time"

// User mirrors the persisted representation in the users table. The password
// hash never leaves the login service.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Permissions  int
	IsActive     bool
	SchoolID     *int64
	School       *School
	TableAccess  []TableGrant
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// School is the user's home organisational unit (alapadatok row snapshot).
type School struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	OM   string `json:"om,omitempty"`
}

// TableGrant links a user to a registered table with CRUD-bit granularity.
// Access bits are meaningful only relative to an existing, available
// descriptor.
type TableGrant struct {
	UserID int64
	Table  TableDescriptor
	Access int
}

// TableDescriptor is a row of the table registry.
type TableDescriptor struct {
	ID          int64
	Name        string
	Alias       string
	IsAvailable bool
	IsLocked    bool
}

// PermissionDetails decodes the user's permission bitfield.
func (u User) PermissionDetails() PermissionSet {
	return DecodePermissions(u.Permissions)
}

// AccessDetails decodes the grant's access bitfield.
func (g TableGrant) AccessDetails() TableAccessSet {
	return DecodeTableAccess(g.Access)
}

// AvailableGrants filters the user's grants to available tables. Token
// minting must embed only these; disabling a table later does not alter
// already-issued tokens.
func (u User) AvailableGrants() []TableGrant {
	if len(u.TableAccess) == 0 {
		return nil
	}
	grants := make([]TableGrant, 0, len(u.TableAccess))
	for _, g := range u.TableAccess {
		if g.Table.IsAvailable {
			grants = append(grants, g)
		}
	}
	if len(grants) == 0 {
		return nil
	}
	return grants
}
