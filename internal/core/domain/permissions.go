package domain

// User permission bit layout. The bitfield is stored on the user row and is
// the single source of truth; PermissionSet is its decoded form.
const (
	PermissionBitStandard   = 0b00001
	PermissionBitPrivileged = 0b00010
	PermissionBitAdmin      = 0b00100
	PermissionBitHSZC       = 0b01000
	PermissionBitSuperadmin = 0b10000
)

// Table access bit layout, stored per (user, table) grant row.
const (
	TableAccessBitRead   = 0b0001
	TableAccessBitCreate = 0b0010
	TableAccessBitUpdate = 0b0100
	TableAccessBitDelete = 0b1000
)

// PermissionSet is the decoded form of the user permission bitfield.
type PermissionSet struct {
	IsSuperadmin bool `json:"isSuperadmin"`
	IsHSZC       bool `json:"isHSZC"`
	IsAdmin      bool `json:"isAdmin"`
	IsPrivileged bool `json:"isPrivileged"`
	IsStandard   bool `json:"isStandard"`
}

// TableAccessSet is the decoded form of a grant's access bitfield.
type TableAccessSet struct {
	CanDelete bool `json:"canDelete"`
	CanUpdate bool `json:"canUpdate"`
	CanCreate bool `json:"canCreate"`
	CanRead   bool `json:"canRead"`
}

// DecodePermissions maps a user permission bitfield to named flags. This is
// the only decoder for the user bit layout.
func DecodePermissions(bits int) PermissionSet {
	return PermissionSet{
		IsSuperadmin: bits&PermissionBitSuperadmin != 0,
		IsHSZC:       bits&PermissionBitHSZC != 0,
		IsAdmin:      bits&PermissionBitAdmin != 0,
		IsPrivileged: bits&PermissionBitPrivileged != 0,
		IsStandard:   bits&PermissionBitStandard != 0,
	}
}

// Encode maps the named flags back to the user bitfield. Lossless for the
// five defined bits.
func (p PermissionSet) Encode() int {
	bits := 0
	if p.IsSuperadmin {
		bits |= PermissionBitSuperadmin
	}
	if p.IsHSZC {
		bits |= PermissionBitHSZC
	}
	if p.IsAdmin {
		bits |= PermissionBitAdmin
	}
	if p.IsPrivileged {
		bits |= PermissionBitPrivileged
	}
	if p.IsStandard {
		bits |= PermissionBitStandard
	}
	return bits
}

// DecodeTableAccess maps a grant access bitfield to named flags. This is the
// only decoder for the table bit layout.
func DecodeTableAccess(bits int) TableAccessSet {
	return TableAccessSet{
		CanDelete: bits&TableAccessBitDelete != 0,
		CanUpdate: bits&TableAccessBitUpdate != 0,
		CanCreate: bits&TableAccessBitCreate != 0,
		CanRead:   bits&TableAccessBitRead != 0,
	}
}

// Encode maps the named flags back to the grant bitfield.
func (t TableAccessSet) Encode() int {
	bits := 0
	if t.CanDelete {
		bits |= TableAccessBitDelete
	}
	if t.CanUpdate {
		bits |= TableAccessBitUpdate
	}
	if t.CanCreate {
		bits |= TableAccessBitCreate
	}
	if t.CanRead {
		bits |= TableAccessBitRead
	}
	return bits
}

// Allows reports whether the set grants the given HTTP method.
func (t TableAccessSet) Allows(method string) bool {
	switch method {
	case "GET":
		return t.CanRead
	case "POST":
		return t.CanCreate
	case "PUT", "PATCH":
		return t.CanUpdate
	case "DELETE":
		return t.CanDelete
	default:
		return false
	}
}
