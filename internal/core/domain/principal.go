package domain

// ImpersonationOutcome names the result of an impersonation attempt. The
// fallback branches are explicit so tests can assert on them.
type ImpersonationOutcome string

const (
	// ImpersonationNone means no impersonation header was supplied.
	ImpersonationNone ImpersonationOutcome = "none"
	// ImpersonationApplied means the acting identity was swapped to the target.
	ImpersonationApplied ImpersonationOutcome = "applied"
	// ImpersonationSkippedNotSuperadmin means the caller lacked the superadmin
	// flag; the header had no effect.
	ImpersonationSkippedNotSuperadmin ImpersonationOutcome = "skipped_not_superadmin"
	// ImpersonationSkippedUserNotFound means the target id did not resolve;
	// the original principal was kept.
	ImpersonationSkippedUserNotFound ImpersonationOutcome = "skipped_user_not_found"
)

// Principal is the authenticated identity attached to a request. Under
// impersonation Actor differs from the true caller, which is retained in
// ImpersonatedBy for audit.
type Principal struct {
	Actor          User
	ImpersonatedBy *User
	Impersonation  ImpersonationOutcome
}

// IsImpersonated reports whether the acting identity was swapped.
func (p Principal) IsImpersonated() bool {
	return p.ImpersonatedBy != nil
}
