package gateway

// callerKind tags the two caller variants. Credential resolution and caller
// attribution branch on the tag explicitly, never on runtime type inspection.
type callerKind int

const (
	callerTenant callerKind = iota
	callerManagement
)

// Caller identifies who is fetching: either a tenant user or a management
// user. Management callers have no tenant; their cache entries live under the
// "global" tenant marker.
type Caller struct {
	kind             callerKind
	tenantID         uint
	userID           uint
	managementUserID uint
}

// TenantCaller builds the tenant-user variant.
func TenantCaller(tenantID, userID uint) Caller {
	return Caller{kind: callerTenant, tenantID: tenantID, userID: userID}
}

// ManagementCaller builds the management-user variant.
func ManagementCaller(managementUserID uint) Caller {
	return Caller{kind: callerManagement, managementUserID: managementUserID}
}

// IsManagement reports whether this is the management variant.
func (c Caller) IsManagement() bool { return c.kind == callerManagement }

// TenantRef returns the tenant id, or nil for management callers.
func (c Caller) TenantRef() *uint {
	if c.kind != callerTenant {
		return nil
	}
	t := c.tenantID
	return &t
}

// UserRef returns the tenant-user id, or nil for management callers.
func (c Caller) UserRef() *uint {
	if c.kind != callerTenant {
		return nil
	}
	u := c.userID
	return &u
}

// ManagementRef returns the management-user id, or nil for tenant callers.
func (c Caller) ManagementRef() *uint {
	if c.kind != callerManagement {
		return nil
	}
	m := c.managementUserID
	return &m
}

// CacheUserID is the user id used in fingerprint derivation: the tenant user
// for tenant callers, the management user for management callers.
func (c Caller) CacheUserID() uint {
	if c.kind == callerManagement {
		return c.managementUserID
	}
	return c.userID
}
