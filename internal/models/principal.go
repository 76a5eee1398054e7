package models

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uint `json:"userId"`
	Role   Role `json:"role"`
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// RequestMeta is the network origin recorded with audited mutations.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// Actor is what services receive for every mutation: who, and from where.
type Actor struct {
	Principal
	Meta RequestMeta
}

// NewAuditLog builds an audit row for a mutation performed by a.
func (a Actor) NewAuditLog(action AuditAction, entity EntityType, id uint, oldValues, newValues map[string]any) *AuditLog {
	ip := a.Meta.IPAddress
	if ip == "" {
		ip = "unknown"
	}
	ua := a.Meta.UserAgent
	if ua == "" {
		ua = "unknown"
	}
	return &AuditLog{
		ActorID:    a.UserID,
		Action:     action,
		EntityType: entity,
		EntityID:   id,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  ip,
		UserAgent:  ua,
		RequestID:  a.Meta.RequestID,
	}
}
