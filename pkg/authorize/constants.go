package authorize

type (
	Action   string
	Resource string
	Role     string
	Domain   string

	PolicyEffect string

	// GroupSubject is the user side of a grouping rule: a user id.
	GroupSubject string
)

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
	ActionGrant  Action = "grant"
	ActionDeny   Action = "deny"
	ActionRevoke Action = "revoke"

	WildcardAction Action = "*"
)

const (
	ResourceProfile       Resource = "profile"
	ResourceShareCode     Resource = "share_code"
	ResourceRecord        Resource = "record"
	ResourceAccessRequest Resource = "access_request"
	ResourceRecordKey     Resource = "record_key" // a stored record key, for its owner or a granted doctor
	ResourceSystem        Resource = "system"
	ResourceRBAC          Resource = "rbac"

	WildcardResource Resource = "*"
)

// Every user holds exactly one of these, granted in DomainSys.
const (
	RoleSysAdmin Role = "role:sys:admin"
	RolePatient  Role = "role:patient"
	RoleDoctor   Role = "role:doctor"

	WildcardRole Role = "*"
)

// MedVault has a single tenant, so all grouping rules live in DomainSys.
const (
	DomainSys      Domain = "sys"
	WildcardDomain Domain = "*"
)

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

func setOf[T comparable](items ...T) map[T]struct{} {
	s := make(map[T]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

var (
	KnownActions = setOf(ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList,
		ActionGrant, ActionDeny, ActionRevoke)
	KnownResources = setOf(ResourceProfile, ResourceShareCode, ResourceRecord,
		ResourceAccessRequest, ResourceRecordKey, ResourceSystem, ResourceRBAC)
	KnownRoles = setOf(RoleSysAdmin, RolePatient, RoleDoctor)
)

func IsValidDomain(d Domain) bool {
	return d == DomainSys || d == WildcardDomain
}

// RoleForUser maps the users.role column to a casbin role.
func RoleForUser(role string) (Role, bool) {
	switch role {
	case "patient":
		return RolePatient, true
	case "doctor":
		return RoleDoctor, true
	}
	return "", false
}

// PermissionPolicy is one p row: role, domain, resource, action, effect.
type PermissionPolicy struct {
	Subject Role
	Domain  Domain
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}
