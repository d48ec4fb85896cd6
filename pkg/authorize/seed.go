package authorize

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultPolicies is the baseline RBAC policy set. Ownership and grant checks
// happen in the services; these rules only gate which role may call what.
var DefaultPolicies = []PermissionPolicy{
	{RoleSysAdmin, DomainSys, WildcardResource, WildcardAction, EffectAllow},

	// Patients own their records and decide on access requests.
	{RolePatient, WildcardDomain, ResourceProfile, ActionRead, EffectAllow},
	{RolePatient, WildcardDomain, ResourceShareCode, ActionRead, EffectAllow},
	{RolePatient, WildcardDomain, ResourceShareCode, ActionUpdate, EffectAllow},
	{RolePatient, WildcardDomain, ResourceRecord, ActionCreate, EffectAllow},
	{RolePatient, WildcardDomain, ResourceRecord, ActionRead, EffectAllow},
	{RolePatient, WildcardDomain, ResourceRecord, ActionList, EffectAllow},
	{RolePatient, WildcardDomain, ResourceRecord, ActionUpdate, EffectAllow},
	{RolePatient, WildcardDomain, ResourceRecord, ActionDelete, EffectAllow},
	{RolePatient, WildcardDomain, ResourceRecordKey, ActionRead, EffectAllow},
	{RolePatient, WildcardDomain, ResourceAccessRequest, ActionRead, EffectAllow},
	{RolePatient, WildcardDomain, ResourceAccessRequest, ActionList, EffectAllow},
	{RolePatient, WildcardDomain, ResourceAccessRequest, ActionGrant, EffectAllow},
	{RolePatient, WildcardDomain, ResourceAccessRequest, ActionDeny, EffectAllow},
	{RolePatient, WildcardDomain, ResourceAccessRequest, ActionRevoke, EffectAllow},

	// Doctors ask for access and read what was granted.
	{RoleDoctor, WildcardDomain, ResourceProfile, ActionRead, EffectAllow},
	{RoleDoctor, WildcardDomain, ResourceRecord, ActionRead, EffectAllow},
	{RoleDoctor, WildcardDomain, ResourceRecord, ActionList, EffectAllow},
	{RoleDoctor, WildcardDomain, ResourceRecordKey, ActionRead, EffectAllow},
	{RoleDoctor, WildcardDomain, ResourceAccessRequest, ActionCreate, EffectAllow},
	{RoleDoctor, WildcardDomain, ResourceAccessRequest, ActionRead, EffectAllow},
	{RoleDoctor, WildcardDomain, ResourceAccessRequest, ActionList, EffectAllow},
	{RoleDoctor, WildcardDomain, ResourceAccessRequest, ActionUpdate, EffectAllow},
}

// SeedDefaultPolicies adds DefaultPolicies. Existing rules are left alone.
func SeedDefaultPolicies(ctx context.Context, auth IAuthorization) error {
	logger := slog.Default()

	for _, p := range DefaultPolicies {
		added, err := auth.AddPermission(ctx, p.Subject, p.Domain, p.Object, p.Action, p.Effect)
		if err != nil {
			logger.Error("failed to add policy", "policy", p, "error", err)
			return err
		}
		if added {
			logger.Debug("added policy", "role", p.Subject, "domain", p.Domain, "resource", p.Object, "action", p.Action)
		}
	}

	logger.Info("seeded default RBAC policies", "count", len(DefaultPolicies))
	return nil
}

// AssignUserRole gives a user the casbin role matching their stored role.
// Call this when creating a user.
func AssignUserRole(ctx context.Context, auth IAuthorization, userID, role string) error {
	r, ok := RoleForUser(role)
	if !ok {
		return fmt.Errorf("%w: unknown user role %q", ErrInvalidArgs, role)
	}
	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), r, DomainSys)
	return err
}

// AssignSystemRole assigns a system-level role to a user.
func AssignSystemRole(ctx context.Context, auth IAuthorization, userID string, role Role) error {
	if role != RoleSysAdmin {
		return ErrInvalidArgs
	}
	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), role, DomainSys)
	return err
}
