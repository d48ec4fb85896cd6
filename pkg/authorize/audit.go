package authorize

import (
	"context"
	"log/slog"
	"time"

	casbin "github.com/casbin/casbin/v2"

	"github.com/Alijeyrad/medvault_backend/pkg/reqctx"
)

// AuditedAuthorization logs every decision and every policy change made
// through it. Denials log at WARN so key access refusals stand out.
type AuditedAuthorization struct {
	inner  IAuthorization
	logger *slog.Logger
}

func NewAuditedAuthorization(inner IAuthorization, logger *slog.Logger) IAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditedAuthorization{inner: inner, logger: logger.With("component", "authz")}
}

func (a *AuditedAuthorization) Enforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) (bool, error) {
	start := time.Now()
	allowed, err := a.inner.Enforce(ctx, subject, domain, object, action)

	attrs := append(reqctx.LogAttrs(ctx),
		"subject", string(subject),
		"domain", string(domain),
		"resource", string(object),
		"action", string(action),
		"allowed", allowed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case err != nil:
		a.logger.ErrorContext(ctx, "authz_decision", append(attrs, "error", err.Error())...)
	case allowed:
		a.logger.InfoContext(ctx, "authz_decision", attrs...)
	default:
		a.logger.WarnContext(ctx, "authz_decision", attrs...)
	}
	return allowed, err
}

func (a *AuditedAuthorization) MustEnforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) error {
	ok, err := a.Enforce(ctx, subject, domain, object, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// change logs one policy mutation. changed is false when the rule already
// existed (add) or was absent (remove).
func (a *AuditedAuthorization) change(ctx context.Context, op string, changed bool, err error, attrs ...any) {
	attrs = append(append(reqctx.LogAttrs(ctx), "operation", op, "changed", changed), attrs...)
	if err != nil {
		a.logger.ErrorContext(ctx, "authz_policy_change", append(attrs, "error", err.Error())...)
		return
	}
	a.logger.InfoContext(ctx, "authz_policy_change", attrs...)
}

func (a *AuditedAuthorization) AddRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	ok, err := a.inner.AddRoleForUserInDomain(ctx, subject, role, domain)
	a.change(ctx, "add_role", ok, err, "subject", string(subject), "role", string(role), "domain", string(domain))
	return ok, err
}

func (a *AuditedAuthorization) RemoveRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	ok, err := a.inner.RemoveRoleForUserInDomain(ctx, subject, role, domain)
	a.change(ctx, "remove_role", ok, err, "subject", string(subject), "role", string(role), "domain", string(domain))
	return ok, err
}

func (a *AuditedAuthorization) GetRolesForUserInDomain(ctx context.Context, subject GroupSubject, domain Domain) ([]Role, error) {
	return a.inner.GetRolesForUserInDomain(ctx, subject, domain)
}

func (a *AuditedAuthorization) AddPermission(ctx context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error) {
	ok, err := a.inner.AddPermission(ctx, role, domain, object, action, effect)
	a.change(ctx, "add_permission", ok, err, permissionAttrs(role, domain, object, action, effect)...)
	return ok, err
}

func (a *AuditedAuthorization) RemovePermission(ctx context.Context, role Role, domain Domain, object Resource, action Action, effect PolicyEffect) (bool, error) {
	ok, err := a.inner.RemovePermission(ctx, role, domain, object, action, effect)
	a.change(ctx, "remove_permission", ok, err, permissionAttrs(role, domain, object, action, effect)...)
	return ok, err
}

func permissionAttrs(role Role, domain Domain, object Resource, action Action, effect PolicyEffect) []any {
	return []any{
		"role", string(role),
		"domain", string(domain),
		"resource", string(object),
		"action", string(action),
		"effect", string(effect),
	}
}

func (a *AuditedAuthorization) Raw() *casbin.DistributedEnforcer {
	return a.inner.Raw()
}
