package shared

import "context"

// Role names the coarse actor roles recognised by the challan pipeline.
// The identity service owns authentication; we only consume the pair.
type Role string

const (
	RoleEmployee          Role = "employee"
	RoleCoordinator       Role = "coordinator"
	RoleSeniorCoordinator Role = "senior_coordinator"
	RoleManager           Role = "manager"
	RoleAdmin             Role = "admin"
)

// IsValid reports whether the role belongs to the known set.
func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleCoordinator, RoleSeniorCoordinator, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor identifies who is performing an operation.
type Actor struct {
	ID   int64
	Role Role
}

type actorContextKey struct{}

// ContextWithActor stores the actor on the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext retrieves the actor, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
