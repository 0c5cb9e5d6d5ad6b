package authz

import (
	"context"
	"fmt"
)

// KindActivity addresses an activity by its own identifier. The ownership
// gate uses the resource id directly instead of consulting a resolver.
const KindActivity = "activity"

// ActivityResolver reports the activity owning one resource of a kind.
// Implementations exist per resource kind (documents, permits, enquiries);
// the gate itself never branches on the kind.
type ActivityResolver interface {
	OwningActivity(ctx context.Context, id string) (string, error)
}

// ActivityResolverFunc adapts a plain function to ActivityResolver.
type ActivityResolverFunc func(ctx context.Context, id string) (string, error)

func (f ActivityResolverFunc) OwningActivity(ctx context.Context, id string) (string, error) {
	return f(ctx, id)
}

// Registry maps resource-kind names to their owning-activity resolvers. It
// is assembled once at startup and read-only afterwards.
type Registry struct {
	resolvers map[string]ActivityResolver
}

func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]ActivityResolver)}
}

// Register installs a resolver for a resource kind, replacing any previous
// one. Registration after startup is not synchronized.
func (r *Registry) Register(kind string, resolver ActivityResolver) {
	if kind == "" || resolver == nil {
		return
	}
	r.resolvers[kind] = resolver
}

// Resolve returns the activity id owning the given resource.
func (r *Registry) Resolve(ctx context.Context, kind, id string) (string, error) {
	if kind == KindActivity {
		return id, nil
	}
	resolver, ok := r.resolvers[kind]
	if !ok {
		return "", fmt.Errorf("%w: resource kind %q", ErrNotFound, kind)
	}
	return resolver.OwningActivity(ctx, id)
}
