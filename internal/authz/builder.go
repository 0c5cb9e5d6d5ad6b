package authz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Builder assembles the per-request Authorization by walking the
// group -> policy -> attribute graph. The design is fail-closed: unknown
// subjects, empty memberships, empty policy sets and resolver errors all
// surface as ErrForbidden, never as an implicit grant.
type Builder struct {
	directory  Directory
	groups     GroupStore
	policies   PolicyStore
	attributes AttributeStore
}

// NewBuilder constructs a Builder. Every resolver is required.
func NewBuilder(directory Directory, groups GroupStore, policies PolicyStore, attributes AttributeStore) (*Builder, error) {
	if directory == nil || groups == nil || policies == nil || attributes == nil {
		return nil, errors.New("authz: all resolvers are required")
	}
	return &Builder{
		directory:  directory,
		groups:     groups,
		policies:   policies,
		attributes: attributes,
	}, nil
}

// Build resolves the subject's authorization for one (resource, action,
// initiative) triple. An empty initiative means "not filtered".
func (b *Builder) Build(ctx context.Context, subject, identityProvider, resource, action, initiative string) (Authorization, error) {
	if subject == "" || resource == "" || action == "" {
		return Authorization{}, fmt.Errorf("%w: incomplete request", ErrForbidden)
	}

	userID, err := b.directory.ResolveSubject(ctx, subject, identityProvider)
	if err != nil || userID == "" {
		return Authorization{}, fmt.Errorf("%w: unknown subject", ErrForbidden)
	}

	groups, err := b.groups.GroupsForUser(ctx, userID)
	if err != nil || len(groups) == 0 {
		return Authorization{}, fmt.Errorf("%w: no group membership", ErrForbidden)
	}

	for _, g := range groups {
		if g.Name == DeveloperGroup {
			return NewAuthorization(userID, []string{ScopeAll}, groups), nil
		}
	}

	policies, err := b.resolvePolicies(ctx, groups, resource, action, initiative)
	if err != nil {
		return Authorization{}, fmt.Errorf("%w: policy resolution failed", ErrForbidden)
	}
	if len(policies) == 0 {
		return Authorization{}, fmt.Errorf("%w: no applicable policy", ErrForbidden)
	}

	attrs, err := b.resolveAttributes(ctx, policies)
	if err != nil {
		return Authorization{}, fmt.Errorf("%w: attribute resolution failed", ErrForbidden)
	}

	memberOf := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		memberOf[g.ID] = struct{}{}
	}
	var names []string
	for _, attr := range attrs {
		if attributeApplies(attr, memberOf) {
			names = append(names, attr.Name)
		}
	}
	return NewAuthorization(userID, names, groups), nil
}

// resolvePolicies fans out one lookup per group. Lookups are independent, so
// they run concurrently; a failure in any of them fails the whole build.
// Under the aggregator initiative resolution is keyed by distinct group name
// instead of group id.
func (b *Builder) resolvePolicies(ctx context.Context, groups []Group, resource, action, initiative string) ([]Policy, error) {
	var (
		mu  sync.Mutex
		all []Policy
	)
	g, ctx := errgroup.WithContext(ctx)

	if initiative == InitiativeAll {
		seen := make(map[string]struct{}, len(groups))
		for _, grp := range groups {
			name := grp.Name
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			g.Go(func() error {
				rows, err := b.policies.PoliciesForGroupName(ctx, name, resource, action)
				if err != nil {
					return err
				}
				mu.Lock()
				all = append(all, rows...)
				mu.Unlock()
				return nil
			})
		}
	} else {
		for _, grp := range groups {
			groupID := grp.ID
			g.Go(func() error {
				rows, err := b.policies.PoliciesForGroup(ctx, groupID, resource, action, initiative)
				if err != nil {
					return err
				}
				mu.Lock()
				all = append(all, rows...)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

func (b *Builder) resolveAttributes(ctx context.Context, policies []Policy) ([]Attribute, error) {
	var (
		mu  sync.Mutex
		all []Attribute
	)
	g, ctx := errgroup.WithContext(ctx)

	seen := make(map[string]struct{}, len(policies))
	for _, p := range policies {
		policyID := p.PolicyID
		if _, ok := seen[policyID]; ok {
			continue
		}
		seen[policyID] = struct{}{}
		g.Go(func() error {
			rows, err := b.attributes.AttributesForPolicy(ctx, policyID)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, rows...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// attributeApplies implements the scoping rule: a globally-scoped attribute
// always applies once its policy matched; a restricted one applies only when
// the subject's groups intersect its restricting set.
func attributeApplies(attr Attribute, memberOf map[string]struct{}) bool {
	if len(attr.GroupIDs) == 0 {
		return true
	}
	for _, id := range attr.GroupIDs {
		if _, ok := memberOf[id]; ok {
			return true
		}
	}
	return false
}
