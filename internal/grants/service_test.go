package grants

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
	"github.com/filehaven/filehaven/internal/shared"
)

type pairKey struct {
	userID int64
	ref    authz.ResourceRef
}

type memoryEnv struct {
	resources map[authz.ResourceRef]authz.Resource
	grants    map[int64]Grant
	pairs     map[pairKey]int64
	nextID    int64
	notified  []Grant
}

func newMemoryEnv() *memoryEnv {
	return &memoryEnv{
		resources: make(map[authz.ResourceRef]authz.Resource),
		grants:    make(map[int64]Grant),
		pairs:     make(map[pairKey]int64),
	}
}

func (m *memoryEnv) addFolder(id, ownerID int64) authz.ResourceRef {
	ref := authz.ResourceRef{Kind: authz.KindFolder, ID: id}
	m.resources[ref] = authz.Resource{Ref: ref, OwnerID: ownerID}
	return ref
}

func (m *memoryEnv) FindResource(ctx context.Context, ref authz.ResourceRef) (authz.Resource, error) {
	r, ok := m.resources[ref]
	if !ok {
		return authz.Resource{}, authz.ErrResourceNotFound
	}
	return r, nil
}

func (m *memoryEnv) Get(ctx context.Context, id int64) (Grant, error) {
	g, ok := m.grants[id]
	if !ok {
		return Grant{}, shared.ErrNotFound
	}
	return g, nil
}

func (m *memoryEnv) ListForResource(ctx context.Context, ref authz.ResourceRef) ([]Grant, error) {
	var result []Grant
	for _, g := range m.grants {
		if g.Ref() == ref {
			result = append(result, g)
		}
	}
	return result, nil
}

func (m *memoryEnv) Create(ctx context.Context, grant Grant) (Grant, error) {
	key := pairKey{userID: grant.UserID, ref: grant.Ref()}
	if _, exists := m.pairs[key]; exists {
		return Grant{}, ErrGrantExists
	}
	m.nextID++
	grant.ID = m.nextID
	grant.CreatedAt = time.Now()
	grant.UpdatedAt = grant.CreatedAt
	m.grants[grant.ID] = grant
	m.pairs[key] = grant.ID
	return grant, nil
}

func (m *memoryEnv) UpdateAction(ctx context.Context, id int64, action authz.Action) error {
	g, ok := m.grants[id]
	if !ok {
		return shared.ErrNotFound
	}
	g.Action = action
	m.grants[id] = g
	return nil
}

func (m *memoryEnv) Delete(ctx context.Context, id int64) error {
	g, ok := m.grants[id]
	if !ok {
		return shared.ErrNotFound
	}
	delete(m.pairs, pairKey{userID: g.UserID, ref: g.Ref()})
	delete(m.grants, id)
	return nil
}

func (m *memoryEnv) NotifyShareCreated(ctx context.Context, grant Grant) error {
	m.notified = append(m.notified, grant)
	return nil
}

func newTestService(env *memoryEnv) *Service {
	return NewService(env, env, nil, env, nil)
}

func user(id int64) authz.Principal {
	return authz.Principal{ID: id, Roles: []authz.Role{authz.RoleUser}}
}

func TestCreateOwnerOnly(t *testing.T) {
	env := newMemoryEnv()
	ref := env.addFolder(1, 1)
	svc := newTestService(env)
	ctx := context.Background()

	_, err := svc.Create(ctx, user(2), CreateInput{UserID: 3, ResourceKind: ref.Kind, ResourceID: ref.ID, Action: authz.ActionRead})
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	created, err := svc.Create(ctx, user(1), CreateInput{UserID: 3, ResourceKind: ref.Kind, ResourceID: ref.ID, Action: authz.ActionRead})
	require.NoError(t, err)
	require.Equal(t, int64(3), created.UserID)
	require.Equal(t, authz.ActionRead, created.Action)
}

func TestCreateRejectsGrantToOwner(t *testing.T) {
	env := newMemoryEnv()
	ref := env.addFolder(1, 1)
	svc := newTestService(env)

	_, err := svc.Create(context.Background(), user(1), CreateInput{UserID: 1, ResourceKind: ref.Kind, ResourceID: ref.ID, Action: authz.ActionRead})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateDuplicateConflicts(t *testing.T) {
	env := newMemoryEnv()
	ref := env.addFolder(1, 1)
	svc := newTestService(env)
	ctx := context.Background()

	_, err := svc.Create(ctx, user(1), CreateInput{UserID: 2, ResourceKind: ref.Kind, ResourceID: ref.ID, Action: authz.ActionRead})
	require.NoError(t, err)

	// A second grant for the same pair conflicts even with a different action.
	_, err = svc.Create(ctx, user(1), CreateInput{UserID: 2, ResourceKind: ref.Kind, ResourceID: ref.ID, Action: authz.ActionWrite})
	require.ErrorIs(t, err, ErrGrantExists)
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestCreateMissingResource(t *testing.T) {
	env := newMemoryEnv()
	svc := newTestService(env)

	_, err := svc.Create(context.Background(), user(1), CreateInput{UserID: 2, ResourceKind: authz.KindFolder, ResourceID: 404, Action: authz.ActionRead})
	require.ErrorIs(t, err, authz.ErrResourceNotFound)
}

func TestCreateValidatesKindAndAction(t *testing.T) {
	env := newMemoryEnv()
	ref := env.addFolder(1, 1)
	svc := newTestService(env)
	ctx := context.Background()

	_, err := svc.Create(ctx, user(1), CreateInput{UserID: 2, ResourceKind: "bucket", ResourceID: 1, Action: authz.ActionRead})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, user(1), CreateInput{UserID: 2, ResourceKind: ref.Kind, ResourceID: ref.ID, Action: "own"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateNotifiesRecipient(t *testing.T) {
	env := newMemoryEnv()
	ref := env.addFolder(1, 1)
	svc := newTestService(env)

	created, err := svc.Create(context.Background(), user(1), CreateInput{UserID: 2, ResourceKind: ref.Kind, ResourceID: ref.ID, Action: authz.ActionWrite})
	require.NoError(t, err)
	require.Len(t, env.notified, 1)
	require.Equal(t, created.ID, env.notified[0].ID)
}

func TestChangeOverwritesAction(t *testing.T) {
	env := newMemoryEnv()
	ref := env.addFolder(1, 1)
	svc := newTestService(env)
	ctx := context.Background()

	created, err := svc.Create(ctx, user(1), CreateInput{UserID: 2, ResourceKind: ref.Kind, ResourceID: ref.ID, Action: authz.ActionRead})
	require.NoError(t, err)

	_, err = svc.Change(ctx, user(2), created.ID, authz.ActionWrite)
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	updated, err := svc.Change(ctx, user(1), created.ID, authz.ActionWrite)
	require.NoError(t, err)
	require.Equal(t, authz.ActionWrite, updated.Action)

	_, err = svc.Change(ctx, user(1), 404, authz.ActionWrite)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRevoke(t *testing.T) {
	env := newMemoryEnv()
	ref := env.addFolder(1, 1)
	svc := newTestService(env)
	ctx := context.Background()

	created, err := svc.Create(ctx, user(1), CreateInput{UserID: 2, ResourceKind: ref.Kind, ResourceID: ref.ID, Action: authz.ActionRead})
	require.NoError(t, err)

	err = svc.Revoke(ctx, user(2), created.ID)
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	require.NoError(t, svc.Revoke(ctx, user(1), created.ID))
	require.ErrorIs(t, svc.Revoke(ctx, user(1), created.ID), shared.ErrNotFound)

	// The pair is free again after revocation.
	_, err = svc.Create(ctx, user(1), CreateInput{UserID: 2, ResourceKind: ref.Kind, ResourceID: ref.ID, Action: authz.ActionWrite})
	require.NoError(t, err)
}

func TestListForResourceOwnerOnly(t *testing.T) {
	env := newMemoryEnv()
	ref := env.addFolder(1, 1)
	svc := newTestService(env)
	ctx := context.Background()

	_, err := svc.Create(ctx, user(1), CreateInput{UserID: 2, ResourceKind: ref.Kind, ResourceID: ref.ID, Action: authz.ActionRead})
	require.NoError(t, err)

	_, err = svc.ListForResource(ctx, user(2), ref)
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	listed, err := svc.ListForResource(ctx, user(1), ref)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}
