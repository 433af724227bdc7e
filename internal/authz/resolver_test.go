package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	resources map[ResourceRef]Resource
	grants    map[grantKey]Action
}

type grantKey struct {
	principalID int64
	ref         ResourceRef
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		resources: make(map[ResourceRef]Resource),
		grants:    make(map[grantKey]Action),
	}
}

func (s *memoryStore) addFolder(id, ownerID int64, parentID *int64) ResourceRef {
	ref := ResourceRef{Kind: KindFolder, ID: id}
	resource := Resource{Ref: ref, OwnerID: ownerID}
	if parentID != nil {
		resource.Parent = &ResourceRef{Kind: KindFolder, ID: *parentID}
	}
	s.resources[ref] = resource
	return ref
}

func (s *memoryStore) addFile(id, ownerID, folderID int64) ResourceRef {
	ref := ResourceRef{Kind: KindFile, ID: id}
	s.resources[ref] = Resource{
		Ref:     ref,
		OwnerID: ownerID,
		Parent:  &ResourceRef{Kind: KindFolder, ID: folderID},
	}
	return ref
}

func (s *memoryStore) addGrant(principalID int64, ref ResourceRef, action Action) {
	s.grants[grantKey{principalID: principalID, ref: ref}] = action
}

func (s *memoryStore) FindResource(ctx context.Context, ref ResourceRef) (Resource, error) {
	resource, ok := s.resources[ref]
	if !ok {
		return Resource{}, ErrResourceNotFound
	}
	return resource, nil
}

func (s *memoryStore) FindGrant(ctx context.Context, principalID int64, ref ResourceRef) (Action, bool, error) {
	action, ok := s.grants[grantKey{principalID: principalID, ref: ref}]
	return action, ok, nil
}

func ptr(v int64) *int64 { return &v }

func user(id int64) Principal {
	return Principal{ID: id, Roles: []Role{RoleUser}}
}

func admin(id int64) Principal {
	return Principal{ID: id, Roles: []Role{RoleAdmin}}
}

func superadmin(id int64) Principal {
	return Principal{ID: id, Roles: []Role{RoleAdmin}, Superadmin: true}
}

func TestOwnerAlwaysAllowed(t *testing.T) {
	store := newMemoryStore()
	folder := store.addFolder(1, 10, nil)
	file := store.addFile(1, 10, 1)
	resolver := NewResolver(store, store, 0)
	ctx := context.Background()

	for _, ref := range []ResourceRef{folder, file} {
		for _, action := range []Action{ActionRead, ActionWrite} {
			ok, err := resolver.CanAccessAction(ctx, user(10), ref, action)
			require.NoError(t, err)
			require.True(t, ok, "owner denied %s on %s/%d", action, ref.Kind, ref.ID)
		}
	}
}

func TestSuperadminAlwaysAllowed(t *testing.T) {
	store := newMemoryStore()
	folder := store.addFolder(1, 10, nil)
	resolver := NewResolver(store, store, 0)

	ok, err := resolver.CanAccess(context.Background(), superadmin(99), folder, Actions(ActionWrite))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPlainAdminVetoed(t *testing.T) {
	store := newMemoryStore()
	folder := store.addFolder(1, 10, nil)
	resolver := NewResolver(store, store, 0)
	ctx := context.Background()

	ok, err := resolver.CanAccess(ctx, admin(99), folder, Actions(ActionRead, ActionWrite))
	require.NoError(t, err)
	require.False(t, ok)

	// An explicit grant does not rescue a plain admin.
	store.addGrant(99, folder, ActionWrite)
	ok, err = resolver.CanAccess(ctx, admin(99), folder, Actions(ActionWrite))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPlainAdminVetoedOnEveryLevel(t *testing.T) {
	store := newMemoryStore()
	root := store.addFolder(1, 10, nil)
	store.addFolder(2, 10, ptr(1))
	file := store.addFile(1, 10, 2)
	resolver := NewResolver(store, store, 0)
	ctx := context.Background()

	// Grants on the whole ancestor chain cannot rescue a plain admin.
	store.addGrant(99, root, ActionRead)
	store.addGrant(99, ResourceRef{Kind: KindFolder, ID: 2}, ActionRead)

	ok, err := resolver.CanAccess(ctx, admin(99), file, Actions(ActionRead))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAdminOwnsResource(t *testing.T) {
	store := newMemoryStore()
	folder := store.addFolder(1, 99, nil)
	resolver := NewResolver(store, store, 0)

	// Ownership precedes the admin veto.
	ok, err := resolver.CanAccess(context.Background(), admin(99), folder, Actions(ActionRead))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGrantActionMustMatch(t *testing.T) {
	store := newMemoryStore()
	folder := store.addFolder(1, 10, nil)
	store.addGrant(20, folder, ActionWrite)
	resolver := NewResolver(store, store, 0)
	ctx := context.Background()

	ok, err := resolver.CanAccess(ctx, user(20), folder, Actions(ActionWrite))
	require.NoError(t, err)
	require.True(t, ok)

	// A write grant does not implicitly satisfy a read check.
	ok, err = resolver.CanAccess(ctx, user(20), folder, Actions(ActionRead))
	require.NoError(t, err)
	require.False(t, ok)

	// Any-of: a check accepting both actions passes with either grant.
	ok, err = resolver.CanAccess(ctx, user(20), folder, Actions(ActionRead, ActionWrite))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAncestorGrantInherited(t *testing.T) {
	store := newMemoryStore()
	store.addFolder(1, 10, nil)       // root
	a := store.addFolder(2, 10, ptr(1))
	store.addFolder(3, 10, ptr(2))    // b
	file := store.addFile(1, 10, 3)
	store.addGrant(20, a, ActionRead)
	resolver := NewResolver(store, store, 0)
	ctx := context.Background()

	// No grant on the file or its direct folder; the grant two levels up wins.
	ok, err := resolver.CanAccess(ctx, user(20), file, Actions(ActionRead))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.CanAccess(ctx, user(20), file, Actions(ActionWrite))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNoRelationDeniedAtRoot(t *testing.T) {
	store := newMemoryStore()
	store.addFolder(1, 10, nil)
	store.addFolder(2, 10, ptr(1))
	file := store.addFile(1, 10, 2)
	resolver := NewResolver(store, store, 0)

	ok, err := resolver.CanAccess(context.Background(), user(30), file, Actions(ActionRead))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResourceNotFoundDistinctFromDenial(t *testing.T) {
	store := newMemoryStore()
	resolver := NewResolver(store, store, 0)

	_, err := resolver.CanAccess(context.Background(), user(10), ResourceRef{Kind: KindFolder, ID: 404}, Actions(ActionRead))
	require.ErrorIs(t, err, ErrResourceNotFound)
}

func TestDanglingParentSurfacesNotFound(t *testing.T) {
	store := newMemoryStore()
	folder := store.addFolder(2, 10, ptr(1)) // parent 1 never created
	resolver := NewResolver(store, store, 0)

	_, err := resolver.CanAccess(context.Background(), user(20), folder, Actions(ActionRead))
	require.ErrorIs(t, err, ErrResourceNotFound)
}

func TestEmptyActionSetRejected(t *testing.T) {
	store := newMemoryStore()
	folder := store.addFolder(1, 10, nil)
	resolver := NewResolver(store, store, 0)

	_, err := resolver.CanAccess(context.Background(), user(10), folder, nil)
	require.ErrorIs(t, err, ErrEmptyActionSet)
}

func TestCycleDetected(t *testing.T) {
	store := newMemoryStore()
	store.addFolder(1, 10, ptr(2))
	folder := store.addFolder(2, 10, ptr(1))
	resolver := NewResolver(store, store, 0)

	_, err := resolver.CanAccess(context.Background(), user(20), folder, Actions(ActionRead))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrResourceNotFound)
}

func TestMaxDepthGuard(t *testing.T) {
	store := newMemoryStore()
	store.addFolder(1, 10, nil)
	for id := int64(2); id <= 10; id++ {
		store.addFolder(id, 10, ptr(id-1))
	}
	resolver := NewResolver(store, store, 3)

	_, err := resolver.CanAccess(context.Background(), user(20), ResourceRef{Kind: KindFolder, ID: 10}, Actions(ActionRead))
	require.Error(t, err)
}

// TestSharedFolderScenario mirrors the canonical tree: Root(1) <- Folder(2) <-
// File(1 in folder 2), all owned by U1, with a write grant for U2 on folder 2.
func TestSharedFolderScenario(t *testing.T) {
	store := newMemoryStore()
	store.addFolder(1, 1, nil)
	folder := store.addFolder(2, 1, ptr(1))
	file := store.addFile(3, 1, 2)
	store.addGrant(2, folder, ActionWrite)
	resolver := NewResolver(store, store, 0)
	ctx := context.Background()

	ok, err := resolver.CanAccess(ctx, user(2), file, Actions(ActionWrite))
	require.NoError(t, err)
	require.True(t, ok, "inherited write grant")

	ok, err = resolver.CanAccess(ctx, user(2), file, Actions(ActionRead))
	require.NoError(t, err)
	require.False(t, ok, "action mismatch")

	ok, err = resolver.CanAccess(ctx, user(1), file, Actions(ActionRead))
	require.NoError(t, err)
	require.True(t, ok, "owner")

	ok, err = resolver.CanAccess(ctx, user(3), file, Actions(ActionRead))
	require.NoError(t, err)
	require.False(t, ok, "no relation")
}
