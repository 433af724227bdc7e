package folders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
	"github.com/filehaven/filehaven/internal/shared"
)

type memoryEnv struct {
	folders map[int64]Folder
	grants  map[grantKey]authz.Action
	nextID  int64
}

type grantKey struct {
	principalID int64
	ref         authz.ResourceRef
}

func newMemoryEnv() *memoryEnv {
	return &memoryEnv{
		folders: make(map[int64]Folder),
		grants:  make(map[grantKey]authz.Action),
	}
}

func (m *memoryEnv) addGrant(principalID, folderID int64, action authz.Action) {
	ref := authz.ResourceRef{Kind: authz.KindFolder, ID: folderID}
	m.grants[grantKey{principalID: principalID, ref: ref}] = action
}

func (m *memoryEnv) Get(ctx context.Context, id int64) (Folder, error) {
	f, ok := m.folders[id]
	if !ok {
		return Folder{}, shared.ErrNotFound
	}
	return f, nil
}

func (m *memoryEnv) ListRoots(ctx context.Context, ownerID int64) ([]Folder, error) {
	var result []Folder
	for _, f := range m.folders {
		if f.OwnerID == ownerID && f.ParentID == nil {
			result = append(result, f)
		}
	}
	return result, nil
}

func (m *memoryEnv) ListChildren(ctx context.Context, parentID int64) ([]Folder, error) {
	var result []Folder
	for _, f := range m.folders {
		if f.ParentID != nil && *f.ParentID == parentID {
			result = append(result, f)
		}
	}
	return result, nil
}

func (m *memoryEnv) Depth(ctx context.Context, id int64) (int, error) {
	depth := 0
	current, ok := m.folders[id]
	if !ok {
		return 0, shared.ErrNotFound
	}
	for current.ParentID != nil {
		depth++
		current = m.folders[*current.ParentID]
	}
	return depth, nil
}

func (m *memoryEnv) Create(ctx context.Context, folder Folder) (Folder, error) {
	m.nextID++
	folder.ID = m.nextID
	folder.CreatedAt = time.Now()
	folder.UpdatedAt = folder.CreatedAt
	m.folders[folder.ID] = folder
	return folder, nil
}

func (m *memoryEnv) Rename(ctx context.Context, id int64, name string) error {
	f, ok := m.folders[id]
	if !ok {
		return shared.ErrNotFound
	}
	f.Name = name
	m.folders[id] = f
	return nil
}

func (m *memoryEnv) Move(ctx context.Context, id int64, parentID *int64) error {
	f, ok := m.folders[id]
	if !ok {
		return shared.ErrNotFound
	}
	f.ParentID = parentID
	m.folders[id] = f
	return nil
}

func (m *memoryEnv) Delete(ctx context.Context, id int64) error {
	if _, ok := m.folders[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.folders, id)
	return nil
}

func (m *memoryEnv) FindResource(ctx context.Context, ref authz.ResourceRef) (authz.Resource, error) {
	if ref.Kind != authz.KindFolder {
		return authz.Resource{}, authz.ErrResourceNotFound
	}
	f, ok := m.folders[ref.ID]
	if !ok {
		return authz.Resource{}, authz.ErrResourceNotFound
	}
	resource := authz.Resource{Ref: ref, OwnerID: f.OwnerID}
	if f.ParentID != nil {
		resource.Parent = &authz.ResourceRef{Kind: authz.KindFolder, ID: *f.ParentID}
	}
	return resource, nil
}

func (m *memoryEnv) FindGrant(ctx context.Context, principalID int64, ref authz.ResourceRef) (authz.Action, bool, error) {
	action, ok := m.grants[grantKey{principalID: principalID, ref: ref}]
	return action, ok, nil
}

func newTestService(env *memoryEnv, maxDepth int) *Service {
	guard := authz.NewGuard(authz.NewResolver(env, env, 0), nil)
	return NewService(env, guard, nil, ServiceConfig{MaxDepth: maxDepth})
}

func user(id int64) authz.Principal {
	return authz.Principal{ID: id, Roles: []authz.Role{authz.RoleUser}}
}

func TestCreateRootAndChild(t *testing.T) {
	env := newMemoryEnv()
	svc := newTestService(env, 4)
	ctx := context.Background()

	root, err := svc.Create(ctx, user(1), CreateInput{Name: "Documents"})
	require.NoError(t, err)
	require.Nil(t, root.ParentID)
	require.Equal(t, int64(1), root.OwnerID)

	child, err := svc.Create(ctx, user(1), CreateInput{Name: "Invoices", ParentID: &root.ID})
	require.NoError(t, err)
	require.Equal(t, root.ID, *child.ParentID)
}

func TestCreateRequiresWriteOnParent(t *testing.T) {
	env := newMemoryEnv()
	svc := newTestService(env, 4)
	ctx := context.Background()

	root, err := svc.Create(ctx, user(1), CreateInput{Name: "Shared"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, user(2), CreateInput{Name: "Intruder", ParentID: &root.ID})
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	env.addGrant(2, root.ID, authz.ActionWrite)
	child, err := svc.Create(ctx, user(2), CreateInput{Name: "Guest", ParentID: &root.ID})
	require.NoError(t, err)
	// The creator owns the new folder even inside someone else's tree.
	require.Equal(t, int64(2), child.OwnerID)
}

func TestCreateEnforcesDepthCap(t *testing.T) {
	env := newMemoryEnv()
	svc := newTestService(env, 3)
	ctx := context.Background()

	a, err := svc.Create(ctx, user(1), CreateInput{Name: "a"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, user(1), CreateInput{Name: "b", ParentID: &a.ID})
	require.NoError(t, err)
	c, err := svc.Create(ctx, user(1), CreateInput{Name: "c", ParentID: &b.ID})
	require.NoError(t, err)

	_, err = svc.Create(ctx, user(1), CreateInput{Name: "d", ParentID: &c.ID})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRenameRequiresWrite(t *testing.T) {
	env := newMemoryEnv()
	svc := newTestService(env, 4)
	ctx := context.Background()

	root, err := svc.Create(ctx, user(1), CreateInput{Name: "Docs"})
	require.NoError(t, err)

	env.addGrant(2, root.ID, authz.ActionRead)
	err = svc.Rename(ctx, user(2), root.ID, "Stolen")
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	env.addGrant(3, root.ID, authz.ActionWrite)
	require.NoError(t, svc.Rename(ctx, user(3), root.ID, "Renamed"))

	renamed, err := svc.Get(ctx, user(1), root.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", renamed.Name)
}

func TestMoveRejectsOwnSubtree(t *testing.T) {
	env := newMemoryEnv()
	svc := newTestService(env, 8)
	ctx := context.Background()

	a, err := svc.Create(ctx, user(1), CreateInput{Name: "a"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, user(1), CreateInput{Name: "b", ParentID: &a.ID})
	require.NoError(t, err)
	c, err := svc.Create(ctx, user(1), CreateInput{Name: "c", ParentID: &b.ID})
	require.NoError(t, err)

	err = svc.Move(ctx, user(1), a.ID, &c.ID)
	require.ErrorIs(t, err, httpx.ErrValidation)

	err = svc.Move(ctx, user(1), a.ID, &a.ID)
	require.ErrorIs(t, err, httpx.ErrValidation)

	// A legal move keeps ownership intact.
	require.NoError(t, svc.Move(ctx, user(1), c.ID, &a.ID))
	moved, err := svc.Get(ctx, user(1), c.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, *moved.ParentID)
	require.Equal(t, int64(1), moved.OwnerID)
}

func TestGetMissingFolderIsNotFound(t *testing.T) {
	env := newMemoryEnv()
	svc := newTestService(env, 4)

	_, err := svc.Get(context.Background(), user(1), 404)
	require.ErrorIs(t, err, authz.ErrResourceNotFound)
}

func TestDeleteRequiresWrite(t *testing.T) {
	env := newMemoryEnv()
	svc := newTestService(env, 4)
	ctx := context.Background()

	root, err := svc.Create(ctx, user(1), CreateInput{Name: "Trash"})
	require.NoError(t, err)

	err = svc.Delete(ctx, user(2), root.ID)
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	require.NoError(t, svc.Delete(ctx, user(1), root.ID))
	_, err = svc.Get(ctx, user(1), root.ID)
	require.ErrorIs(t, err, authz.ErrResourceNotFound)
}
