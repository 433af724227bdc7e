package files

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
	"github.com/filehaven/filehaven/internal/shared"
)

type memoryFolder struct {
	ownerID  int64
	parentID *int64
}

type memoryEnv struct {
	folders map[int64]memoryFolder
	files   map[int64]File
	grants  map[grantKey]authz.Action
	nextID  int64
}

type grantKey struct {
	principalID int64
	ref         authz.ResourceRef
}

func newMemoryEnv() *memoryEnv {
	return &memoryEnv{
		folders: make(map[int64]memoryFolder),
		files:   make(map[int64]File),
		grants:  make(map[grantKey]authz.Action),
	}
}

func (m *memoryEnv) addFolder(id, ownerID int64, parentID *int64) {
	m.folders[id] = memoryFolder{ownerID: ownerID, parentID: parentID}
}

func (m *memoryEnv) addGrant(principalID int64, ref authz.ResourceRef, action authz.Action) {
	m.grants[grantKey{principalID: principalID, ref: ref}] = action
}

func (m *memoryEnv) Get(ctx context.Context, id int64) (File, error) {
	f, ok := m.files[id]
	if !ok {
		return File{}, shared.ErrNotFound
	}
	return f, nil
}

func (m *memoryEnv) ListInFolder(ctx context.Context, folderID int64) ([]File, error) {
	var result []File
	for _, f := range m.files {
		if f.FolderID == folderID {
			result = append(result, f)
		}
	}
	return result, nil
}

func (m *memoryEnv) Create(ctx context.Context, file File) (File, error) {
	if _, ok := m.folders[file.FolderID]; !ok {
		return File{}, shared.ErrNotFound
	}
	m.nextID++
	file.ID = m.nextID
	file.CreatedAt = time.Now()
	file.UpdatedAt = file.CreatedAt
	m.files[file.ID] = file
	return file, nil
}

func (m *memoryEnv) Rename(ctx context.Context, id int64, name string) error {
	f, ok := m.files[id]
	if !ok {
		return shared.ErrNotFound
	}
	f.Name = name
	m.files[id] = f
	return nil
}

func (m *memoryEnv) Move(ctx context.Context, id int64, folderID int64) error {
	f, ok := m.files[id]
	if !ok {
		return shared.ErrNotFound
	}
	if _, ok := m.folders[folderID]; !ok {
		return shared.ErrNotFound
	}
	f.FolderID = folderID
	m.files[id] = f
	return nil
}

func (m *memoryEnv) Delete(ctx context.Context, id int64) error {
	if _, ok := m.files[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.files, id)
	return nil
}

func (m *memoryEnv) FindResource(ctx context.Context, ref authz.ResourceRef) (authz.Resource, error) {
	switch ref.Kind {
	case authz.KindFolder:
		f, ok := m.folders[ref.ID]
		if !ok {
			return authz.Resource{}, authz.ErrResourceNotFound
		}
		resource := authz.Resource{Ref: ref, OwnerID: f.ownerID}
		if f.parentID != nil {
			resource.Parent = &authz.ResourceRef{Kind: authz.KindFolder, ID: *f.parentID}
		}
		return resource, nil
	case authz.KindFile:
		f, ok := m.files[ref.ID]
		if !ok {
			return authz.Resource{}, authz.ErrResourceNotFound
		}
		return authz.Resource{
			Ref:     ref,
			OwnerID: f.OwnerID,
			Parent:  &authz.ResourceRef{Kind: authz.KindFolder, ID: f.FolderID},
		}, nil
	}
	return authz.Resource{}, authz.ErrResourceNotFound
}

func (m *memoryEnv) FindGrant(ctx context.Context, principalID int64, ref authz.ResourceRef) (authz.Action, bool, error) {
	action, ok := m.grants[grantKey{principalID: principalID, ref: ref}]
	return action, ok, nil
}

func newTestService(env *memoryEnv) *Service {
	guard := authz.NewGuard(authz.NewResolver(env, env, 0), nil)
	return NewService(env, guard, nil)
}

func user(id int64) authz.Principal {
	return authz.Principal{ID: id, Roles: []authz.Role{authz.RoleUser}}
}

func TestCreateRequiresWriteOnFolder(t *testing.T) {
	env := newMemoryEnv()
	env.addFolder(1, 1, nil)
	svc := newTestService(env)
	ctx := context.Background()

	created, err := svc.Create(ctx, user(1), CreateInput{FolderID: 1, Name: "report.pdf", SizeBytes: 1024, MimeType: "application/pdf"})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.OwnerID)

	_, err = svc.Create(ctx, user(2), CreateInput{FolderID: 1, Name: "sneaky.txt"})
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	env.addGrant(2, authz.ResourceRef{Kind: authz.KindFolder, ID: 1}, authz.ActionWrite)
	guest, err := svc.Create(ctx, user(2), CreateInput{FolderID: 1, Name: "guest.txt"})
	require.NoError(t, err)
	// The uploader owns the file even inside someone else's folder.
	require.Equal(t, int64(2), guest.OwnerID)
}

func TestCreateValidation(t *testing.T) {
	env := newMemoryEnv()
	env.addFolder(1, 1, nil)
	svc := newTestService(env)
	ctx := context.Background()

	_, err := svc.Create(ctx, user(1), CreateInput{FolderID: 1, Name: "  "})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, user(1), CreateInput{FolderID: 1, Name: "x", SizeBytes: -1})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestReadInheritsFromAncestorFolder(t *testing.T) {
	env := newMemoryEnv()
	env.addFolder(1, 1, nil)
	child := int64(1)
	env.addFolder(2, 1, &child)
	svc := newTestService(env)
	ctx := context.Background()

	created, err := svc.Create(ctx, user(1), CreateInput{FolderID: 2, Name: "nested.txt"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, user(2), created.ID)
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	// A read grant on the top-level folder reaches the file two levels down.
	env.addGrant(2, authz.ResourceRef{Kind: authz.KindFolder, ID: 1}, authz.ActionRead)
	got, err := svc.Get(ctx, user(2), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}

func TestReadGrantDoesNotAllowWrite(t *testing.T) {
	env := newMemoryEnv()
	env.addFolder(1, 1, nil)
	svc := newTestService(env)
	ctx := context.Background()

	created, err := svc.Create(ctx, user(1), CreateInput{FolderID: 1, Name: "locked.txt"})
	require.NoError(t, err)

	// A read grant on the file is not enough to rename it.
	env.addGrant(2, authz.ResourceRef{Kind: authz.KindFile, ID: created.ID}, authz.ActionRead)
	err = svc.Rename(ctx, user(2), created.ID, "renamed.txt")
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	// But it does allow reading.
	_, err = svc.Get(ctx, user(2), created.ID)
	require.NoError(t, err)
}

func TestMoveRequiresWriteOnDestination(t *testing.T) {
	env := newMemoryEnv()
	env.addFolder(1, 1, nil)
	env.addFolder(2, 3, nil)
	svc := newTestService(env)
	ctx := context.Background()

	created, err := svc.Create(ctx, user(1), CreateInput{FolderID: 1, Name: "wander.txt"})
	require.NoError(t, err)

	err = svc.Move(ctx, user(1), created.ID, 2)
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	env.addGrant(1, authz.ResourceRef{Kind: authz.KindFolder, ID: 2}, authz.ActionWrite)
	require.NoError(t, svc.Move(ctx, user(1), created.ID, 2))

	moved, err := svc.Get(ctx, user(1), created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), moved.FolderID)
	require.Equal(t, int64(1), moved.OwnerID)
}

func TestGetMissingFileIsNotFound(t *testing.T) {
	env := newMemoryEnv()
	svc := newTestService(env)

	_, err := svc.Get(context.Background(), user(1), 404)
	require.ErrorIs(t, err, authz.ErrResourceNotFound)
}

func TestDeleteRequiresWrite(t *testing.T) {
	env := newMemoryEnv()
	env.addFolder(1, 1, nil)
	svc := newTestService(env)
	ctx := context.Background()

	created, err := svc.Create(ctx, user(1), CreateInput{FolderID: 1, Name: "gone.txt"})
	require.NoError(t, err)

	err = svc.Delete(ctx, user(2), created.ID)
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	require.NoError(t, svc.Delete(ctx, user(1), created.ID))
	_, err = svc.Get(ctx, user(1), created.ID)
	require.ErrorIs(t, err, authz.ErrResourceNotFound)
}
