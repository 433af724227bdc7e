package instances

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
	"github.com/filehaven/filehaven/internal/shared"
)

type memoryRepo struct {
	instances map[int64]Instance
	sections  map[int64]Section
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		instances: make(map[int64]Instance),
		sections:  make(map[int64]Section),
	}
}

func (m *memoryRepo) List(ctx context.Context) ([]Instance, error) {
	var result []Instance
	for _, in := range m.instances {
		result = append(result, in)
	}
	return result, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Instance, error) {
	in, ok := m.instances[id]
	if !ok {
		return Instance{}, shared.ErrNotFound
	}
	return in, nil
}

func (m *memoryRepo) FindByCode(ctx context.Context, code string) (Instance, error) {
	for _, in := range m.instances {
		if in.Code == code {
			return in, nil
		}
	}
	return Instance{}, shared.ErrNotFound
}

func (m *memoryRepo) Create(ctx context.Context, instance Instance) (Instance, error) {
	for _, in := range m.instances {
		if in.Code == instance.Code {
			return Instance{}, ErrCodeTaken
		}
	}
	m.nextID++
	instance.ID = m.nextID
	instance.CreatedAt = time.Now()
	instance.UpdatedAt = instance.CreatedAt
	m.instances[instance.ID] = instance
	return instance, nil
}

func (m *memoryRepo) Update(ctx context.Context, instance Instance) error {
	existing, ok := m.instances[instance.ID]
	if !ok {
		return shared.ErrNotFound
	}
	for _, in := range m.instances {
		if in.ID != instance.ID && in.Code == instance.Code {
			return ErrCodeTaken
		}
	}
	existing.Name = instance.Name
	existing.Code = instance.Code
	m.instances[instance.ID] = existing
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.instances[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.instances, id)
	return nil
}

func (m *memoryRepo) ListSections(ctx context.Context, instanceID int64) ([]Section, error) {
	var result []Section
	for _, s := range m.sections {
		if s.InstanceID == instanceID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *memoryRepo) CreateSection(ctx context.Context, section Section) (Section, error) {
	if _, ok := m.instances[section.InstanceID]; !ok {
		return Section{}, shared.ErrNotFound
	}
	m.nextID++
	section.ID = m.nextID
	section.CreatedAt = time.Now()
	section.UpdatedAt = section.CreatedAt
	m.sections[section.ID] = section
	return section, nil
}

func (m *memoryRepo) DeleteSection(ctx context.Context, id int64) error {
	if _, ok := m.sections[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.sections, id)
	return nil
}

func admin() authz.Principal {
	return authz.Principal{ID: 1, Roles: []authz.Role{authz.RoleAdmin}, Superadmin: true}
}

func TestCreateNormalizesCode(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, admin(), CreateInput{Name: "Acme Corp", Code: " acme "})
	require.NoError(t, err)
	require.Equal(t, "ACME", created.Code)

	_, err = svc.Create(ctx, admin(), CreateInput{Name: "Other", Code: "ACME"})
	require.ErrorIs(t, err, httpx.ErrConflict)

	_, err = svc.Create(ctx, admin(), CreateInput{Name: "", Code: "X"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestSections(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	instance, err := svc.Create(ctx, admin(), CreateInput{Name: "Acme", Code: "ACME"})
	require.NoError(t, err)

	section, err := svc.CreateSection(ctx, admin(), instance.ID, "Engineering")
	require.NoError(t, err)

	sections, err := svc.ListSections(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, sections, 1)

	require.NoError(t, svc.DeleteSection(ctx, admin(), section.ID))

	_, err = svc.ListSections(ctx, 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestImportCSV(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	csvData := strings.Join([]string{
		"name,code,section",
		"Acme Corp,ACME,Engineering",
		"Acme Corp,ACME,Sales",
		"Globex,GLX,",
		"Globex,GLX,Engineering",
		",missing-name,whatever",
		"short-row",
	}, "\n")

	result, err := svc.ImportCSV(ctx, []byte(csvData))
	require.NoError(t, err)
	require.Equal(t, 2, result.Instances)
	require.Equal(t, 3, result.Sections)
	require.Equal(t, 2, result.Skipped)

	acme, err := repo.FindByCode(ctx, "ACME")
	require.NoError(t, err)
	sections, err := repo.ListSections(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, sections, 2)
}

func TestImportCSVIsIdempotentPerSection(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	csvData := "Acme,ACME,Engineering\n"
	_, err := svc.ImportCSV(ctx, []byte(csvData))
	require.NoError(t, err)

	second, err := svc.ImportCSV(ctx, []byte(csvData))
	require.NoError(t, err)
	require.Equal(t, 0, second.Instances)
	require.Equal(t, 0, second.Sections)
	require.Equal(t, 1, second.Skipped)
}
