package instances

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
	"github.com/filehaven/filehaven/internal/shared"
)

// ErrCodeTaken signals a duplicate instance code.
var ErrCodeTaken = fmt.Errorf("%w: instances: code already taken", httpx.ErrConflict)

// Service owns instance and section management. The HTTP surface is
// admin-gated; the service itself only validates and persists.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// List returns all instances.
func (s *Service) List(ctx context.Context) ([]Instance, error) {
	return s.repo.List(ctx)
}

// Get fetches one instance.
func (s *Service) Get(ctx context.Context, id int64) (Instance, error) {
	return s.repo.Get(ctx, id)
}

// CreateInput carries the fields for a new instance.
type CreateInput struct {
	Name string
	Code string
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create adds a new instance.
func (s *Service) Create(ctx context.Context, actor authz.Principal, input CreateInput) (Instance, error) {
	name := strings.TrimSpace(input.Name)
	code := normalizeCode(input.Code)
	if name == "" {
		return Instance{}, fmt.Errorf("%w: instances: name required", httpx.ErrValidation)
	}
	if code == "" {
		return Instance{}, fmt.Errorf("%w: instances: code required", httpx.ErrValidation)
	}

	created, err := s.repo.Create(ctx, Instance{Name: name, Code: code})
	if err != nil {
		return Instance{}, err
	}
	s.record(ctx, actor, "instance.create", created.ID, map[string]any{"name": name, "code": code})
	return created, nil
}

// Update rewrites an instance's name and code.
func (s *Service) Update(ctx context.Context, actor authz.Principal, id int64, input CreateInput) (Instance, error) {
	name := strings.TrimSpace(input.Name)
	code := normalizeCode(input.Code)
	if name == "" || code == "" {
		return Instance{}, fmt.Errorf("%w: instances: name and code required", httpx.ErrValidation)
	}

	if err := s.repo.Update(ctx, Instance{ID: id, Name: name, Code: code}); err != nil {
		return Instance{}, err
	}
	s.record(ctx, actor, "instance.update", id, map[string]any{"name": name, "code": code})
	return s.repo.Get(ctx, id)
}

// Delete removes an instance and, via the schema, its sections.
func (s *Service) Delete(ctx context.Context, actor authz.Principal, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "instance.delete", id, nil)
	return nil
}

// ListSections returns an instance's sections.
func (s *Service) ListSections(ctx context.Context, instanceID int64) ([]Section, error) {
	if _, err := s.repo.Get(ctx, instanceID); err != nil {
		return nil, err
	}
	return s.repo.ListSections(ctx, instanceID)
}

// CreateSection adds a section under an instance.
func (s *Service) CreateSection(ctx context.Context, actor authz.Principal, instanceID int64, name string) (Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Section{}, fmt.Errorf("%w: instances: section name required", httpx.ErrValidation)
	}
	created, err := s.repo.CreateSection(ctx, Section{InstanceID: instanceID, Name: name})
	if err != nil {
		return Section{}, err
	}
	s.record(ctx, actor, "section.create", created.ID, map[string]any{"instance_id": instanceID, "name": name})
	return created, nil
}

// DeleteSection removes a section.
func (s *Service) DeleteSection(ctx context.Context, actor authz.Principal, id int64) error {
	if err := s.repo.DeleteSection(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "section.delete", id, nil)
	return nil
}

// ImportResult summarizes a CSV bulk import run.
type ImportResult struct {
	Instances int `json:"instances"`
	Sections  int `json:"sections"`
	Skipped   int `json:"skipped"`
}

// ImportCSV ingests rows of the form `name,code[,section]`. Instances are
// matched by code and reused when they already exist; sections are created
// when the instance does not have one with that name yet. Malformed rows
// are counted as skipped rather than aborting the whole import.
func (s *Service) ImportCSV(ctx context.Context, data []byte) (ImportResult, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var result ImportResult
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("instances: import csv: %w", err)
		}
		line++
		if line == 1 && isHeaderRow(record) {
			continue
		}
		if len(record) < 2 {
			result.Skipped++
			continue
		}

		name := strings.TrimSpace(record[0])
		code := normalizeCode(record[1])
		if name == "" || code == "" {
			result.Skipped++
			continue
		}

		instance, err := s.repo.FindByCode(ctx, code)
		switch {
		case err == nil:
			// reuse
		case errors.Is(err, shared.ErrNotFound):
			instance, err = s.repo.Create(ctx, Instance{Name: name, Code: code})
			if err != nil {
				return result, err
			}
			result.Instances++
		default:
			return result, err
		}

		if len(record) >= 3 {
			sectionName := strings.TrimSpace(record[2])
			if sectionName == "" {
				continue
			}
			existing, err := s.repo.ListSections(ctx, instance.ID)
			if err != nil {
				return result, err
			}
			if hasSection(existing, sectionName) {
				result.Skipped++
				continue
			}
			if _, err := s.repo.CreateSection(ctx, Section{InstanceID: instance.ID, Name: sectionName}); err != nil {
				return result, err
			}
			result.Sections++
		}
	}

	s.logger.Info("instance import finished",
		"instances", result.Instances, "sections", result.Sections, "skipped", result.Skipped)
	return result, nil
}

func isHeaderRow(record []string) bool {
	return len(record) >= 2 && strings.EqualFold(strings.TrimSpace(record[0]), "name")
}

func hasSection(sections []Section, name string) bool {
	for _, s := range sections {
		if strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

func (s *Service) record(ctx context.Context, actor authz.Principal, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "instance",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
