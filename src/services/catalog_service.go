package services

import (
	"fmt"

	"github.com/username/optifolio/src/models"
	"github.com/username/optifolio/src/storage"
)

// CatalogService reads the reference tables: programs, strategies, venues
// and their attachments.
type CatalogService struct {
	store *storage.Store
}

func NewCatalogService(store *storage.Store) *CatalogService {
	return &CatalogService{store: store}
}

// ProgramDetail is a program with everything attached to it.
type ProgramDetail struct {
	models.Program
	Strategies []models.Strategy        `json:"strategies"`
	Resources  []models.ProgramResource `json:"resources"`
	Playbooks  []models.ProgramPlaybook `json:"playbooks"`
}

func (s *CatalogService) ListPrograms(scope models.ClientScope) ([]models.Program, error) {
	programs, err := s.store.ListPrograms(scope)
	if err != nil {
		return nil, fmt.Errorf("%w: listing programs: %v", ErrStorage, err)
	}
	return programs, nil
}

// GetProgramDetail loads one program with strategies, resources and
// playbooks. The program must be visible within the caller's scope.
func (s *CatalogService) GetProgramDetail(scope models.ClientScope, programID string) (*ProgramDetail, error) {
	programs, err := s.store.ListPrograms(scope)
	if err != nil {
		return nil, fmt.Errorf("%w: listing programs: %v", ErrStorage, err)
	}
	var program *models.Program
	for i := range programs {
		if programs[i].ID == programID {
			program = &programs[i]
			break
		}
	}
	if program == nil {
		return nil, fmt.Errorf("program %s %w", programID, ErrNotFound)
	}

	detail := &ProgramDetail{Program: *program}
	if detail.Strategies, err = s.store.ProgramStrategies(programID); err != nil {
		return nil, fmt.Errorf("%w: loading strategies for %s: %v", ErrStorage, programID, err)
	}
	if detail.Resources, err = s.store.ProgramResources(programID); err != nil {
		return nil, fmt.Errorf("%w: loading resources for %s: %v", ErrStorage, programID, err)
	}
	if detail.Playbooks, err = s.store.ProgramPlaybooks(programID); err != nil {
		return nil, fmt.Errorf("%w: loading playbooks for %s: %v", ErrStorage, programID, err)
	}
	return detail, nil
}
