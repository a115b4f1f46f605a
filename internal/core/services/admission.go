package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Ensure AdmissionService implements the interface.
var _ driven.AdmissionProvider = (*AdmissionService)(nil)

// AdmissionService gates new documents on the trial limit. A valid
// licence key lifts the limit entirely.
type AdmissionService struct {
	docStore    driven.DocumentStore
	configStore driven.ConfigStore
}

// NewAdmissionService creates a new admission service.
func NewAdmissionService(docStore driven.DocumentStore, configStore driven.ConfigStore) *AdmissionService {
	return &AdmissionService{
		docStore:    docStore,
		configStore: configStore,
	}
}

// Admit checks whether a new document may enter the pipeline.
func (s *AdmissionService) Admit(ctx context.Context) error {
	settings, err := s.configStore.Load()
	if err != nil {
		return fmt.Errorf("loading settings for admission: %w", err)
	}

	if settings.LicenseKey != "" {
		if err := domain.ValidateLicenseKey(settings.LicenseKey); err == nil {
			return nil
		}
		logger.Warn("Configured licence key %s is invalid, applying trial limit",
			domain.MaskLicenseKey(settings.LicenseKey))
	}

	count, err := s.docStore.CountDocuments(ctx)
	if err != nil {
		return fmt.Errorf("counting documents for admission: %w", err)
	}

	if count >= domain.TrialDocumentLimit {
		logger.Info("Trial limit reached: %d of %d documents", count, domain.TrialDocumentLimit)
		return fmt.Errorf("trial limit of %d documents reached: %w",
			domain.TrialDocumentLimit, domain.ErrAdmissionDenied)
	}
	return nil
}
