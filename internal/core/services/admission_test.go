package services

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// validLicence passes the checksum: letters ABCDEFGHIJ sum to 695,
// which is JB in base 36.
const validLicence = "RO-ABCD-EFGH-IJJB"

func seedDocuments(store *mockDocStore, n int) {
	for i := 0; i < n; i++ {
		id := "doc-" + strconv.Itoa(i)
		store.docs[id] = &domain.Document{ID: id, Status: domain.StatusCompleted}
	}
}

func TestAdmit_UnderTrialLimit(t *testing.T) {
	store := newMockDocStore()
	seedDocuments(store, domain.TrialDocumentLimit-1)

	svc := NewAdmissionService(store, newMockConfigStore())
	assert.NoError(t, svc.Admit(context.Background()))
}

func TestAdmit_AtTrialLimit(t *testing.T) {
	store := newMockDocStore()
	seedDocuments(store, domain.TrialDocumentLimit)

	svc := NewAdmissionService(store, newMockConfigStore())
	err := svc.Admit(context.Background())
	assert.ErrorIs(t, err, domain.ErrAdmissionDenied)
}

func TestAdmit_ValidLicenceLiftsLimit(t *testing.T) {
	store := newMockDocStore()
	seedDocuments(store, domain.TrialDocumentLimit*4)

	configs := newMockConfigStore()
	configs.settings.LicenseKey = validLicence

	svc := NewAdmissionService(store, configs)
	assert.NoError(t, svc.Admit(context.Background()))
}

func TestAdmit_InvalidLicenceFallsBackToTrialLimit(t *testing.T) {
	store := newMockDocStore()
	seedDocuments(store, domain.TrialDocumentLimit)

	configs := newMockConfigStore()
	configs.settings.LicenseKey = "RO-0000-0000-0000"

	svc := NewAdmissionService(store, configs)
	err := svc.Admit(context.Background())
	assert.ErrorIs(t, err, domain.ErrAdmissionDenied)
}

func TestAdmit_ConfigLoadFailure(t *testing.T) {
	store := newMockDocStore()
	configs := newMockConfigStore()
	configs.loadErr = assert.AnError

	svc := NewAdmissionService(store, configs)
	err := svc.Admit(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAdmissionDenied)
}
