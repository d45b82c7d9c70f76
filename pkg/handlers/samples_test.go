package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/auth"
	"github.com/aspen-bio/aspen-engine/pkg/models"
)

// stubAccessService returns a fixed set of visible samples.
type stubAccessService struct {
	visible []*models.Sample
	err     error
}

func (s *stubAccessService) FilterVisibleSamples(ctx context.Context, requestedIDs []string, user *models.UserContext) ([]*models.Sample, error) {
	return s.visible, s.err
}

// stubReconcileService marks a fixed set of identifiers as repository strains.
type stubReconcileService struct {
	matched map[string]bool
	err     error
}

func (s *stubReconcileService) MatchRepositoryStrains(ctx context.Context, ids map[string]bool, pathogen *models.Pathogen, repository *models.PublicRepository) (map[string]bool, error) {
	return s.matched, s.err
}

// stubPathogenService resolves a single pathogen/repository pair.
type stubPathogenService struct {
	pathogen   *models.Pathogen
	repository *models.PublicRepository
	lineages   []string
	err        error
}

func (s *stubPathogenService) GetPathogenAndRepository(ctx context.Context, pathogenSlug, repositoryName string) (*models.Pathogen, *models.PublicRepository, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.pathogen, s.repository, nil
}

func (s *stubPathogenService) KnownLineages(ctx context.Context, pathogenSlug string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.lineages, nil
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	user := &models.UserContext{UserID: 1, GroupRoles: map[int64]string{1: models.RoleMember}}
	return req.WithContext(auth.SetUserContext(req.Context(), user))
}

func TestSamplesHandler_ValidateIDs(t *testing.T) {
	access := &stubAccessService{
		visible: []*models.Sample{
			{ID: 1, PublicIdentifier: "pub-1", PrivateIdentifier: "priv-1"},
		},
	}
	handler := NewSamplesHandler(access, &stubReconcileService{}, &stubPathogenService{}, zap.NewNop())

	req := authedRequest(http.MethodPost, "/v2/samples/validate_ids",
		`{"pathogen": "sc2", "sample_ids": ["pub-1", "priv-1", "ghost"]}`)
	rec := httptest.NewRecorder()

	handler.ValidateIDs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp ValidateIDsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.MissingSampleIDs) != 1 || resp.MissingSampleIDs[0] != "ghost" {
		t.Errorf("MissingSampleIDs = %v, want [ghost]", resp.MissingSampleIDs)
	}
}

func TestSamplesHandler_ValidateIDs_RepositoryFallback(t *testing.T) {
	access := &stubAccessService{}
	reconcile := &stubReconcileService{
		matched: map[string]bool{"hCoV-19/USA/X-1/2026": true},
	}
	pathogens := &stubPathogenService{
		pathogen:   &models.Pathogen{ID: 1, Slug: "sc2"},
		repository: &models.PublicRepository{ID: 1, Name: "gisaid", StrainPrefix: "hCoV-19/"},
	}
	handler := NewSamplesHandler(access, reconcile, pathogens, zap.NewNop())

	// Nothing visible locally; one identifier resolves as a repository
	// strain, the other stays missing.
	req := authedRequest(http.MethodPost, "/v2/samples/validate_ids",
		`{"pathogen": "sc2", "repository": "gisaid", "sample_ids": ["hCoV-19/USA/X-1/2026", "ghost"]}`)
	rec := httptest.NewRecorder()

	handler.ValidateIDs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp ValidateIDsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.MissingSampleIDs) != 1 || resp.MissingSampleIDs[0] != "ghost" {
		t.Errorf("MissingSampleIDs = %v, want [ghost]", resp.MissingSampleIDs)
	}
}

func TestSamplesHandler_ValidateIDs_UnknownRepository(t *testing.T) {
	handler := NewSamplesHandler(&stubAccessService{}, &stubReconcileService{},
		&stubPathogenService{err: apperrors.ErrNotFound}, zap.NewNop())

	req := authedRequest(http.MethodPost, "/v2/samples/validate_ids",
		`{"pathogen": "sc2", "repository": "nope", "sample_ids": ["ghost"]}`)
	rec := httptest.NewRecorder()

	handler.ValidateIDs(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestSamplesHandler_ValidateIDs_ResolveFailure(t *testing.T) {
	// An infrastructure failure while resolving the pathogen/repository
	// pair is not a lookup miss and must not masquerade as one.
	handler := NewSamplesHandler(&stubAccessService{}, &stubReconcileService{},
		&stubPathogenService{err: errors.New("connection refused")}, zap.NewNop())

	req := authedRequest(http.MethodPost, "/v2/samples/validate_ids",
		`{"pathogen": "sc2", "repository": "gisaid", "sample_ids": ["ghost"]}`)
	rec := httptest.NewRecorder()

	handler.ValidateIDs(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestSamplesHandler_ValidateIDs_MissingPathogen(t *testing.T) {
	handler := NewSamplesHandler(&stubAccessService{}, &stubReconcileService{}, &stubPathogenService{}, zap.NewNop())

	req := authedRequest(http.MethodPost, "/v2/samples/validate_ids", `{"sample_ids": ["x"]}`)
	rec := httptest.NewRecorder()

	handler.ValidateIDs(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestSamplesHandler_ValidateIDs_Unauthenticated(t *testing.T) {
	handler := NewSamplesHandler(&stubAccessService{}, &stubReconcileService{}, &stubPathogenService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/v2/samples/validate_ids",
		strings.NewReader(`{"pathogen": "sc2", "sample_ids": ["x"]}`))
	rec := httptest.NewRecorder()

	handler.ValidateIDs(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}
