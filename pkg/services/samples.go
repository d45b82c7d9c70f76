package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aspen-bio/aspen-engine/pkg/apperrors"
	"github.com/aspen-bio/aspen-engine/pkg/models"
	"github.com/aspen-bio/aspen-engine/pkg/repositories"
)

// SampleUpload describes one incoming sample. PublicIdentifier may be left
// blank, in which case one is generated in the group's namespace.
type SampleUpload struct {
	PrivateIdentifier string
	PublicIdentifier  string
	Private           bool
	CollectionDate    *time.Time
	Location          string
}

// SampleUploadService registers uploaded samples for a group, assigning
// generated public identifiers to uploads that arrive without one.
type SampleUploadService interface {
	Import(ctx context.Context, groupID int64, pathogenSlug, repositoryName string, uploads []SampleUpload) ([]*models.Sample, error)
}

type sampleUploadService struct {
	sampleRepo   repositories.SampleRepository
	groupRepo    repositories.GroupRepository
	pathogenRepo repositories.PathogenRepository
	logger       *zap.Logger
}

// NewSampleUploadService creates a new SampleUploadService.
func NewSampleUploadService(sampleRepo repositories.SampleRepository, groupRepo repositories.GroupRepository, pathogenRepo repositories.PathogenRepository, logger *zap.Logger) SampleUploadService {
	return &sampleUploadService{
		sampleRepo:   sampleRepo,
		groupRepo:    groupRepo,
		pathogenRepo: pathogenRepo,
		logger:       logger,
	}
}

var _ SampleUploadService = (*sampleUploadService)(nil)

func (s *sampleUploadService) Import(ctx context.Context, groupID int64, pathogenSlug, repositoryName string, uploads []SampleUpload) ([]*models.Sample, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fmt.Errorf("%w: group %d", apperrors.ErrNotFound, groupID)
	}

	pathogen, err := s.pathogenRepo.GetBySlug(ctx, pathogenSlug)
	if err != nil {
		return nil, err
	}
	if pathogen == nil {
		return nil, fmt.Errorf("%w: pathogen %q", apperrors.ErrNotFound, pathogenSlug)
	}

	repository, err := s.pathogenRepo.GetRepositoryByName(ctx, repositoryName)
	if err != nil {
		return nil, err
	}
	if repository == nil {
		return nil, fmt.Errorf("%w: repository %q", apperrors.ErrNotFound, repositoryName)
	}
	// StrainPrefix carries its separator ("hCoV-19/"); the generated
	// identifier supplies its own.
	repoPrefix := strings.TrimSuffix(repository.StrainPrefix, "/")

	samples := make([]*models.Sample, 0, len(uploads))
	for _, upload := range uploads {
		if upload.PrivateIdentifier == "" {
			return samples, fmt.Errorf("upload without private identifier")
		}

		publicID := upload.PublicIdentifier
		if publicID == "" {
			serial, err := s.sampleRepo.NextIdentifierSerial(ctx)
			if err != nil {
				return samples, err
			}
			year := time.Now().Year()
			if upload.CollectionDate != nil {
				year = upload.CollectionDate.Year()
			}
			publicID = models.GeneratePublicIdentifier(repoPrefix, pathogen.Slug, group.Prefix, serial, year)
		}

		sample := &models.Sample{
			SubmittingGroupID: group.ID,
			PathogenID:        pathogen.ID,
			PublicIdentifier:  publicID,
			PrivateIdentifier: upload.PrivateIdentifier,
			Private:           upload.Private,
			CollectionDate:    upload.CollectionDate,
			Location:          upload.Location,
		}
		if err := s.sampleRepo.Create(ctx, sample); err != nil {
			return samples, err
		}
		samples = append(samples, sample)

		s.logger.Info("Registered sample",
			zap.Int64("sample_id", sample.ID),
			zap.Int64("group_id", group.ID),
			zap.String("public_identifier", sample.PublicIdentifier))
	}

	return samples, nil
}
