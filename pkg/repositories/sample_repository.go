package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aspen-bio/aspen-engine/pkg/database"
	"github.com/aspen-bio/aspen-engine/pkg/models"
)

// SampleRepository provides data access for samples.
type SampleRepository interface {
	Create(ctx context.Context, sample *models.Sample) error
	GetByID(ctx context.Context, id int64) (*models.Sample, error)

	// FindByAnyIdentifier returns samples whose public OR private
	// identifier is in ids, with no group filtering. System admin path.
	FindByAnyIdentifier(ctx context.Context, ids []string) ([]*models.Sample, error)

	// FindVisible returns samples matching ids under the visibility rules:
	// a public-identifier match is visible if the sample belongs to one of
	// ownGroupIDs, or is not private and belongs to one of grantorGroupIDs
	// (groups that granted the requesting user's groups viewer or higher);
	// a private-identifier match is visible only within ownGroupIDs.
	FindVisible(ctx context.Context, ids []string, ownGroupIDs, grantorGroupIDs []int64) ([]*models.Sample, error)

	// NextIdentifierSerial reserves a serial for a generated public
	// identifier. Serials draw from the samples id sequence, so they are
	// unique across concurrent uploads without touching any row.
	NextIdentifierSerial(ctx context.Context) (int64, error)

	// Delete removes a sample. Owned entities cascade at the schema level.
	Delete(ctx context.Context, id int64) error
}

type sampleRepository struct{}

// NewSampleRepository creates a new SampleRepository.
func NewSampleRepository() SampleRepository {
	return &sampleRepository{}
}

var _ SampleRepository = (*sampleRepository)(nil)

const sampleColumns = `id, submitting_group_id, pathogen_id, public_identifier, private_identifier, private, collection_date, location, uploaded_at`

func (r *sampleRepository) Create(ctx context.Context, sample *models.Sample) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if sample.UploadedAt.IsZero() {
		sample.UploadedAt = time.Now()
	}

	query := `
		INSERT INTO samples (submitting_group_id, pathogen_id, public_identifier, private_identifier, private, collection_date, location, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query,
		sample.SubmittingGroupID, sample.PathogenID,
		sample.PublicIdentifier, sample.PrivateIdentifier, sample.Private,
		sample.CollectionDate, sample.Location, sample.UploadedAt,
	).Scan(&sample.ID)
	if err != nil {
		return fmt.Errorf("failed to create sample: %w", err)
	}

	return nil
}

func (r *sampleRepository) GetByID(ctx context.Context, id int64) (*models.Sample, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	row := scope.Conn.QueryRow(ctx, `SELECT `+sampleColumns+` FROM samples WHERE id = $1`, id)
	sample, err := scanSampleRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return sample, nil
}

func (r *sampleRepository) FindByAnyIdentifier(ctx context.Context, ids []string) ([]*models.Sample, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT `+sampleColumns+` FROM samples
		WHERE public_identifier = ANY($1) OR private_identifier = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples by identifier: %w", err)
	}
	defer rows.Close()

	return scanSampleRows(rows)
}

func (r *sampleRepository) FindVisible(ctx context.Context, ids []string, ownGroupIDs, grantorGroupIDs []int64) ([]*models.Sample, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	// Private identifiers never cross group boundaries; a private-flagged
	// sample is invisible through grants even when a grant exists.
	rows, err := scope.Conn.Query(ctx, `
		SELECT `+sampleColumns+` FROM samples
		WHERE (public_identifier = ANY($1)
		       AND (submitting_group_id = ANY($2)
		            OR (NOT private AND submitting_group_id = ANY($3))))
		   OR (private_identifier = ANY($1) AND submitting_group_id = ANY($2))
		ORDER BY id`,
		ids, ownGroupIDs, grantorGroupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query visible samples: %w", err)
	}
	defer rows.Close()

	return scanSampleRows(rows)
}

func (r *sampleRepository) NextIdentifierSerial(ctx context.Context) (int64, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	var serial int64
	err := scope.Conn.QueryRow(ctx,
		`SELECT nextval(pg_get_serial_sequence('samples', 'id'))`,
	).Scan(&serial)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve identifier serial: %w", err)
	}
	return serial, nil
}

func (r *sampleRepository) Delete(ctx context.Context, id int64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	_, err := scope.Conn.Exec(ctx, `DELETE FROM samples WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sample: %w", err)
	}
	return nil
}

func scanSampleRow(row pgx.Row) (*models.Sample, error) {
	var sample models.Sample
	err := row.Scan(
		&sample.ID, &sample.SubmittingGroupID, &sample.PathogenID,
		&sample.PublicIdentifier, &sample.PrivateIdentifier, &sample.Private,
		&sample.CollectionDate, &sample.Location, &sample.UploadedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sample row: %w", err)
	}
	return &sample, nil
}

func scanSampleRows(rows pgx.Rows) ([]*models.Sample, error) {
	var samples []*models.Sample
	for rows.Next() {
		sample, err := scanSampleRow(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sample rows: %w", err)
	}
	return samples, nil
}
