package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/carriershark/backend/internal/domain/entities"
	"github.com/carriershark/backend/internal/domain/repositories"
	"github.com/carriershark/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/carriershark/backend/pkg/errors"
)

// CoverageAdapter implements CoverageRepository
type CoverageAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	vendor string
}

// NewCoverageAdapter creates a new coverage adapter
func NewCoverageAdapter(client *postgres.Client) repositories.CoverageRepository {
	return &CoverageAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		vendor: "carrier-shark",
	}
}

// lineLimits wraps a coverage type's limit in its type-specific key. Types
// without a parsed limit get an empty limits payload.
func lineLimits(coverageType entities.CoverageType, limits entities.CoverageLimits) map[string]int64 {
	payload := map[string]int64{}
	switch coverageType {
	case entities.CoverageTypeAuto:
		if limits.AutoLiability != nil {
			payload["combined_single_limit"] = *limits.AutoLiability
		}
	case entities.CoverageTypeCargo:
		if limits.Cargo != nil {
			payload["cargo"] = *limits.Cargo
		}
	case entities.CoverageTypeGL:
		if limits.GeneralLiability != nil {
			payload["each_occurrence"] = *limits.GeneralLiability
		}
	}
	return payload
}

// Promote upserts the carrier's snapshot with an atomic version increment and
// fully replaces the itemized lines for the resulting version
func (a *CoverageAdapter) Promote(ctx context.Context, carrierID int64, limits entities.CoverageLimits, raw *entities.ParseResult, coverageTypes []entities.CoverageType) (int, error) {
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to encode raw payload", err)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to begin promotion transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	record := goqu.Record{
		"carrier_id":              carrierID,
		"auto_liability_limit":    limits.AutoLiability,
		"cargo_limit":             limits.Cargo,
		"general_liability_limit": limits.GeneralLiability,
		"source":                  entities.CoverageSourceParsed,
		"vendor":                  a.vendor,
		"last_checked_at":         now,
		"snapshot_version":        1,
		"raw_payload":             rawJSON,
	}

	query, args, err := a.db.Insert("coverage_snapshots").
		Rows(record).
		OnConflict(goqu.DoUpdate("carrier_id", goqu.Record{
			"auto_liability_limit":    limits.AutoLiability,
			"cargo_limit":             limits.Cargo,
			"general_liability_limit": limits.GeneralLiability,
			"source":                  entities.CoverageSourceParsed,
			"vendor":                  a.vendor,
			"last_checked_at":         now,
			"snapshot_version":        goqu.L("coverage_snapshots.snapshot_version + 1"),
			"raw_payload":             rawJSON,
		})).
		Returning("snapshot_version").
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build snapshot upsert", err)
	}

	var version int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		return 0, apperrors.NewInternalError("failed to upsert coverage snapshot", err)
	}

	// Full replace: stale coverage types from a prior certificate must not
	// linger under the new version
	del, args, err := a.db.Delete("coverage_lines").
		Where(goqu.Ex{"carrier_id": carrierID, "snapshot_version": version}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build line delete", err)
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		return 0, apperrors.NewInternalError("failed to delete coverage lines", err)
	}

	for _, coverageType := range coverageTypes {
		limitsJSON, err := json.Marshal(lineLimits(coverageType, limits))
		if err != nil {
			return 0, apperrors.NewInternalError("failed to encode line limits", err)
		}

		insert, args, err := a.db.Insert("coverage_lines").
			Rows(goqu.Record{
				"id":               uuid.New().String(),
				"carrier_id":       carrierID,
				"snapshot_version": version,
				"coverage_type":    coverageType,
				"limits":           limitsJSON,
			}).
			ToSQL()
		if err != nil {
			return 0, apperrors.NewInternalError("failed to build line insert", err)
		}
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return 0, apperrors.NewInternalError("failed to insert coverage line", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewInternalError("failed to commit promotion", err)
	}
	return version, nil
}

// GetSnapshot retrieves the carrier's current snapshot
func (a *CoverageAdapter) GetSnapshot(ctx context.Context, carrierID int64) (*entities.CoverageSnapshot, error) {
	query, args, err := a.db.Select(
		"carrier_id", "auto_liability_limit", "cargo_limit",
		"general_liability_limit", "source", "vendor", "last_checked_at",
		"snapshot_version", "raw_payload",
	).From("coverage_snapshots").
		Where(goqu.Ex{"carrier_id": carrierID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build snapshot query", err)
	}

	snapshot := &entities.CoverageSnapshot{}
	var (
		auto, cargo, gl sql.NullInt64
		rawPayload      []byte
	)
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&snapshot.CarrierID,
		&auto,
		&cargo,
		&gl,
		&snapshot.Source,
		&snapshot.Vendor,
		&snapshot.LastCheckedAt,
		&snapshot.SnapshotVersion,
		&rawPayload,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no coverage snapshot for carrier %d", carrierID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get coverage snapshot", err)
	}

	if auto.Valid {
		snapshot.AutoLiabilityLimit = &auto.Int64
	}
	if cargo.Valid {
		snapshot.CargoLimit = &cargo.Int64
	}
	if gl.Valid {
		snapshot.GeneralLiabilityLimit = &gl.Int64
	}
	if len(rawPayload) > 0 {
		var pr entities.ParseResult
		if err := json.Unmarshal(rawPayload, &pr); err == nil {
			snapshot.RawPayload = &pr
		}
	}
	return snapshot, nil
}

// GetLines retrieves the itemized lines for a carrier and version
func (a *CoverageAdapter) GetLines(ctx context.Context, carrierID int64, version int) ([]*entities.CoverageLine, error) {
	query, args, err := a.db.Select(
		"id", "carrier_id", "snapshot_version", "coverage_type", "limits",
	).From("coverage_lines").
		Where(goqu.Ex{"carrier_id": carrierID, "snapshot_version": version}).
		Order(goqu.I("coverage_type").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build lines query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list coverage lines", err)
	}
	defer rows.Close()

	var lines []*entities.CoverageLine
	for rows.Next() {
		line := &entities.CoverageLine{}
		var limitsJSON []byte
		if err := rows.Scan(&line.ID, &line.CarrierID, &line.SnapshotVersion, &line.CoverageType, &limitsJSON); err != nil {
			return nil, apperrors.NewInternalError("failed to scan coverage line", err)
		}
		if len(limitsJSON) > 0 {
			if err := json.Unmarshal(limitsJSON, &line.Limits); err != nil {
				return nil, apperrors.NewInternalError("failed to decode line limits", err)
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}
