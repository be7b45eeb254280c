package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/carriershark/backend/internal/adapters/database"
	"github.com/carriershark/backend/internal/domain/entities"
	"github.com/carriershark/backend/internal/infrastructure/clients/postgres"
	"github.com/carriershark/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	docRepo := database.NewInsuranceDocumentAdapter(pgClient)
	coverageRepo := database.NewCoverageAdapter(pgClient)

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				coverage_lines,
				coverage_snapshots,
				insurance_documents
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	// 1. Seed pending documents awaiting OCR
	pending := []entities.InsuranceDocument{
		{ID: uuid.New().String(), CarrierID: 1001, UploaderRole: entities.UploaderRoleCarrier, DocType: entities.DocumentTypeCOI, StorageKey: "coi/1001/seed-acme.pdf"},
		{ID: uuid.New().String(), CarrierID: 1002, UploaderRole: entities.UploaderRoleAgent, DocType: entities.DocumentTypeCOI, StorageKey: "coi/1002/seed-bluefin.pdf"},
		{ID: uuid.New().String(), CarrierID: 1003, UploaderRole: entities.UploaderRoleCustomer, DocType: entities.DocumentTypeOther, StorageKey: "coi/1003/seed-w9.pdf"},
	}

	for i := range pending {
		pending[i].OCRStatus = entities.OCRStatusNone
		pending[i].Status = entities.DocumentStatusOnFile
		pending[i].UploadedAt = time.Now().UTC()
		if err := docRepo.Create(ctx, &pending[i]); err != nil {
			log.Printf("Failed to create document for carrier %d: %v", pending[i].CarrierID, err)
		}
	}

	// 2. Promote a coverage snapshot for one carrier so the coverage read
	// path has data before any real certificate is parsed
	auto := int64(1_000_000)
	cargo := int64(100_000)
	gl := int64(2_000_000)
	parsed := &entities.ParseResult{
		ACORDLikely: true,
		Confidence:  85,
		Extracted: entities.ExtractedCoverage{
			AutoLiabilityLimit:    &auto,
			CargoLimit:            &cargo,
			GeneralLiabilityLimit: &gl,
			DetectedDates:         []string{"04/01/2025", "04/01/2026"},
			DetectedCoverageTypes: []entities.CoverageType{entities.CoverageTypeGL, entities.CoverageTypeAuto, entities.CoverageTypeCargo},
		},
		OCR: entities.OCRProvenance{Provider: "textract"},
	}

	limits := entities.CoverageLimits{AutoLiability: &auto, Cargo: &cargo, GeneralLiability: &gl}
	version, err := coverageRepo.Promote(ctx, 1001, limits, parsed, parsed.Extracted.DetectedCoverageTypes)
	if err != nil {
		log.Fatalf("Failed to promote seed snapshot: %v", err)
	}
	log.Printf("Promoted seed snapshot for carrier 1001 at version %d", version)

	log.Println("Seeding completed successfully")
}
