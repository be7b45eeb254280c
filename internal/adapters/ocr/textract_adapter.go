package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carriershark/backend/internal/domain/providers"
	apperrors "github.com/carriershark/backend/pkg/errors"
	"github.com/carriershark/backend/pkg/retry"
)

const (
	// maxResultPages guards against a remote pagination cursor that never
	// terminates
	maxResultPages = 1000

	// pollCapMultiplier caps the increasing poll delay at 5x the base
	pollCapMultiplier = 5

	defaultPollBase = time.Second
	defaultMaxWait  = 150 * time.Second
)

// TextractAPI is the subset of the Textract client the adapter uses
type TextractAPI interface {
	StartDocumentAnalysis(ctx context.Context, params *textract.StartDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.StartDocumentAnalysisOutput, error)
	GetDocumentAnalysis(ctx context.Context, params *textract.GetDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.GetDocumentAnalysisOutput, error)
}

// TextractConfig holds the adapter's tunables
type TextractConfig struct {
	Bucket    string
	KeyPrefix string

	// MaxWait bounds the total time spent polling one job; zero means the
	// 150s default
	MaxWait time.Duration

	// PollBase is the unit of the increasing poll schedule (1x, 2x, 3x, then
	// capped at 5x); zero means 1s
	PollBase time.Duration
}

// TextractAdapter runs asynchronous document analysis against AWS Textract
// and normalizes the resulting block graph.
type TextractAdapter struct {
	api      TextractAPI
	storage  providers.ObjectStorage
	cfg      TextractConfig
	retryCfg retry.Config
}

// NewTextractAdapter creates a Textract-backed OCR provider
func NewTextractAdapter(api TextractAPI, storage providers.ObjectStorage, cfg TextractConfig) *TextractAdapter {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.PollBase <= 0 {
		cfg.PollBase = defaultPollBase
	}
	return &TextractAdapter{
		api:      api,
		storage:  storage,
		cfg:      cfg,
		retryCfg: retry.DefaultConfig(),
	}
}

// Name returns the provider identifier recorded on documents
func (a *TextractAdapter) Name() string {
	return "textract"
}

// NormalizeDocument uploads the PDF, starts a forms+tables analysis job,
// polls it to a terminal state, pages through every result and normalizes the
// block graph.
func (a *TextractAdapter) NormalizeDocument(ctx context.Context, pdf []byte, keyHint string) (*providers.NormalizedDocument, error) {
	if len(pdf) == 0 {
		return nil, apperrors.NewValidationError("pdf buffer is required")
	}

	key := a.objectKey(keyHint)
	if err := a.storage.Put(ctx, a.cfg.Bucket, key, pdf, "application/pdf"); err != nil {
		return nil, err
	}

	jobID, err := a.startAnalysis(ctx, key)
	if err != nil {
		return nil, err
	}

	log.Info().Str("job_id", jobID).Str("key", key).Msg("textract job started")

	status, err := a.awaitJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	blocks, meta, err := a.collectResults(ctx, jobID)
	if err != nil {
		return nil, err
	}

	text, pairs, kvMap, tbls, conf := normalizeBlocks(blocks)

	return &providers.NormalizedDocument{
		Provider:         a.Name(),
		JobID:            jobID,
		JobStatus:        status,
		InputLocationURI: fmt.Sprintf("s3://%s/%s", a.cfg.Bucket, key),
		FullText:         text,
		Blocks:           blocks,
		KeyValuePairs:    pairs,
		KeyValueMap:      kvMap,
		Tables:           tbls,
		Confidence:       conf,
		Meta:             meta,
	}, nil
}

// objectKey builds a collision-resistant storage key
func (a *TextractAdapter) objectKey(hint string) string {
	suffix := strings.Split(uuid.New().String(), "-")[0]
	if hint != "" {
		return fmt.Sprintf("%s/%s/%d-%s.pdf", a.cfg.KeyPrefix, hint, time.Now().Unix(), suffix)
	}
	return fmt.Sprintf("%s/%d-%s.pdf", a.cfg.KeyPrefix, time.Now().Unix(), suffix)
}

func (a *TextractAdapter) startAnalysis(ctx context.Context, key string) (string, error) {
	var out *textract.StartDocumentAnalysisOutput
	err := retry.DoWithLog(ctx, a.retryCfg, func() error {
		var callErr error
		out, callErr = a.api.StartDocumentAnalysis(ctx, &textract.StartDocumentAnalysisInput{
			DocumentLocation: &types.DocumentLocation{
				S3Object: &types.S3Object{
					Bucket: aws.String(a.cfg.Bucket),
					Name:   aws.String(key),
				},
			},
			FeatureTypes: []types.FeatureType{
				types.FeatureTypeForms,
				types.FeatureTypeTables,
			},
		})
		return callErr
	}, func(attempt int, retryErr error, nextDelay time.Duration) {
		log.Warn().Err(retryErr).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("retrying start document analysis")
	})
	if err != nil {
		return "", apperrors.NewExternalError("failed to start document analysis", err)
	}
	if out.JobId == nil || *out.JobId == "" {
		return "", apperrors.NewRemoteFailedError("document analysis returned no job id")
	}
	return *out.JobId, nil
}

// awaitJob polls the job on an increasing delay schedule until it reaches a
// terminal state or the wait budget runs out.
func (a *TextractAdapter) awaitJob(ctx context.Context, jobID string) (string, error) {
	started := time.Now()
	lastStatus := string(types.JobStatusInProgress)

	for attempt := 0; ; attempt++ {
		delay := time.Duration(attempt+1) * a.cfg.PollBase
		if capDelay := pollCapMultiplier * a.cfg.PollBase; delay > capDelay {
			delay = capDelay
		}

		select {
		case <-ctx.Done():
			return "", apperrors.NewTimeoutError(fmt.Sprintf("document analysis cancelled after %s (last status %s)", time.Since(started).Round(time.Second), lastStatus))
		case <-time.After(delay):
		}

		var out *textract.GetDocumentAnalysisOutput
		err := retry.Do(ctx, a.retryCfg, func() error {
			var callErr error
			out, callErr = a.api.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
				JobId:      aws.String(jobID),
				MaxResults: aws.Int32(1),
			})
			return callErr
		})
		if err != nil {
			return "", apperrors.NewExternalError("failed to poll document analysis", err)
		}

		lastStatus = string(out.JobStatus)
		switch out.JobStatus {
		case types.JobStatusSucceeded, types.JobStatusPartialSuccess:
			return lastStatus, nil
		case types.JobStatusFailed:
			msg := "document analysis job failed"
			if out.StatusMessage != nil {
				msg = fmt.Sprintf("document analysis job failed: %s", *out.StatusMessage)
			}
			return "", apperrors.NewRemoteFailedError(msg)
		}

		if elapsed := time.Since(started); elapsed > a.cfg.MaxWait {
			return "", apperrors.NewTimeoutError(fmt.Sprintf("document analysis timed out after %s (last status %s)", elapsed.Round(time.Second), lastStatus))
		}
	}
}

// collectResults follows the pagination cursor across every result page
func (a *TextractAdapter) collectResults(ctx context.Context, jobID string) ([]providers.Block, providers.DocumentMeta, error) {
	var blocks []providers.Block
	meta := providers.DocumentMeta{}
	var nextToken *string

	for page := 0; ; page++ {
		if page >= maxResultPages {
			return nil, meta, apperrors.NewRemoteFailedError(fmt.Sprintf("result pagination exceeded %d pages", maxResultPages))
		}

		var out *textract.GetDocumentAnalysisOutput
		err := retry.Do(ctx, a.retryCfg, func() error {
			var callErr error
			out, callErr = a.api.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
				JobId:     aws.String(jobID),
				NextToken: nextToken,
			})
			return callErr
		})
		if err != nil {
			return nil, meta, apperrors.NewExternalError("failed to fetch analysis results", err)
		}

		for _, b := range out.Blocks {
			blocks = append(blocks, convertBlock(b))
		}
		for _, w := range out.Warnings {
			if w.ErrorCode != nil {
				meta.Warnings = append(meta.Warnings, *w.ErrorCode)
			}
		}
		if out.DocumentMetadata != nil && out.DocumentMetadata.Pages != nil {
			meta.Pages = int(*out.DocumentMetadata.Pages)
		}

		if out.NextToken == nil {
			return blocks, meta, nil
		}
		nextToken = out.NextToken
	}
}

// convertBlock maps an SDK block onto the domain block type
func convertBlock(b types.Block) providers.Block {
	block := providers.Block{
		Kind:     providers.BlockKind(b.BlockType),
		Selected: b.SelectionStatus == types.SelectionStatusSelected,
	}
	if b.Id != nil {
		block.ID = *b.Id
	}
	if b.Text != nil {
		block.Text = *b.Text
	}
	if b.Confidence != nil {
		block.Confidence = float64(*b.Confidence)
	}
	if b.RowIndex != nil {
		block.RowIndex = int(*b.RowIndex)
	}
	if b.ColumnIndex != nil {
		block.ColumnIndex = int(*b.ColumnIndex)
	}
	if b.RowSpan != nil {
		block.RowSpan = int(*b.RowSpan)
	}
	if b.ColumnSpan != nil {
		block.ColumnSpan = int(*b.ColumnSpan)
	}
	if b.Page != nil {
		block.Page = int(*b.Page)
	}
	for _, et := range b.EntityTypes {
		block.EntityTypes = append(block.EntityTypes, string(et))
	}
	if len(b.Relationships) > 0 {
		block.Relationships = make(map[providers.RelationKind][]string, len(b.Relationships))
		for _, rel := range b.Relationships {
			kind := providers.RelationKind(rel.Type)
			block.Relationships[kind] = append(block.Relationships[kind], rel.Ids...)
		}
	}
	return block
}
