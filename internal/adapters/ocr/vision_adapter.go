package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carriershark/backend/internal/domain/providers"
	apperrors "github.com/carriershark/backend/pkg/errors"
)

// VisionConfig holds the text-annotation adapter's tunables
type VisionConfig struct {
	Endpoint  string
	APIKey    string
	Bucket    string
	KeyPrefix string
	MaxWait   time.Duration
	PollBase  time.Duration
}

// VisionAdapter is the fallback OCR backend: asynchronous batch text
// detection over page images. It produces full text and a confidence average
// but no key-value or table structuring.
type VisionAdapter struct {
	storage providers.ObjectStorage
	client  *http.Client
	cfg     VisionConfig
}

// NewVisionAdapter creates a text-annotation OCR provider
func NewVisionAdapter(storage providers.ObjectStorage, cfg VisionConfig) *VisionAdapter {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.PollBase <= 0 {
		cfg.PollBase = defaultPollBase
	}
	return &VisionAdapter{
		storage: storage,
		client:  &http.Client{Timeout: 30 * time.Second},
		cfg:     cfg,
	}
}

// Name returns the provider identifier recorded on documents
func (a *VisionAdapter) Name() string {
	return "vision"
}

type visionOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type visionOutput struct {
	Responses []struct {
		FullTextAnnotation struct {
			Text  string `json:"text"`
			Pages []struct {
				Blocks []struct {
					Paragraphs []struct {
						Words []struct {
							Confidence float64 `json:"confidence"`
						} `json:"words"`
					} `json:"paragraphs"`
				} `json:"blocks"`
			} `json:"pages"`
		} `json:"fullTextAnnotation"`
	} `json:"responses"`
}

// NormalizeDocument uploads the PDF, starts a batch text-detection job, waits
// for it, then reads the per-page output files back from storage.
func (a *VisionAdapter) NormalizeDocument(ctx context.Context, pdf []byte, keyHint string) (*providers.NormalizedDocument, error) {
	if len(pdf) == 0 {
		return nil, apperrors.NewValidationError("pdf buffer is required")
	}

	suffix := strings.Split(uuid.New().String(), "-")[0]
	inputKey := fmt.Sprintf("%s/%s/%d-%s.pdf", a.cfg.KeyPrefix, keyHint, time.Now().Unix(), suffix)
	outputPrefix := fmt.Sprintf("%s/%s/%d-%s-out/", a.cfg.KeyPrefix, keyHint, time.Now().Unix(), suffix)

	if err := a.storage.Put(ctx, a.cfg.Bucket, inputKey, pdf, "application/pdf"); err != nil {
		return nil, err
	}

	opName, err := a.startBatchAnnotate(ctx, inputKey, outputPrefix)
	if err != nil {
		return nil, err
	}

	log.Info().Str("operation", opName).Str("key", inputKey).Msg("vision batch annotation started")

	if err := a.awaitOperation(ctx, opName); err != nil {
		return nil, err
	}

	text, avg, pages, err := a.readOutputs(ctx, outputPrefix)
	if err != nil {
		return nil, err
	}

	doc := &providers.NormalizedDocument{
		Provider:         a.Name(),
		JobID:            opName,
		JobStatus:        "SUCCEEDED",
		InputLocationURI: fmt.Sprintf("s3://%s/%s", a.cfg.Bucket, inputKey),
		FullText:         text,
		Confidence:       providers.ConfidenceSummary{LineCount: pages},
		Meta:             providers.DocumentMeta{Pages: pages},
	}
	if avg != nil {
		doc.Confidence.Average = avg
	}
	return doc, nil
}

func (a *VisionAdapter) startBatchAnnotate(ctx context.Context, inputKey, outputPrefix string) (string, error) {
	payload := map[string]any{
		"requests": []map[string]any{{
			"inputConfig": map[string]any{
				"gcsSource": map[string]string{"uri": fmt.Sprintf("gs://%s/%s", a.cfg.Bucket, inputKey)},
				"mimeType":  "application/pdf",
			},
			"features": []map[string]string{{"type": "DOCUMENT_TEXT_DETECTION"}},
			"outputConfig": map[string]any{
				"gcsDestination": map[string]string{"uri": fmt.Sprintf("gs://%s/%s", a.cfg.Bucket, outputPrefix)},
				"batchSize":      "20",
			},
		}},
	}
	body, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/v1/files:asyncBatchAnnotate?key=%s", a.cfg.Endpoint, a.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", apperrors.NewExternalError("failed to start batch annotation", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewExternalError(fmt.Sprintf("batch annotation returned status %d", resp.StatusCode), nil)
	}

	var op visionOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return "", apperrors.NewExternalError("failed to decode batch annotation response", err)
	}
	if op.Name == "" {
		return "", apperrors.NewRemoteFailedError("batch annotation returned no operation name")
	}
	return op.Name, nil
}

func (a *VisionAdapter) awaitOperation(ctx context.Context, opName string) error {
	started := time.Now()

	for attempt := 0; ; attempt++ {
		delay := time.Duration(attempt+1) * a.cfg.PollBase
		if capDelay := pollCapMultiplier * a.cfg.PollBase; delay > capDelay {
			delay = capDelay
		}

		select {
		case <-ctx.Done():
			return apperrors.NewTimeoutError(fmt.Sprintf("batch annotation cancelled after %s", time.Since(started).Round(time.Second)))
		case <-time.After(delay):
		}

		url := fmt.Sprintf("%s/v1/%s?key=%s", a.cfg.Endpoint, opName, a.cfg.APIKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return apperrors.NewExternalError("failed to poll batch annotation", err)
		}

		var op visionOperation
		decodeErr := json.NewDecoder(resp.Body).Decode(&op)
		resp.Body.Close()
		if decodeErr != nil {
			return apperrors.NewExternalError("failed to decode operation status", decodeErr)
		}

		if op.Done {
			if op.Error != nil {
				return apperrors.NewRemoteFailedError(fmt.Sprintf("batch annotation failed: %s", op.Error.Message))
			}
			return nil
		}

		if elapsed := time.Since(started); elapsed > a.cfg.MaxWait {
			return apperrors.NewTimeoutError(fmt.Sprintf("batch annotation timed out after %s", elapsed.Round(time.Second)))
		}
	}
}

// readOutputs concatenates the per-page output files written next to the
// input object. Word confidences arrive on a 0-1 scale and are converted to
// 0-100 so every provider hands the orchestrator the same scale.
func (a *VisionAdapter) readOutputs(ctx context.Context, outputPrefix string) (string, *float64, int, error) {
	keys, err := a.storage.List(ctx, a.cfg.Bucket, outputPrefix)
	if err != nil {
		return "", nil, 0, err
	}
	if len(keys) == 0 {
		return "", nil, 0, apperrors.NewRemoteFailedError("batch annotation produced no output files")
	}

	var texts []string
	var confSum float64
	confCount := 0
	pages := 0

	for _, key := range keys {
		data, err := a.storage.Get(ctx, a.cfg.Bucket, key)
		if err != nil {
			return "", nil, 0, err
		}

		var out visionOutput
		if err := json.Unmarshal(data, &out); err != nil {
			return "", nil, 0, apperrors.NewRemoteFailedError(fmt.Sprintf("unreadable annotation output %s", key))
		}

		for _, r := range out.Responses {
			pages++
			if r.FullTextAnnotation.Text != "" {
				texts = append(texts, r.FullTextAnnotation.Text)
			}
			for _, p := range r.FullTextAnnotation.Pages {
				for _, b := range p.Blocks {
					for _, para := range b.Paragraphs {
						for _, w := range para.Words {
							confSum += w.Confidence
							confCount++
						}
					}
				}
			}
		}
	}

	var avg *float64
	if confCount > 0 {
		v := math.Round(confSum/float64(confCount)*100*100) / 100
		avg = &v
	}
	return strings.Join(texts, "\n"), avg, pages, nil
}
