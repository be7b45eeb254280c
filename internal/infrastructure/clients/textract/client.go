// Package textract constructs the AWS Textract client used by the block-graph
// OCR adapter.
package textract

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"

	"github.com/carriershark/backend/pkg/config"
)

// NewClient builds a Textract client for the configured region
func NewClient(ctx context.Context, cfg *config.StorageConfig) (*textract.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return textract.NewFromConfig(awsCfg), nil
}
