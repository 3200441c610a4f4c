package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidify/internal/domain"
)

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(input.Body)
	f.inputs = append(f.inputs, input)
	f.bodies = append(f.bodies, body)
	return &manager.UploadOutput{Key: input.Key}, nil
}

func testResult() *domain.CycleResult {
	return &domain.CycleResult{
		CycleID:        "3f1c2a9e-0000-4000-8000-000000000001",
		TokenID:        "tok-1",
		Mint:           "MintAAA",
		Succeeded:      true,
		Phase:          domain.PhaseGraduated,
		PoolIdentifier: "PoolAAA",
		FinalState:     domain.StateComplete,
		FeesClaimed:    20_500_000,
		BuybackSpent:   10_000_000,
		LiquiditySpent: 10_000_000,
		SharesBurned:   5_000,
		OperationLog: []domain.Operation{
			{Kind: domain.OperationClaimFees, ExternalReference: "sigClaim"},
			{Kind: domain.OperationBurnLP, ExternalReference: "sigBurn"},
		},
		StartedAt:  1_700_000_000_000, // 2023-11-14 UTC
		FinishedAt: 1_700_000_004_000,
	}
}

func TestS3Archiver_Archive(t *testing.T) {
	up := &fakeUploader{}
	a := NewWithUploader(up, "bucket", "")

	key, err := a.Archive(context.Background(), testResult())
	require.NoError(t, err)
	assert.Equal(t, "cycles/MintAAA/2023/11/14/3f1c2a9e-0000-4000-8000-000000000001.json", key)

	require.Len(t, up.inputs, 1)
	assert.Equal(t, "bucket", aws.ToString(up.inputs[0].Bucket))
	assert.Equal(t, "application/json", aws.ToString(up.inputs[0].ContentType))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(up.bodies[0], &doc))
	assert.Equal(t, "success", doc["status"])
	assert.Equal(t, "graduated", doc["phase"])
	assert.Equal(t, float64(20_500_000), doc["fees_claimed"])

	ops := doc["operations"].([]any)
	require.Len(t, ops, 2)
	first := ops[0].(map[string]any)
	assert.Equal(t, "claim_fees", first["kind"])
	assert.Equal(t, "https://solscan.io/tx/sigClaim", first["explorer"])
}

func TestS3Archiver_CustomPrefix(t *testing.T) {
	up := &fakeUploader{}
	a := NewWithUploader(up, "bucket", "/prod/liquidify/")

	key, err := a.Archive(context.Background(), testResult())
	require.NoError(t, err)
	assert.Equal(t, "prod/liquidify/MintAAA/2023/11/14/3f1c2a9e-0000-4000-8000-000000000001.json", key)
}

func TestS3Archiver_Errors(t *testing.T) {
	a := NewWithUploader(&fakeUploader{err: errors.New("denied")}, "bucket", "")

	_, err := a.Archive(context.Background(), testResult())
	assert.ErrorContains(t, err, "denied")

	_, err = a.Archive(context.Background(), &domain.CycleResult{})
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Bucket: "b"})
	assert.Error(t, err)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
}
