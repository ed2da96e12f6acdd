// Package services implements the application logic of the metadata API:
// record registration and listing, presigned upload issuance, and batched
// payload downloads.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/avolkov/snapsync/internal/common"
	sc "github.com/avolkov/snapsync/internal/server/config"
	"github.com/avolkov/snapsync/internal/server/models"
	"github.com/avolkov/snapsync/internal/server/repositories/files"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// seams for tests
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in)
	}
)

// FileService implements the metadata API over the files repository and an
// S3-compatible object store.
type FileService struct {
	repo   files.Repository
	config *sc.Config
}

func NewFileService(repo files.Repository, config *sc.Config) *FileService {
	return &FileService{repo: repo, config: config}
}

// StorageKey derives the deterministic logical path of a payload:
// <owner>/<set>/<class>/<localId><ext>. Determinism makes registration
// retries after a partial failure reuse the already-uploaded object instead
// of orphaning it.
func StorageKey(owner, set, localID, filename, contentType string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("%s/%s/%s/%s%s", owner, set, common.FileClass, localID, ext)
}

func (s *FileService) getS3Client() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// IssueUploadURL presigns a PUT for the record's deterministic logical path.
func (s *FileService) IssueUploadURL(ctx context.Context, owner, set, localID, filename, contentType string) (string, string, error) {
	if localID == "" || contentType == "" {
		return "", "", common.ErrInvalidRecord
	}

	client, err := s.getS3Client()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := StorageKey(owner, set, localID, filename, contentType)

	req, err := presignPutObject(newS3PresignClient(client), ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// Register stores the metadata of an uploaded record and returns its server
// id. Idempotent per (owner, set, localId).
func (s *FileService) Register(ctx context.Context, owner, set string, f *models.File) (string, error) {
	if f.LocalID == "" || f.ContentType == "" || f.StorageKey == "" {
		return "", common.ErrInvalidRecord
	}
	if err := s.repo.EnsureSet(ctx, owner, set); err != nil {
		return "", err
	}

	f.Owner = owner
	f.SetName = set
	return s.repo.Register(ctx, f)
}

// Update applies a metadata-only update to a registered record.
func (s *FileService) Update(ctx context.Context, owner, set, id string, f *models.File) error {
	if f.Version == 0 || f.UpdatedAt == 0 {
		return common.ErrInvalidRecord
	}
	f.Owner = owner
	f.SetName = set
	f.ID = id
	return s.repo.UpdateMeta(ctx, f)
}

// SoftDelete tombstones a registered record.
func (s *FileService) SoftDelete(ctx context.Context, owner, set, id string, version, updatedAt, deletedAt int64) error {
	if version == 0 || updatedAt == 0 || deletedAt == 0 {
		return common.ErrInvalidRecord
	}
	return s.repo.SoftDelete(ctx, owner, set, id, version, updatedAt, deletedAt)
}

// List returns metadata of a set filtered by watermark and tombstone
// visibility, newest first.
func (s *FileService) List(ctx context.Context, owner, set string, since int64, includeDeleted bool) ([]*models.File, error) {
	return s.repo.SelectUpdated(ctx, owner, set, since, includeDeleted)
}

// ListSets returns the overview of the owner's sets, optionally restricted
// to sets in the given lifecycle status.
func (s *FileService) ListSets(ctx context.Context, owner, status string) ([]*models.SetOverview, error) {
	overviews, err := s.repo.Representatives(ctx, owner)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return overviews, nil
	}
	filtered := make([]*models.SetOverview, 0, len(overviews))
	for _, o := range overviews {
		if o.Status == status {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

// BatchGet downloads payloads for the given storage keys, in key order. A
// missing object or a key outside the owner's prefix yields a nil entry
// instead of failing the whole batch.
func (s *FileService) BatchGet(ctx context.Context, owner string, keys []string) ([][]byte, error) {
	client, err := s.getS3Client()
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	payloads := make([][]byte, len(keys))

	for i, key := range keys {
		if !strings.HasPrefix(key, owner+"/") {
			continue
		}
		out, err := getObject(client, ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
				continue
			}
			return nil, fmt.Errorf("error fetching %s: %w", key, err)
		}
		b, err := io.ReadAll(out.Body)
		_ = out.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading %s: %w", key, err)
		}
		payloads[i] = b
	}

	return payloads, nil
}

// PurgeTombstones removes tombstones older than the retention window and
// returns the number of purged rows.
func (s *FileService) PurgeTombstones(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixMilli()
	return s.repo.PurgeTombstones(ctx, cutoff)
}
