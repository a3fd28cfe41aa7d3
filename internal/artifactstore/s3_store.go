package artifactstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store keeps one object per artifact under
// <conversation_id>/<created_at>-<id>.yaml. The key embeds the creation
// time so a plain prefix listing comes back in chronological order.
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client:     client,
		bucketName: bucket,
		region:     region,
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3Store) SaveArtifact(ctx context.Context, conversationID, document string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return fmt.Errorf("conversation id is required")
	}
	if strings.TrimSpace(document) == "" {
		return fmt.Errorf("document is empty")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	a := Artifact{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		CreatedAt:      time.Now().UTC(),
	}
	content := []byte(document)
	_, err := s.client.PutObject(ctx, s.bucketName, objectKey(a), bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "application/yaml",
	})
	return err
}

func (s *S3Store) Get(ctx context.Context, conversationID, id string) (Artifact, error) {
	conversationID = strings.TrimSpace(conversationID)
	id = strings.TrimSpace(id)
	if conversationID == "" || id == "" {
		return Artifact{}, fmt.Errorf("conversation id and artifact id are required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return Artifact{}, fmt.Errorf("ensure bucket: %w", err)
	}

	key, ok := s.findKey(ctx, conversationID, id)
	if !ok {
		return Artifact{}, ErrNotFound
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return Artifact{}, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, err
	}
	a, ok := parseKey(key)
	if !ok {
		return Artifact{}, ErrNotFound
	}
	a.YAML = string(data)
	return a, nil
}

func (s *S3Store) List(ctx context.Context, conversationID string) ([]Artifact, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	prefix := conversationPrefix(conversationID)
	out := make([]Artifact, 0, 8)
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if a, ok := parseKey(obj.Key); ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *S3Store) findKey(ctx context.Context, conversationID, id string) (string, bool) {
	prefix := conversationPrefix(conversationID)
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return "", false
		}
		if a, ok := parseKey(obj.Key); ok && a.ID == id {
			return obj.Key, true
		}
	}
	return "", false
}

const keyTimeFormat = "20060102T150405Z"

// conversationPrefix path-escapes the conversation id so an id containing
// "/" cannot span key segments.
func conversationPrefix(conversationID string) string {
	return url.PathEscape(conversationID) + "/"
}

func objectKey(a Artifact) string {
	return conversationPrefix(a.ConversationID) + a.CreatedAt.UTC().Format(keyTimeFormat) + "-" + a.ID + ".yaml"
}

func parseKey(key string) (Artifact, bool) {
	escaped, rest, ok := strings.Cut(key, "/")
	if !ok || escaped == "" {
		return Artifact{}, false
	}
	conv, err := url.PathUnescape(escaped)
	if err != nil || conv == "" {
		return Artifact{}, false
	}
	rest = strings.TrimSuffix(rest, ".yaml")
	stamp, id, ok := strings.Cut(rest, "-")
	if !ok || id == "" {
		return Artifact{}, false
	}
	ts, err := time.Parse(keyTimeFormat, stamp)
	if err != nil {
		return Artifact{}, false
	}
	return Artifact{ID: id, ConversationID: conv, CreatedAt: ts}, true
}
