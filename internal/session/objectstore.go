package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

const objectStoreSessionPrefix = "sessions"

// ObjectStoreConfig captures configuration for the S3-compatible session store.
type ObjectStoreConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string
	UseSSL    bool
	PathStyle bool
}

// ObjectStore persists each session as a JSON object in an S3-compatible bucket.
type ObjectStore struct {
	client *minio.Client
	cfg    ObjectStoreConfig
}

// NewObjectStore initializes an object storage backed session store.
func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	cfg, err := normalizeObjectConfig(cfg)
	if err != nil {
		return nil, err
	}

	options := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}

	client, err := minio.New(cfg.Endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("session objectstore: create client: %w", err)
	}
	return &ObjectStore{client: client, cfg: cfg}, nil
}

func normalizeObjectConfig(cfg ObjectStoreConfig) (ObjectStoreConfig, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.Region = strings.TrimSpace(cfg.Region)
	cfg.Prefix = strings.Trim(strings.TrimSpace(cfg.Prefix), "/")

	if cfg.Endpoint == "" {
		return cfg, fmt.Errorf("session objectstore: endpoint is required")
	}
	if cfg.Bucket == "" {
		return cfg, fmt.Errorf("session objectstore: bucket is required")
	}
	if cfg.AccessKey == "" {
		return cfg, fmt.Errorf("session objectstore: access key is required")
	}
	if cfg.SecretKey == "" {
		return cfg, fmt.Errorf("session objectstore: secret key is required")
	}
	return cfg, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("session objectstore: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err = s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("session objectstore: create bucket: %w", err)
	}
	return nil
}

// Save uploads record as <prefix>/sessions/<id>.json.
func (s *ObjectStore) Save(ctx context.Context, record *Record) error {
	if err := validateRecord("session objectstore", record); err != nil {
		return err
	}
	if !validID(record.ID) {
		return fmt.Errorf("session objectstore: invalid session id %q", record.ID)
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("session objectstore: marshal record: %w", err)
	}
	key := s.objectKey(record.ID)
	_, err = s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("session objectstore: put object %s: %w", key, err)
	}
	return nil
}

// Load downloads the record with id. Expired objects are removed.
func (s *ObjectStore) Load(ctx context.Context, id string) (*Record, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	key := s.objectKey(id)
	object, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		if isObjectNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session objectstore: fetch %s: %w", key, err)
	}
	defer func() {
		if errClose := object.Close(); errClose != nil {
			log.Debugf("session objectstore: close object: %v", errClose)
		}
	}()
	data, err := io.ReadAll(object)
	if err != nil {
		if isObjectNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session objectstore: read %s: %w", key, err)
	}
	record := &Record{}
	if err = json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("session objectstore: unmarshal %s: %w", key, err)
	}
	if record.Expired(time.Now()) {
		if errRemove := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); errRemove != nil && !isObjectNotFound(errRemove) {
			log.WithError(errRemove).Warn("session objectstore: failed to remove expired session")
		}
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *ObjectStore) objectKey(id string) string {
	return prefixedKey(s.cfg.Prefix, objectStoreSessionPrefix+"/"+id+".json")
}

func prefixedKey(prefix, key string) string {
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return strings.TrimLeft(prefix+"/"+key, "/")
}

func isObjectNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound {
		return true
	}
	switch resp.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}
