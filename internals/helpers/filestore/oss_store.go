package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/sirupsen/logrus"
)

/* =======================================================================
   Aliyun OSS
   One physical bucket; the logical bucket becomes the first key segment.
======================================================================= */

type OSSConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	SecurityToken string
	Bucket        string
	Prefix        string
}

// OSSConfigFromEnv reads ALI_OSS_ENDPOINT, ALI_OSS_ACCESS_KEY,
// ALI_OSS_SECRET_KEY, ALI_OSS_SECURITY_TOKEN, ALI_OSS_BUCKET and ALI_OSS_PREFIX.
func OSSConfigFromEnv() OSSConfig {
	return OSSConfig{
		Endpoint:      normalizeEndpoint(getEnv("ALI_OSS_ENDPOINT")),
		AccessKey:     getEnv("ALI_OSS_ACCESS_KEY"),
		SecretKey:     getEnv("ALI_OSS_SECRET_KEY"),
		SecurityToken: getEnv("ALI_OSS_SECURITY_TOKEN"),
		Bucket:        getEnv("ALI_OSS_BUCKET"),
		Prefix:        getEnv("ALI_OSS_PREFIX"),
	}
}

func normalizeEndpoint(ep string) string {
	ep = strings.TrimSpace(ep)
	if ep == "" {
		return ep
	}
	if strings.HasPrefix(ep, "http://") || strings.HasPrefix(ep, "https://") {
		return ep
	}
	return "https://" + ep
}

type OSSStore struct {
	Bucket *oss.Bucket
	Prefix string
	Log    *logrus.Logger
}

func NewOSSStore(cfg OSSConfig, log *logrus.Logger) (*OSSStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("missing env: ALI_OSS_ENDPOINT/ACCESS_KEY/SECRET_KEY/BUCKET")
	}

	var (
		client *oss.Client
		err    error
	)
	if cfg.SecurityToken != "" {
		client, err = oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, oss.SecurityToken(cfg.SecurityToken))
	} else {
		client, err = oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
	}
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}

	bkt, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}

	if loc, err := client.GetBucketLocation(cfg.Bucket); err != nil {
		var se oss.ServiceError
		if errors.As(err, &se) && se.StatusCode == 403 && se.Code == "AccessDenied" {
			log.Warnf("[FileStore] skip location check, AccessDenied on bucket=%s", cfg.Bucket)
		} else {
			return nil, fmt.Errorf("verify bucket: %w", err)
		}
	} else {
		log.Infof("[FileStore] ✅ OSS bucket %s location: %s", cfg.Bucket, loc)
	}

	return &OSSStore{Bucket: bkt, Prefix: strings.Trim(cfg.Prefix, "/"), Log: log}, nil
}

func (s *OSSStore) objectKey(bucket, path string) string {
	key := strings.Trim(bucket, "/") + "/" + path
	if s.Prefix != "" {
		key = s.Prefix + "/" + key
	}
	return key
}

func (s *OSSStore) Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	p, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ForbidOverWrite(true),
	}
	if err := s.Bucket.PutObject(s.objectKey(bucket, p), bytes.NewReader(data), opts...); err != nil {
		if isConflict(err) {
			return "", fmt.Errorf("%w: %s/%s", ErrObjectExists, bucket, p)
		}
		return "", fmt.Errorf("oss put %s/%s: %w", bucket, p, err)
	}
	return Locator(bucket, p), nil
}

// Delete is idempotent: a missing object is not an error.
func (s *OSSStore) Delete(ctx context.Context, locator string) error {
	bucket, p, err := ParseLocator(locator)
	if err != nil {
		return err
	}
	if err := s.Bucket.DeleteObject(s.objectKey(bucket, p), oss.WithContext(ctx)); err != nil && !isNotFound(err) {
		return fmt.Errorf("oss delete %s: %w", locator, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var se oss.ServiceError
	return errors.As(err, &se) && se.StatusCode == 404
}

func isConflict(err error) bool {
	var se oss.ServiceError
	return errors.As(err, &se) && se.StatusCode == 409
}

var _ FileStore = (*OSSStore)(nil)
