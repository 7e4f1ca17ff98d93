package events

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
)

const (
	objectCreatedEvent = "s3:ObjectCreated:*"
	IntakePrefix       = "applications/"
	IntakeSuffix       = ".json"
)

// IntakeEvent announces a new application object in the intake bucket.
type IntakeEvent struct {
	ApplicantID string
	ObjectKey   string
	EventName   string
}

type IntakeEventSource interface {
	Run(ctx context.Context, handler func(context.Context, IntakeEvent) error) error
}

type MinioIntakeEventSource struct {
	client *minio.Client
	bucket string
}

func NewMinioIntakeEventSource(client *minio.Client, bucket string) *MinioIntakeEventSource {
	return &MinioIntakeEventSource{client: client, bucket: bucket}
}

// Run blocks until ctx is cancelled or the notification stream fails. Records
// whose key does not match applications/<id>.json are skipped.
func (s *MinioIntakeEventSource) Run(ctx context.Context, handler func(context.Context, IntakeEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, IntakePrefix, IntakeSuffix, []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, record := range info.Records {
				objectKey, err := decodeObjectKey(record.S3.Object.Key)
				if err != nil {
					continue
				}
				applicantID, err := parseIntakeKey(objectKey)
				if err != nil {
					continue
				}
				event := IntakeEvent{
					ApplicantID: applicantID,
					ObjectKey:   objectKey,
					EventName:   record.EventName,
				}
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

// parseIntakeKey extracts <id> from applications/<id>.json.
func parseIntakeKey(objectKey string) (string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	if !strings.HasPrefix(cleaned, IntakePrefix) || !strings.HasSuffix(cleaned, IntakeSuffix) {
		return "", fmt.Errorf("object key %q does not match %s<id>%s", objectKey, IntakePrefix, IntakeSuffix)
	}
	name := strings.TrimPrefix(cleaned, IntakePrefix)
	if strings.Contains(name, "/") {
		return "", fmt.Errorf("object key %q is nested", objectKey)
	}
	id := strings.TrimSpace(strings.TrimSuffix(name, path.Ext(name)))
	if id == "" {
		return "", fmt.Errorf("object key %q missing applicant id", objectKey)
	}
	return id, nil
}
