package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/logging"
)

// ObjectPutter is the part of *s3.Client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config locates an S3 compatible bucket.
type S3Config struct {
	AccessKey    string
	SecretKey    string
	Region       string
	Bucket       string
	BaseEndpoint string
}

// NewS3Client builds a client with static credentials, optionally against a
// non-AWS endpoint such as MinIO.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Archive buffers events and writes them to S3 as JSON lines. Buffered events
// are written by Flush, which the server calls on a schedule, or as soon as
// the buffer reaches its limit.
type Archive struct {
	client ObjectPutter
	bucket string
	prefix string
	limit  int
	logger logging.Logger
	now    func() time.Time
	encode func(w *bytes.Buffer, e escrow.Event) error

	mu  sync.Mutex
	buf []escrow.Event
}

func NewArchive(client ObjectPutter, bucket, prefix string, limit int, logger logging.Logger) *Archive {
	return &Archive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		limit:  limit,
		logger: logger,
		now:    time.Now,
		encode: encodeLine,
	}
}

func (a *Archive) Publish(ctx context.Context, events []escrow.Event) error {
	a.mu.Lock()
	a.buf = append(a.buf, events...)
	full := a.limit > 0 && len(a.buf) >= a.limit
	a.mu.Unlock()

	if full {
		return a.Flush(ctx)
	}
	return nil
}

// Pending returns the number of buffered events.
func (a *Archive) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

// Flush writes buffered events as one object. On failure the events are put
// back in front of the buffer for the next attempt.
func (a *Archive) Flush(ctx context.Context) error {
	a.mu.Lock()
	batch := a.buf
	a.buf = nil
	a.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	var body bytes.Buffer
	for _, e := range batch {
		if err := a.encode(&body, e); err != nil {
			a.requeue(batch)
			return fmt.Errorf("encode %s event: %w", e.Kind, err)
		}
	}

	key := a.objectKey()
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		a.requeue(batch)
		return fmt.Errorf("put %s: %w", key, err)
	}

	a.logger.Info(ctx, "events archived", "key", key, "count", len(batch))
	return nil
}

// requeue puts batch back in front of events published since it was taken.
func (a *Archive) requeue(batch []escrow.Event) {
	a.mu.Lock()
	a.buf = append(batch, a.buf...)
	a.mu.Unlock()
}

func encodeLine(w *bytes.Buffer, e escrow.Event) error {
	return json.NewEncoder(w).Encode(e)
}

func (a *Archive) objectKey() string {
	d := a.now().UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s.jsonl", a.prefix, d.Year(), d.Month(), d.Day(), uuid.New())
}
