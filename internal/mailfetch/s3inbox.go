package mailfetch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/guest-reconciler/internal/config"
	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/awscfg"
	"github.com/ignite/guest-reconciler/internal/pkg/logger"
)

// objectAPI is the subset of the S3 client the inbox uses.
type objectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Inbox reads raw messages stored by an SES receipt rule. Each object
// under Prefix is one RFC 822 message; consuming it moves it under
// ProcessedPrefix.
type S3Inbox struct {
	client          objectAPI
	bucket          string
	prefix          string
	processedPrefix string
	maxMessages     int
}

// NewS3Inbox creates an inbox backed by the AWS SDK S3 client.
func NewS3Inbox(ctx context.Context, cfg config.S3InboxConfig) (*S3Inbox, error) {
	awsCfg, err := awscfg.Load(ctx, awscfg.Options{Region: cfg.Region, Profile: cfg.AWSProfile})
	if err != nil {
		return nil, err
	}
	return newS3Inbox(s3.NewFromConfig(awsCfg), cfg), nil
}

func newS3Inbox(client objectAPI, cfg config.S3InboxConfig) *S3Inbox {
	return &S3Inbox{
		client:          client,
		bucket:          cfg.Bucket,
		prefix:          cfg.Prefix,
		processedPrefix: cfg.ProcessedPrefix,
		maxMessages:     cfg.MaxMessages,
	}
}

// FetchAttachments extracts XML attachments from every pending message.
// Messages without an XML part stay in place and are reported.
func (in *S3Inbox) FetchAttachments(ctx context.Context) (*FetchResult, error) {
	keys, err := in.pendingKeys(ctx)
	if err != nil {
		return nil, domain.CollaboratorError("s3inbox.list", err)
	}

	res := &FetchResult{MessagesFound: len(keys)}
	for _, key := range keys {
		raw, err := in.get(ctx, key)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("message %s: %v", key, err))
			continue
		}
		atts, err := ExtractXMLAttachments(raw)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("message %s: %v", key, err))
			continue
		}
		if len(atts) == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("message %s: no XML attachment", key))
			continue
		}
		for _, a := range atts {
			res.Payloads = append(res.Payloads, Payload{MessageID: key, Filename: a.Filename, Data: a.Data})
		}

		if err := in.markProcessed(ctx, key); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("message %s: move to processed: %v", key, err))
		}
	}

	logger.Info("s3 inbox sweep finished",
		"bucket", in.bucket, "prefix", in.prefix,
		"messages", res.MessagesFound, "payloads", len(res.Payloads), "errors", len(res.Errors))
	return res, nil
}

func (in *S3Inbox) pendingKeys(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(in.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(in.bucket),
		Prefix: aws.String(in.prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if obj.Size == nil || *obj.Size == 0 || strings.HasSuffix(key, "/") {
				continue
			}
			if in.processedPrefix != "" && strings.HasPrefix(key, in.processedPrefix) {
				continue
			}
			keys = append(keys, key)
			if in.maxMessages > 0 && len(keys) >= in.maxMessages {
				return keys, nil
			}
		}
	}
	return keys, nil
}

func (in *S3Inbox) get(ctx context.Context, key string) ([]byte, error) {
	out, err := in.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(in.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// markProcessed copies the message under the processed prefix and deletes
// the original. The original is kept when the copy fails.
func (in *S3Inbox) markProcessed(ctx context.Context, key string) error {
	dest := in.processedPrefix + strings.TrimPrefix(key, in.prefix)
	if _, err := in.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(in.bucket),
		CopySource: aws.String(in.bucket + "/" + key),
		Key:        aws.String(dest),
	}); err != nil {
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	if _, err := in.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(in.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete original: %w", err)
	}
	return nil
}
