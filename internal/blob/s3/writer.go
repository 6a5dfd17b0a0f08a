package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// partSize is the multipart chunk size, the S3 minimum of 5 MiB.
const partSize int64 = 5 * 1024 * 1024

// Writer implements domain.ArtifactWriter. Uploads go through the transfer
// manager so that large contract sources or archives are split into parts.
type Writer struct {
	client   *Client
	uploader *manager.Uploader
}

// NewWriter creates a Writer for the client's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		client: c,
		uploader: manager.NewUploader(c.s3, func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
	}
}

// Put uploads data to name under the client's prefix.
func (w *Writer) Put(ctx context.Context, name string, data io.Reader, contentType string) error {
	key := w.client.objectKey(name)
	input := &s3.PutObjectInput{
		Bucket: aws.String(w.client.bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := w.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", key, err)
	}
	return nil
}

var _ domain.ArtifactWriter = (*Writer)(nil)
