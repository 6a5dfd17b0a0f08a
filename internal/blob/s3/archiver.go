package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// Archiver uploads deployment artifacts and audit log exports through a
// domain.ArtifactWriter.
type Archiver struct {
	writer domain.ArtifactWriter
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. audit may be nil when only deployment
// artifacts are uploaded.
func NewArchiver(writer domain.ArtifactWriter, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, audit: audit}
}

// DeploymentArtifacts is everything kept for one deployment.
type DeploymentArtifacts struct {
	Record  domain.DeploymentRecord
	Receipt *domain.Receipt
	Source  []byte
}

// ArchiveDeployment uploads the record, the final receipt and the contract
// source under deployments/<network>/<tx hash>/ and returns that prefix.
func (a *Archiver) ArchiveDeployment(ctx context.Context, art DeploymentArtifacts) (string, error) {
	dir := domain.DeploymentPrefix(art.Record)

	record, err := json.MarshalIndent(art.Record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal deployment record: %w", err)
	}
	if err := a.writer.Put(ctx, path.Join(dir, domain.ArtifactRecord), bytes.NewReader(record), "application/json"); err != nil {
		return "", err
	}

	if art.Receipt != nil {
		receipt, err := json.MarshalIndent(art.Receipt, "", "  ")
		if err != nil {
			return "", fmt.Errorf("s3blob: marshal receipt: %w", err)
		}
		if err := a.writer.Put(ctx, path.Join(dir, domain.ArtifactReceipt), bytes.NewReader(receipt), "application/json"); err != nil {
			return "", err
		}
	}

	if len(art.Source) > 0 {
		if err := a.writer.Put(ctx, path.Join(dir, domain.ArtifactSource), bytes.NewReader(art.Source), "text/x-python"); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// ArchiveAudit exports audit entries created before the cutoff as JSONL to
// archive/audit/YYYY-MM.jsonl and returns the number of entries written.
func (a *Archiver) ArchiveAudit(ctx context.Context, before time.Time) (int, error) {
	if a.audit == nil {
		return 0, fmt.Errorf("s3blob: archive audit: no audit store configured")
	}
	entries, err := a.audit.List(ctx, domain.AuditQuery{ListOpts: domain.ListOpts{Until: &before}})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	key := domain.AuditArchiveKey(before)
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}
	return len(entries), nil
}

func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
