package domain

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"
)

// ArtifactWriter stores deployment artifacts and audit exports under
// slash-separated keys.
type ArtifactWriter interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}

// Object names inside a deployment prefix.
const (
	ArtifactRecord  = "deployed_contract.json"
	ArtifactReceipt = "receipt.json"
	ArtifactSource  = "contract.py"
)

// DeploymentPrefix is deployments/<network>/<tx hash>.
func DeploymentPrefix(rec DeploymentRecord) string {
	network := rec.Network
	if network == "" {
		network = "unknown"
	}
	return path.Join("deployments", network, rec.TransactionHash)
}

// AuditArchiveKey partitions audit exports by the cutoff's month, e.g.
// archive/audit/2026-01.jsonl.
func AuditArchiveKey(before time.Time) string {
	return fmt.Sprintf("archive/audit/%s.jsonl", before.Format("2006-01"))
}
