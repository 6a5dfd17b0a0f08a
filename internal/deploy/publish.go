package deploy

import (
	"context"
	"log/slog"

	s3blob "github.com/alanyoungcy/genmarket/internal/blob/s3"
	"github.com/alanyoungcy/genmarket/internal/domain"
)

// HistoryPublisher saves the record to the deployment history.
type HistoryPublisher struct {
	store domain.DeploymentStore
}

func NewHistoryPublisher(store domain.DeploymentStore) *HistoryPublisher {
	return &HistoryPublisher{store: store}
}

func (p *HistoryPublisher) Name() string { return "history" }

func (p *HistoryPublisher) Publish(ctx context.Context, res *Result) error {
	return p.store.Save(ctx, res.Record)
}

// DeploymentArchiver uploads deployment artifacts to object storage.
type DeploymentArchiver interface {
	ArchiveDeployment(ctx context.Context, art s3blob.DeploymentArtifacts) (string, error)
}

// ArchivePublisher uploads the record, receipt and contract source.
type ArchivePublisher struct {
	archiver DeploymentArchiver
	logger   *slog.Logger
}

func NewArchivePublisher(a DeploymentArchiver, logger *slog.Logger) *ArchivePublisher {
	return &ArchivePublisher{archiver: a, logger: logger}
}

func (p *ArchivePublisher) Name() string { return "archive" }

func (p *ArchivePublisher) Publish(ctx context.Context, res *Result) error {
	prefix, err := p.archiver.ArchiveDeployment(ctx, s3blob.DeploymentArtifacts{
		Record:  res.Record,
		Receipt: res.Receipt,
		Source:  res.Source,
	})
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "deployment archived", slog.String("prefix", prefix))
	return nil
}

// SuccessNotifier announces successful deployments (see notify.Notifier).
type SuccessNotifier interface {
	DeploymentSucceeded(ctx context.Context, rec domain.DeploymentRecord) error
}

// NotifyPublisher adapts a SuccessNotifier to Publisher.
type NotifyPublisher struct {
	n SuccessNotifier
}

func NewNotifyPublisher(n SuccessNotifier) *NotifyPublisher {
	return &NotifyPublisher{n: n}
}

func (p *NotifyPublisher) Name() string { return "notify" }

func (p *NotifyPublisher) Publish(ctx context.Context, res *Result) error {
	return p.n.DeploymentSucceeded(ctx, res.Record)
}

// AuditPublisher logs deployment outcomes, both successes and failures.
type AuditPublisher struct {
	audit domain.AuditStore
}

func NewAuditPublisher(a domain.AuditStore) *AuditPublisher {
	return &AuditPublisher{audit: a}
}

func (p *AuditPublisher) Name() string { return "audit" }

func (p *AuditPublisher) Publish(ctx context.Context, res *Result) error {
	return p.audit.Log(ctx, "deploy.succeeded", map[string]any{
		"network":          res.Record.Network,
		"chain_id":         res.Record.ChainID,
		"contract_address": res.Record.ContractAddress,
		"deployer":         res.Record.Deployer,
		"transaction_hash": res.Record.TransactionHash,
		"status":           string(res.Receipt.StatusName),
	})
}

func (p *AuditPublisher) DeploymentFailed(ctx context.Context, hash string, cause error) error {
	return p.audit.Log(ctx, "deploy.failed", map[string]any{
		"transaction_hash": hash,
		"error":            cause.Error(),
	})
}

var (
	_ Publisher       = (*HistoryPublisher)(nil)
	_ Publisher       = (*ArchivePublisher)(nil)
	_ Publisher       = (*NotifyPublisher)(nil)
	_ Publisher       = (*AuditPublisher)(nil)
	_ FailureNotifier = (*AuditPublisher)(nil)
)
