// Package notify fans deployment and transaction notices out to chat
// channels (Telegram, Discord), filtered by event type.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// Event types accepted in the notify.events filter.
const (
	EventDeploySucceeded = "deploy.succeeded"
	EventDeployFailed    = "deploy.failed"
	EventTxSubmitted     = "tx.submitted"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches notifications to one or more Senders. Notify forwards
// only allowed event types; an empty allow list admits everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Notify sends to all senders if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// DeploymentSucceeded announces a finished deployment.
func (n *Notifier) DeploymentSucceeded(ctx context.Context, rec domain.DeploymentRecord) error {
	msg := fmt.Sprintf("Contract: %s\nDeployer: %s\nTx: %s\nNetwork: %s (%d)",
		rec.ContractAddress, rec.Deployer, rec.TransactionHash, rec.Network, rec.ChainID)
	return n.Notify(ctx, EventDeploySucceeded, "Deployment succeeded", msg)
}

// DeploymentFailed announces a failed deployment. hash may be empty when the
// run failed before submission.
func (n *Notifier) DeploymentFailed(ctx context.Context, hash string, cause error) error {
	msg := "Error: " + cause.Error()
	if hash != "" {
		msg = "Tx: " + hash + "\n" + msg
	}
	return n.Notify(ctx, EventDeployFailed, "Deployment failed", msg)
}

// PublishTx implements domain.TxEventPublisher. Delivery errors are logged.
func (n *Notifier) PublishTx(ctx context.Context, ev domain.TxEvent) {
	msg := fmt.Sprintf("Function: %s\nTx: %s\nSender: %s", ev.Function, ev.Hash, ev.Sender)
	if err := n.Notify(ctx, EventTxSubmitted, "Transaction submitted", msg); err != nil {
		n.logger.WarnContext(ctx, "tx notification failed",
			slog.String("hash", ev.Hash),
			slog.String("error", err.Error()),
		)
	}
}

// dispatch delivers to every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

var _ domain.TxEventPublisher = (*Notifier)(nil)
