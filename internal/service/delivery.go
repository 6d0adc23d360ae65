package service

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"filelinker/internal/config"
	"filelinker/internal/model"
)

// Outcome is the result of a delivery attempt as presented to the requester.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeForbidden
	OutcomeJoinRequired
	OutcomeNotFound
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeJoinRequired:
		return "join_required"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Copier re-posts an archived message into another chat.
type Copier interface {
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
}

// DeliveryResult describes what Deliver did. Missing is set for OutcomeJoinRequired.
// MessageIDs lists every copy created in the requester's chat, including those
// created before a failure.
type DeliveryResult struct {
	Outcome    Outcome
	Kind       model.ResolvedKind
	Code       string
	Missing    []config.Channel
	MessageIDs []int
	Err        error
}

// DeliveryService replays archived files to requesters and schedules their removal.
type DeliveryService struct {
	registry  *Registry
	access    *AccessGate
	gate      *MembershipGate
	copier    Copier
	deletions *DeletionScheduler
	archiveID int64
	logger    *log.Logger
}

// NewDeliveryService wires the delivery workflow. archiveID is the storage channel files were copied into.
func NewDeliveryService(
	registry *Registry,
	access *AccessGate,
	gate *MembershipGate,
	copier Copier,
	deletions *DeletionScheduler,
	archiveID int64,
	logger *log.Logger,
) *DeliveryService {
	return &DeliveryService{
		registry:  registry,
		access:    access,
		gate:      gate,
		copier:    copier,
		deletions: deletions,
		archiveID: archiveID,
		logger:    logger.With("component", "delivery"),
	}
}

// Deliver sends the content behind code to the private chat of requesterID.
// Files never go to the chat the request came from, since the checks below only
// cover the requester. A banned requester is refused before any lookup. Copies already made when a
// re-post fails are not rolled back; they are still scheduled for deletion.
func (d *DeliveryService) Deliver(ctx context.Context, code string, requesterID int64) DeliveryResult {
	ctx, span := tracer.Start(ctx, "delivery.Deliver")
	defer span.End()
	span.SetAttributes(attribute.String("share.code", code), attribute.Int64("user.id", requesterID))

	res := d.deliver(ctx, code, requesterID)

	span.SetAttributes(attribute.String("delivery.outcome", res.Outcome.String()))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "delivery failed")
	}
	deliveriesTotal.WithLabelValues(res.Kind.String(), res.Outcome.String()).Inc()
	return res
}

func (d *DeliveryService) deliver(ctx context.Context, code string, requesterID int64) DeliveryResult {
	res := DeliveryResult{Code: code, Kind: model.ResolvedNotFound}
	// A user's private chat id equals the user id.
	chatID := requesterID
	logger := d.logger.With("user_id", requesterID, "code", code)

	banned, err := d.access.IsBanned(ctx, requesterID)
	if err != nil {
		logger.Error("ban_check_failed", "err", err)
		return d.fail(res, fmt.Errorf("check ban: %w", err))
	}
	if banned {
		logger.Info("delivery_refused_banned")
		res.Outcome = OutcomeForbidden
		return res
	}

	if missing := d.gate.Missing(ctx, requesterID); len(missing) > 0 {
		logger.Info("delivery_join_required", "missing", len(missing))
		res.Outcome = OutcomeJoinRequired
		res.Missing = missing
		return res
	}

	resolved, err := d.registry.Resolve(ctx, code)
	if err != nil {
		logger.Error("resolve_failed", "err", err)
		return d.fail(res, err)
	}
	res.Kind = resolved.Kind
	if resolved.Kind == model.ResolvedNotFound {
		logger.Info("delivery_not_found")
		res.Outcome = OutcomeNotFound
		return res
	}

	for _, f := range resolved.Files {
		id, err := d.copier.CopyMessage(ctx, chatID, d.archiveID, f.ArchiveMessageID)
		if err != nil {
			logger.Error("replay_failed", "message_id", f.ArchiveMessageID, "delivered", len(res.MessageIDs), "err", err)
			d.schedule(ctx, logger, chatID, res.MessageIDs)
			return d.fail(res, fmt.Errorf("copy message %d: %w", f.ArchiveMessageID, err))
		}
		res.MessageIDs = append(res.MessageIDs, id)
	}

	d.schedule(ctx, logger, chatID, res.MessageIDs)
	logger.Info("delivered", "kind", resolved.Kind.String(), "files", len(res.MessageIDs))
	res.Outcome = OutcomeDelivered
	return res
}

// schedule logs failures instead of failing the delivery.
func (d *DeliveryService) schedule(ctx context.Context, logger *log.Logger, chatID int64, ids []int) {
	if _, err := d.deletions.Schedule(ctx, chatID, ids); err != nil {
		logger.Error("schedule_deletion_failed", "chat_id", chatID, "messages", ids, "err", err)
	}
}

func (d *DeliveryService) fail(res DeliveryResult, err error) DeliveryResult {
	res.Outcome = OutcomeFailed
	res.Err = err
	return res
}
