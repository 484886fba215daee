package services

import (
	"context"

	"github.com/collab-platform/backend/internal/events"
	"github.com/collab-platform/backend/internal/models"
	"github.com/collab-platform/backend/internal/push"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier fans a committed transition out to open sockets and, for absent
// recipients, to push. Delivery is best effort: failures are logged and
// never roll back state.
type Notifier struct {
	publisher events.Publisher
	presence  events.Presence
	push      push.Sender
	userRepo  userStore
	log       *zap.Logger
}

func NewNotifier(publisher events.Publisher, presence events.Presence, sender push.Sender, userRepo userStore, log *zap.Logger) *Notifier {
	return &Notifier{publisher: publisher, presence: presence, push: sender, userRepo: userRepo, log: log}
}

// Fanout publishes the new message and state to the negotiation stream and
// notifies both parties on the user stream. The recipient who does not have
// the chat open also gets a push.
func (n *Notifier) Fanout(ctx context.Context, neg *models.Negotiation, msg *models.Message) {
	n.publish(ctx, events.StreamNegotiation, events.Event{
		Type: events.EventMessageCreated,
		Payload: map[string]any{
			"negotiation_id": neg.ID.String(),
			"flow_state":     neg.FlowState,
			"awaiting_role":  neg.AwaitingRole,
			"message":        msg,
		},
	})

	for _, userID := range []uuid.UUID{neg.RequesterID, neg.ProviderID} {
		n.publish(ctx, events.StreamUser, events.Event{
			Type: events.EventNegotiationUpdated,
			Payload: map[string]any{
				"user_id":        userID.String(),
				"negotiation_id": neg.ID.String(),
				"flow_state":     neg.FlowState,
				"awaiting_role":  neg.AwaitingRole,
			},
		})
	}

	if msg.ReceiverID != nil {
		n.pushIfAbsent(ctx, neg, *msg.ReceiverID, msg)
	}
}

// PaymentUpdate announces a ledger event on the negotiation stream.
func (n *Notifier) PaymentUpdate(ctx context.Context, neg *models.Negotiation, stage string, amountPaise int64) {
	n.publish(ctx, events.StreamNegotiation, events.Event{
		Type: events.EventPaymentUpdate,
		Payload: map[string]any{
			"negotiation_id": neg.ID.String(),
			"flow_state":     neg.FlowState,
			"stage":          stage,
			"amount_paise":   amountPaise,
		},
	})
}

func (n *Notifier) publish(ctx context.Context, stream string, event events.Event) {
	if err := n.publisher.Publish(ctx, stream, event); err != nil {
		n.log.Warn("event publish failed",
			zap.String("stream", stream),
			zap.String("type", event.Type),
			zap.Error(err))
	}
}

func (n *Notifier) pushIfAbsent(ctx context.Context, neg *models.Negotiation, userID uuid.UUID, msg *models.Message) {
	present, err := n.presence.IsPresent(ctx, neg.ID, userID)
	if err != nil {
		n.log.Warn("presence lookup failed", zap.Error(err))
	}
	if present {
		return
	}

	token, err := n.userRepo.DeviceToken(ctx, userID)
	if err != nil || token == nil || *token == "" {
		return
	}
	err = n.push.Send(ctx, push.Notification{
		DeviceToken: *token,
		Title:       "Collaboration update",
		Body:        msg.Body,
		Data: map[string]any{
			"negotiation_id": neg.ID.String(),
			"flow_state":     neg.FlowState,
		},
	})
	if err != nil {
		n.log.Warn("push delivery failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}
