package turns

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"cardroom/internal/roomsvc"
	"cardroom/internal/types"
)

// TurnService is the slice of the room service the controller needs.
type TurnService interface {
	SubmitTurn(ctx context.Context, roomID string, turn types.TurnSubmission) (*types.TurnState, error)
}

// Notifier asks peers viewing the same room to re-fetch. In a live session
// this sends the refresh token down the realtime channel.
type Notifier interface {
	NotifyPeers(ctx context.Context) error
}

type OutcomeKind int

const (
	// OutcomeAccepted: the authority took the turn; State holds the result.
	OutcomeAccepted OutcomeKind = iota
	// OutcomeRejected: a client-attributable refusal (illegal move, wrong
	// turn). Message carries the server's verdict. Never retried.
	OutcomeRejected
	// OutcomeFailed: transport-level failure with no verdict. Never retried
	// automatically; the selection is dropped because it may be stale.
	OutcomeFailed
)

type Outcome struct {
	Kind    OutcomeKind
	State   *types.TurnState
	Message string
}

// RetryLaterMessage is surfaced on transport failures, where the server
// gave no verdict of its own.
const RetryLaterMessage = "Something went wrong. Try again later."

// Controller turns a PendingAction into a request and reconciles the
// result. Whatever happens, the buffer is empty afterwards.
type Controller struct {
	svc      TurnService
	notifier Notifier
	pending  PendingAction
	log      *zap.Logger
}

func NewController(svc TurnService, notifier Notifier, log *zap.Logger) *Controller {
	return &Controller{svc: svc, notifier: notifier, log: log}
}

func (c *Controller) Pending() *PendingAction { return &c.pending }

// Submit sends the buffered selection as this turn's action.
func (c *Controller) Submit(ctx context.Context, roomID string) Outcome {
	return c.submit(ctx, roomID, types.TurnSubmission{Cards: c.pending.Cards()})
}

// SubmitSkip sends an explicit empty turn. This is a distinct action, not
// the absence of one: the server records it in the turn history.
func (c *Controller) SubmitSkip(ctx context.Context, roomID string) Outcome {
	return c.submit(ctx, roomID, types.TurnSubmission{Cards: []string{}, Skip: true})
}

func (c *Controller) submit(ctx context.Context, roomID string, turn types.TurnSubmission) Outcome {
	// Clear first: none of the outcomes below leaves the selection valid.
	c.pending.Clear()

	state, err := c.svc.SubmitTurn(ctx, roomID, turn)
	if err != nil {
		if roomsvc.IsRejection(err) {
			c.log.Info("turn rejected", zap.String("room_id", roomID), zap.Error(err))
			return Outcome{Kind: OutcomeRejected, Message: rejectionMessage(err)}
		}
		c.log.Warn("turn submission failed", zap.String("room_id", roomID), zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Message: RetryLaterMessage}
	}

	if err := c.notifier.NotifyPeers(ctx); err != nil {
		// Peers fall back to their own next fetch; the turn itself stands.
		c.log.Warn("peer notify failed", zap.String("room_id", roomID), zap.Error(err))
	}
	return Outcome{Kind: OutcomeAccepted, State: state}
}

func rejectionMessage(err error) string {
	var apiErr *roomsvc.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "The move was not accepted."
}
