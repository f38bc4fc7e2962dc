package checkin

import (
	"context"
	"errors"
	"sync"

	"github.com/zhouzirui/hotel-checkin/backend/internal/model/face"
	"github.com/zhouzirui/hotel-checkin/backend/internal/model/reservation"
)

var (
	// ErrConflict 该编排已有一个动作在途，后到的请求被拒绝
	ErrConflict = errors.New("another action is already in flight")
	// ErrClosed 编排已经结束
	ErrClosed = errors.New("orchestration is closed")
	// ErrUnknownReservation 预订不属于本次确认的来宾
	ErrUnknownReservation = errors.New("reservation does not belong to this guest")
	// ErrNotEligible 预订当前状态不允许该动作
	ErrNotEligible = errors.New("reservation is not eligible for this action")
)

// Action 编排完成时执行过的动作
type Action string

const (
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
	ActionDismiss  Action = "dismiss"
)

// Client 预订系统的动作端协作接口
type Client interface {
	CheckIn(ctx context.Context, reservationID, email string) error
	CheckOut(ctx context.Context, reservationID, email string) error
}

// Orchestration is the bounded workflow scoped to one confirmed subject.
// It is created when the aggregator confirms a guest and destroyed once an
// action completes or the guest dismisses the reservation picker. Submissions
// may arrive from request goroutines while the session worker owns the
// lifecycle, so the in-flight flag is guarded by a mutex.
type Orchestration struct {
	SessionID string
	Guest     face.Detection

	client Client

	mu           sync.Mutex
	reservations []reservation.Reservation
	inFlight     bool
	closed       bool
	completed    Action
}

// New snapshots the guest's reservations into a fresh orchestration.
func New(sessionID string, guest face.Detection, list []reservation.Reservation, client Client) *Orchestration {
	return &Orchestration{
		SessionID:    sessionID,
		Guest:        guest,
		client:       client,
		reservations: append([]reservation.Reservation(nil), list...),
	}
}

// Reservations returns a copy of the snapshot taken at confirmation time.
func (o *Orchestration) Reservations() []reservation.Reservation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]reservation.Reservation(nil), o.reservations...)
}

// SubmitCheckIn performs the check-in action for one of the guest's
// reservations. A second submission while one is in flight fails with
// ErrConflict; a collaborator failure leaves the orchestration open so the
// guest can retry.
func (o *Orchestration) SubmitCheckIn(ctx context.Context, reservationID string) error {
	return o.submit(ctx, reservationID, ActionCheckIn)
}

// SubmitCheckOut performs the check-out action, with the same concurrency
// and retry semantics as SubmitCheckIn.
func (o *Orchestration) SubmitCheckOut(ctx context.Context, reservationID string) error {
	return o.submit(ctx, reservationID, ActionCheckOut)
}

func (o *Orchestration) submit(ctx context.Context, reservationID string, action Action) error {
	if err := o.begin(reservationID, action); err != nil {
		return err
	}

	var err error
	switch action {
	case ActionCheckIn:
		err = o.client.CheckIn(ctx, reservationID, o.Guest.Email)
	case ActionCheckOut:
		err = o.client.CheckOut(ctx, reservationID, o.Guest.Email)
	}

	o.mu.Lock()
	o.inFlight = false
	if err == nil {
		o.closed = true
		o.completed = action
	}
	o.mu.Unlock()
	return err
}

// begin 占用在途标记并校验预订归属与状态
func (o *Orchestration) begin(reservationID string, action Action) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.inFlight {
		return ErrConflict
	}

	var target *reservation.Reservation
	for i := range o.reservations {
		if o.reservations[i].ID == reservationID {
			target = &o.reservations[i]
			break
		}
	}
	if target == nil {
		return ErrUnknownReservation
	}

	switch action {
	case ActionCheckIn:
		if !target.CanCheckIn() {
			return ErrNotEligible
		}
	case ActionCheckOut:
		if !target.CanCheckOut() {
			return ErrNotEligible
		}
	}

	o.inFlight = true
	return nil
}

// Close ends the orchestration without an action (picker dismissed or the
// session is going away).
func (o *Orchestration) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		o.completed = ActionDismiss
	}
}

// Done reports whether the orchestration has ended and with which action.
func (o *Orchestration) Done() (Action, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.completed, o.closed
}
