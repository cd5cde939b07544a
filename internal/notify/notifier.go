// Package notify tells sellers and operators about market events. Events are
// read from the signal bus and fanned out to every configured sender
// (Telegram, Discord) after filtering by event type.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// EventSender is a Sender that renders the event itself instead of the
// formatted title and body.
type EventSender interface {
	Sender
	SendEvent(ctx context.Context, evt domain.Event) error
}

// Notifier dispatches market events to one or more Senders. Only event types
// in the allowed set are forwarded; an empty set allows every type.
type Notifier struct {
	senders []Sender
	events  map[domain.EventType]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventType(e)] = true
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

// Notify formats evt and sends it if its type is allowed.
func (n *Notifier) Notify(ctx context.Context, evt domain.Event) error {
	if len(n.events) > 0 && !n.events[evt.Type] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", string(evt.Type)),
		)
		return nil
	}
	return n.dispatch(ctx, evt)
}

// dispatch iterates over all senders and sends the notification. A single
// sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, evt domain.Event) error {
	if len(n.senders) == 0 {
		return nil
	}

	title, message := Format(evt)
	var errs []string
	for _, s := range n.senders {
		var err error
		if es, ok := s.(EventSender); ok {
			err = es.SendEvent(ctx, evt)
		} else {
			err = s.Send(ctx, title, message)
		}
		if err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

var titles = map[domain.EventType]string{
	domain.EventProductListed:  "New listing",
	domain.EventHoldPlaced:     "Item on hold",
	domain.EventHoldCancelled:  "Hold cancelled",
	domain.EventHoldConverted:  "Hold converted",
	domain.EventHoldExpired:    "Hold expired",
	domain.EventBidPlaced:      "New bid",
	domain.EventBidCancelled:   "Bid cancelled",
	domain.EventBidExpired:     "Bid expired",
	domain.EventAskPlaced:      "New ask",
	domain.EventAskCancelled:   "Ask cancelled",
	domain.EventOrderMatched:   "Bid and ask matched",
	domain.EventOrderCompleted: "Sale completed",
	domain.EventOrderCancelled: "Order cancelled",
}

// Format renders an event as a notification title and body.
func Format(evt domain.Event) (title, message string) {
	title, ok := titles[evt.Type]
	if !ok {
		title = string(evt.Type)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "product %s", evt.ProductID)
	if evt.Order != nil {
		fmt.Fprintf(&b, "\norder %s: %s", evt.Order.ID, evt.Order.Amount.StringFixed(domain.AmountScale))
	} else if evt.Amount != nil {
		fmt.Fprintf(&b, "\namount %s", evt.Amount.StringFixed(domain.AmountScale))
	}
	if q := evt.Quote; q != nil {
		if q.HighestBid != nil {
			fmt.Fprintf(&b, "\nhighest bid %s", q.HighestBid.StringFixed(domain.AmountScale))
		}
		if q.LowestAsk != nil {
			fmt.Fprintf(&b, "\nlowest ask %s", q.LowestAsk.StringFixed(domain.AmountScale))
		}
	}
	fmt.Fprintf(&b, "\n%s", evt.At.UTC().Format("2006-01-02 15:04:05 MST"))
	return title, b.String()
}
