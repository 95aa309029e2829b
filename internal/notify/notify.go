// Package notify tells the choir's chat channels about emergency seat
// changes (Slack, Discord, etc.).
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/seatplan/internal/emergency"
	"go.uber.org/zap"
)

// Color constants for message severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
)

// Event is an emergency change on a published arrangement.
type Event struct {
	ArrangementID    uint
	ArrangementTitle string
	Date             time.Time
	Record           emergency.Record
}

// Message is an Event rendered for chat.
type Message struct {
	Title    string
	Body     string
	Severity string // "info", "warning", "success"
	Color    string
	Fields   []Field
}

// Field is a key-value pair displayed under a message.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Notifier delivers change notifications.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Format renders ev as a chat message.
func Format(ev Event) Message {
	rec := ev.Record
	name := rec.MemberName
	if name == "" {
		name = rec.MemberID
	}

	var msg Message
	switch rec.Type {
	case emergency.Unavailable:
		msg.Title = fmt.Sprintf("%s is unavailable", name)
		msg.Severity = "warning"
		msg.Color = ColorWarning
	case emergency.Available:
		msg.Title = fmt.Sprintf("%s is back", name)
		msg.Severity = "success"
		msg.Color = ColorSuccess
	default:
		msg.Title = fmt.Sprintf("Seat change for %s", name)
		msg.Severity = "info"
		msg.Color = ColorInfo
	}

	lines := make([]string, 0, len(rec.Steps))
	for i, s := range rec.Steps {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, s.Describe()))
	}
	msg.Body = strings.Join(lines, "\n")

	arr := ev.ArrangementTitle
	if arr == "" {
		arr = "#" + strconv.FormatUint(uint64(ev.ArrangementID), 10)
	}
	if !ev.Date.IsZero() {
		arr += " (" + ev.Date.Format("2006-01-02") + ")"
	}
	msg.Fields = append(msg.Fields,
		Field{Name: "Arrangement", Value: arr},
		Field{Name: "Part", Value: string(rec.Part), Short: true},
		Field{Name: "Mode", Value: rec.ProcessMode, Short: true},
	)
	if rec.RemovedFrom != nil {
		msg.Fields = append(msg.Fields, Field{Name: "Vacated seat", Value: rec.RemovedFrom.Key(), Short: true})
	}
	if rec.AddedTo != nil {
		msg.Fields = append(msg.Fields, Field{Name: "New seat", Value: rec.AddedTo.Key(), Short: true})
	}
	msg.Fields = append(msg.Fields, Field{Name: "Members moved", Value: strconv.Itoa(rec.MovedMemberCount), Short: true})
	return msg
}

// Multi fans a notification out to several notifiers. Every notifier is
// tried; failures are logged and joined into the returned error.
type Multi struct {
	notifiers []Notifier
	log       *zap.Logger
}

// NewMulti creates a Multi. A nil log discards failure logs.
func NewMulti(log *zap.Logger, notifiers ...Notifier) *Multi {
	if log == nil {
		log = zap.NewNop()
	}
	return &Multi{notifiers: notifiers, log: log}
}

// Len returns the number of wrapped notifiers.
func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			m.log.Warn("notification failed",
				zap.String("notifier", fmt.Sprintf("%T", n)),
				zap.Uint("arrangement", ev.ArrangementID),
				zap.String("record", ev.Record.ID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
