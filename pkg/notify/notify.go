// Package notify delivers booking and cancellation e-mails with calendar
// invites. Delivery is best-effort: callers report failures, they never undo
// the state change that triggered them.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	cr "github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/arnavshah/pharmacal-api/pkg/models"
)

type Event string

const (
	EventBooked    Event = "booked"
	EventCancelled Event = "cancelled"
)

// Notice describes a booking transition. Requester fields are carried
// separately because a cancelled slot no longer holds them.
type Notice struct {
	Event            Event
	Slot             models.Slot
	RequesterName    string
	RequesterContact string
	AssigneeContact  string
}

// Notifier informs the parties of a booking transition.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Attachment is a file sent alongside a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer sends a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher composes the messages for a notice and hands them to a Mailer.
type Dispatcher struct {
	mailer Mailer
	hours  models.SessionHours
	logger *zap.Logger
}

func NewDispatcher(mailer Mailer, hours models.SessionHours, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{mailer: mailer, hours: hours, logger: logger}
}

// Notify sends every message of the notice, attempting all of them even if
// some fail. The returned error combines the failures.
func (d *Dispatcher) Notify(ctx context.Context, n Notice) error {
	msgs, err := Compose(n, d.hours)
	if err != nil {
		return err
	}
	var combined error
	for _, msg := range msgs {
		if err := d.mailer.Send(ctx, msg); err != nil {
			d.logger.Warn("notify: send failed",
				zap.String("event", string(n.Event)),
				zap.String("unique_code", n.Slot.UniqueCode),
				zap.String("to", msg.To),
				zap.Error(err))
			combined = cr.CombineErrors(combined, cr.Wrapf(err, "send to %s", msg.To))
			continue
		}
		d.logger.Info("notify: sent",
			zap.String("event", string(n.Event)),
			zap.String("unique_code", n.Slot.UniqueCode),
			zap.String("to", msg.To))
	}
	return combined
}

var (
	bookedRequesterTmpl = template.Must(template.New("booked_requester").Parse(`
<h2>Pharmacist Booking Confirmation</h2>
<p>You have booked <b>{{.Assignee}}</b> for:</p>
<p><strong>Date:</strong> {{.LongDate}}</p>
<p><strong>Time:</strong> {{.Session}}</p>
<p>Please find attached the calendar invite.</p>
`))

	bookedAssigneeTmpl = template.Must(template.New("booked_assignee").Parse(`
<h2>New Surgery Booking Notification</h2>
<p>You have been booked for a session at:</p>
<p><strong>Surgery:</strong> {{.Requester}}</p>
<p><strong>Date:</strong> {{.LongDate}}</p>
<p><strong>Time:</strong> {{.Session}}</p>
<p><strong>Surgery Email:</strong> {{.RequesterContact}}</p>
<p>Please find attached the calendar invite.</p>
`))

	cancelledRequesterTmpl = template.Must(template.New("cancelled_requester").Parse(`
<h2>Booking Cancellation Notice</h2>
<p>The booking for <b>{{.Assignee}}</b> on <b>{{.LongDate}}</b> at <b>{{.Session}}</b> has been cancelled.</p>
<p>This slot is now available again.</p>
`))

	cancelledAssigneeTmpl = template.Must(template.New("cancelled_assignee").Parse(`
<h2>Booking Cancellation Notice</h2>
<p>Your session at <b>{{.Requester}}</b> on <b>{{.LongDate}}</b> at <b>{{.Session}}</b> has been cancelled.</p>
<p>This slot is now available again.</p>
`))
)

type view struct {
	Assignee         string
	Requester        string
	RequesterContact string
	LongDate         string
	ShortDate        string
	Session          string
}

// Compose renders the messages for a notice. A party without a contact
// address gets no message.
func Compose(n Notice, hours models.SessionHours) ([]Message, error) {
	v := view{
		Assignee:         n.Slot.Assignee(),
		Requester:        n.RequesterName,
		RequesterContact: n.RequesterContact,
		LongDate:         n.Slot.Date.Format("Monday, 02 January 2006"),
		ShortDate:        n.Slot.Date.Format("02/01/2006"),
		Session:          hours.Label(n.Slot.Shift),
	}

	var msgs []Message
	switch n.Event {
	case EventBooked:
		invite, err := inviteFor(n, hours)
		if err != nil {
			return nil, err
		}
		if n.RequesterContact != "" {
			msg, err := render(bookedRequesterTmpl, v, n.RequesterContact,
				fmt.Sprintf("Pharmacist Booking Confirmation - %s", v.ShortDate))
			if err != nil {
				return nil, err
			}
			msg.Attachments = []Attachment{invite}
			msgs = append(msgs, msg)
		}
		if n.AssigneeContact != "" {
			msg, err := render(bookedAssigneeTmpl, v, n.AssigneeContact,
				fmt.Sprintf("New Booking - %s on %s", v.Requester, v.ShortDate))
			if err != nil {
				return nil, err
			}
			msg.Attachments = []Attachment{invite}
			msgs = append(msgs, msg)
		}

	case EventCancelled:
		if n.RequesterContact != "" {
			msg, err := render(cancelledRequesterTmpl, v, n.RequesterContact,
				fmt.Sprintf("Booking Cancellation - %s on %s", v.Assignee, v.LongDate))
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
		if n.AssigneeContact != "" {
			msg, err := render(cancelledAssigneeTmpl, v, n.AssigneeContact,
				fmt.Sprintf("Booking Cancellation - %s on %s", v.Requester, v.LongDate))
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}

	default:
		return nil, cr.Newf("unknown notification event %q", n.Event)
	}
	return msgs, nil
}

func render(t *template.Template, v view, to, subject string) (Message, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return Message{}, cr.Wrapf(err, "render %s", t.Name())
	}
	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}

func inviteFor(n Notice, hours models.SessionHours) (Attachment, error) {
	start, end, err := hours.Bounds(n.Slot.Date, n.Slot.Shift)
	if err != nil {
		return Attachment{}, err
	}
	ics := Invite{
		UID:         n.Slot.UniqueCode + "@pharma-cal",
		Summary:     "Pharmacist Booking - " + n.Slot.Assignee(),
		Location:    n.RequesterName + " - Remote Session",
		Description: "Pharmacist: " + n.Slot.Assignee(),
		Start:       start,
		End:         end,
		Stamp:       time.Now(),
	}.Render()
	return Attachment{
		Filename:    "pharmacist_booking_" + start.Format("20060102") + ".ics",
		ContentType: "text/calendar",
		Content:     []byte(ics),
	}, nil
}
