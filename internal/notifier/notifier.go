// Package notifier turns ledger events into e-mails: an approval request with
// signed one-click links for the admin, and a decision notice for the requester.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"

	"smartassist/pkg/kafka"
	"smartassist/pkg/logger"
	"smartassist/pkg/model"
	"smartassist/pkg/sealer"
)

const subjectPrefix = "[SmartAssist]"

var (
	approvalTemplate = template.Must(template.New("approval").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #1F4E79; padding: 20px; text-align: center;">
    <h1 style="color: white; margin: 0;">SmartAssist</h1>
    <p style="color: #D6E4F0; margin: 5px 0;">New Booking Request</p>
  </div>
  <div style="padding: 30px; background: #f9f9f9;">
    <table style="width: 100%; border-collapse: collapse;">
      <tr><td style="padding: 8px; font-weight: bold;">Requester:</td><td style="padding: 8px;">{{.Booking.Requester}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">Resource:</td><td style="padding: 8px;">{{.Booking.Resource}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">Date:</td><td style="padding: 8px;">{{.Booking.Date}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">Time:</td><td style="padding: 8px;">{{.Booking.Time}}</td></tr>
      <tr><td style="padding: 8px; font-weight: bold;">Duration:</td><td style="padding: 8px;">{{.Booking.Duration}}</td></tr>
    </table>
    {{if .ApproveURL}}<div style="margin-top: 30px; text-align: center;">
      <a href="{{.ApproveURL}}" style="background:#22c55e;color:white;padding:12px 30px;text-decoration:none;border-radius:6px;margin-right:15px;font-weight:bold;">Approve</a>
      <a href="{{.RejectURL}}" style="background:#ef4444;color:white;padding:12px 30px;text-decoration:none;border-radius:6px;font-weight:bold;">Reject</a>
    </div>{{else}}<p>Review this request in the admin console.</p>{{end}}
  </div>
</div>
`))

	decisionTemplate = template.Must(template.New("decision").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #1F4E79; padding: 20px; text-align: center;">
    <h1 style="color: white; margin: 0;">SmartAssist</h1>
  </div>
  <div style="padding: 30px;">
    <div style="background:{{.Color}};color:white;padding:15px;border-radius:8px;text-align:center;font-size:20px;font-weight:bold;margin-bottom:20px;">Booking {{.Label}}</div>
    <p>Your booking for <strong>{{.Booking.Resource}}</strong> on <strong>{{.Booking.Date}}</strong> at <strong>{{.Booking.Time}}</strong> has been <strong>{{.Booking.Status}}</strong>.</p>
    {{if .Booking.Remarks}}<p><strong>Remarks:</strong> {{.Booking.Remarks}}</p>{{end}}
  </div>
</div>
`))
)

type Notifier struct {
	mailer     Mailer
	sealer     *sealer.Sealer
	baseURL    string
	adminEmail string
	log        *logger.Logger
}

// New builds a notifier. A nil sealer sends approval mails without action links.
func New(mailer Mailer, sl *sealer.Sealer, baseURL, adminEmail string, log *logger.Logger) *Notifier {
	return &Notifier{
		mailer:     mailer,
		sealer:     sl,
		baseURL:    baseURL,
		adminEmail: adminEmail,
		log:        log,
	}
}

func (n *Notifier) Name() string { return "mail" }

// Notify handles a single event. Events that need no mail are ignored.
func (n *Notifier) Notify(ctx context.Context, event model.LedgerEvent) error {
	switch event.Type {
	case model.EventBookingProposed:
		if event.Booking == nil {
			return fmt.Errorf("%s event %s carries no booking", event.Type, event.ID)
		}
		return n.sendApprovalRequest(ctx, event.Booking)
	case model.EventBookingApproved, model.EventBookingRejected:
		if event.Booking == nil {
			return fmt.Errorf("%s event %s carries no booking", event.Type, event.ID)
		}
		return n.sendDecision(ctx, event.Booking)
	default:
		return nil
	}
}

// HandleKafkaMessage is the cmd/notifier consumer handler. Undecodable
// payloads are permanent failures; mail errors are retried.
func (n *Notifier) HandleKafkaMessage(ctx context.Context, msg kafka.Message) error {
	var event model.LedgerEvent
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("deserialization failed", err)
	}
	if err := n.Notify(ctx, event); err != nil {
		return kafka.NewTransientError("failed to send notification", err)
	}
	return nil
}

// HandleDelivery is the RabbitMQ consumer handler.
func (n *Notifier) HandleDelivery(ctx context.Context, _ string, body []byte) error {
	var event model.LedgerEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return n.Notify(ctx, event)
}

func (n *Notifier) sendApprovalRequest(ctx context.Context, b *model.Booking) error {
	if n.adminEmail == "" {
		n.log.Warn("No admin address configured, skipping approval mail", "booking_id", b.ID)
		return nil
	}

	view := struct {
		Booking    *model.Booking
		ApproveURL string
		RejectURL  string
	}{Booking: b}

	if n.sealer != nil {
		var err error
		if view.ApproveURL, err = n.ActionURL(b.ID, model.StatusApproved); err != nil {
			return err
		}
		if view.RejectURL, err = n.ActionURL(b.ID, model.StatusRejected); err != nil {
			return err
		}
	}

	body, err := render(approvalTemplate, view)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s Booking Request: %s on %s", subjectPrefix, b.Resource, b.Date)
	if err := n.mailer.Send(ctx, n.adminEmail, subject, body); err != nil {
		return err
	}
	n.log.Info("Sent approval request", "booking_id", b.ID, "to", n.adminEmail)
	return nil
}

func (n *Notifier) sendDecision(ctx context.Context, b *model.Booking) error {
	view := struct {
		Booking *model.Booking
		Label   string
		Color   string
	}{Booking: b, Label: "Approved", Color: "#22c55e"}
	if b.Status == model.StatusRejected {
		view.Label, view.Color = "Rejected", "#ef4444"
	}

	body, err := render(decisionTemplate, view)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s Booking %s: %s", subjectPrefix, view.Label, b.Resource)
	if err := n.mailer.Send(ctx, b.UserID, subject, body); err != nil {
		return err
	}
	n.log.Info("Sent booking decision", "booking_id", b.ID, "status", b.Status, "to", b.UserID)
	return nil
}

// ActionURL builds the signed one-click link for status on booking id.
func (n *Notifier) ActionURL(id, status string) (string, error) {
	token, err := n.sealer.Seal(id, status)
	if err != nil {
		return "", fmt.Errorf("seal action token: %w", err)
	}
	q := url.Values{}
	q.Set("status", status)
	q.Set("token", token)
	return fmt.Sprintf("%s/bookings/%s/action?%s", n.baseURL, url.PathEscape(id), q.Encode()), nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
