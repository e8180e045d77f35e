package deliver

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/presentation-api/internal/render"
	"github.com/yourorg/presentation-api/internal/tier"
)

// Stable machine-readable failure reasons, surfaced to calling UIs.
const (
	ReasonNotPermitted = "channel_not_permitted"
	ReasonValidation   = "validation"
	ReasonTransport    = "transport"
)

// Error is a delivery failure with a stable reason string. Transport errors
// are retryable with the same artifact; the others are terminal for the
// request.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "delivery: " + e.Reason
	}
	return fmt.Sprintf("delivery %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error   { return e.Err }
func (e *Error) Retryable() bool { return e.Reason == ReasonTransport }

// Destination addresses one delivery. Email channels read Email and Subject;
// the physical mail channel reads the postal fields.
type Destination struct {
	Email   string `json:"email,omitempty"`
	Subject string `json:"subject,omitempty"`

	Name         string `json:"name,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Zip          string `json:"zip,omitempty"`
}

// Receipt reports a completed dispatch. Artifact is populated only for the
// download channel, where the caller's environment presents the bytes itself.
type Receipt struct {
	ID         string
	Channel    tier.Channel
	ProviderID string
	Filename   string
	SentAt     time.Time
	Artifact   *render.Artifact
}

// EmailMessage is what the email transport sends.
type EmailMessage struct {
	To         string
	Subject    string
	Attachment *render.Artifact
}

// Letter is what the physical mail transport submits.
type Letter struct {
	To       Destination
	Artifact *render.Artifact
}

// EmailTransport and MailTransport return a provider id on success. They
// classify their own failures as validation or transport *Error values.
type EmailTransport interface {
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

type MailTransport interface {
	SendLetter(ctx context.Context, letter Letter) (string, error)
}

// Dispatcher routes a rendered artifact through a delivery channel. External
// calls run under Timeout.
type Dispatcher struct {
	Email   EmailTransport
	Mail    MailTransport
	Timeout time.Duration
}

// Permitted rejects tier-gated channel/format combinations before any
// external call and before any quota traffic.
func (d *Dispatcher) Permitted(t tier.Tier, ch tier.Channel, f tier.Format) error {
	if !tier.AllowsFormat(t, f) {
		return &Error{Reason: ReasonNotPermitted, Err: fmt.Errorf("format %s not in tier %s", f, t)}
	}
	if !tier.AllowsChannel(t, ch) {
		return &Error{Reason: ReasonNotPermitted, Err: fmt.Errorf("channel %s not in tier %s", ch, t)}
	}
	return nil
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Dispatch sends the artifact through the chosen channel. Artifacts are
// immutable, so a transport failure may be retried with the same artifact
// without re-rendering.
func (d *Dispatcher) Dispatch(ctx context.Context, artifact *render.Artifact, ch tier.Channel, dest Destination) (*Receipt, error) {
	if artifact == nil {
		return nil, &Error{Reason: ReasonValidation, Err: fmt.Errorf("nil artifact")}
	}
	receipt := &Receipt{
		ID:       uuid.NewString(),
		Channel:  ch,
		Filename: artifact.Filename,
		SentAt:   time.Now().UTC(),
	}

	switch ch {
	case tier.ChannelDownload:
		// No external call; the caller's environment presents the bytes.
		receipt.Artifact = artifact
		return receipt, nil

	case tier.ChannelEmail:
		if !emailRe.MatchString(dest.Email) {
			return nil, &Error{Reason: ReasonValidation, Err: fmt.Errorf("malformed email %q", dest.Email)}
		}
		if d.Email == nil {
			return nil, &Error{Reason: ReasonTransport, Err: fmt.Errorf("email transport not configured")}
		}
		subject := dest.Subject
		if subject == "" {
			subject = "Property Presentation"
		}
		ctx, cancel := d.withTimeout(ctx)
		defer cancel()
		id, err := d.Email.Send(ctx, EmailMessage{To: dest.Email, Subject: subject, Attachment: artifact})
		if err != nil {
			return nil, asDeliveryError(err)
		}
		receipt.ProviderID = id
		return receipt, nil

	case tier.ChannelMail:
		if dest.AddressLine1 == "" || dest.City == "" || dest.State == "" || dest.Zip == "" {
			return nil, &Error{Reason: ReasonValidation, Err: fmt.Errorf("incomplete postal address")}
		}
		if d.Mail == nil {
			return nil, &Error{Reason: ReasonTransport, Err: fmt.Errorf("mail transport not configured")}
		}
		ctx, cancel := d.withTimeout(ctx)
		defer cancel()
		id, err := d.Mail.SendLetter(ctx, Letter{To: dest, Artifact: artifact})
		if err != nil {
			return nil, asDeliveryError(err)
		}
		receipt.ProviderID = id
		return receipt, nil
	}
	return nil, &Error{Reason: ReasonValidation, Err: fmt.Errorf("unknown channel %q", ch)}
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// asDeliveryError keeps transport-classified errors intact and wraps anything
// else as transport (network failures, timeouts).
func asDeliveryError(err error) error {
	if de, ok := err.(*Error); ok {
		return de
	}
	return &Error{Reason: ReasonTransport, Err: err}
}
