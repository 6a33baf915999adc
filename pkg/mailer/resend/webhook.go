package resend

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/broadcaster/pkg/mailer"
)

// Svix delivery headers sent with every Resend webhook.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// DefaultWebhookTolerance bounds the clock skew between Resend and this service.
const DefaultWebhookTolerance = 5 * time.Minute

const signatureVersion = "v1"

// Verifier implements mailer.WebhookVerifier for Svix-signed Resend webhooks.
type Verifier struct {
	now       func() time.Time
	secret    []byte
	tolerance time.Duration
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierClock overrides the time source used for the tolerance check.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier decodes a "whsec_<base64>" secret. The prefix is optional.
func NewVerifier(cfg Config, opts ...VerifierOption) (*Verifier, error) {
	encoded := cfg.WebhookSecret
	if parts := strings.Split(encoded, "_"); len(parts) > 1 {
		encoded = parts[1]
	}
	if encoded == "" {
		return nil, ErrInvalidSecret
	}

	secret, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}

	v := &Verifier{
		now:       time.Now,
		secret:    secret,
		tolerance: cfg.WebhookTolerance,
	}
	if v.tolerance <= 0 {
		v.tolerance = DefaultWebhookTolerance
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Tolerance is the accepted timestamp skew, and the window in which a
// delivery id can be replayed.
func (v *Verifier) Tolerance() time.Duration {
	return v.tolerance
}

type webhookPayload struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Data      struct {
		EmailID string `json:"email_id"`
	} `json:"data"`
}

// Verify implements mailer.WebhookVerifier.
func (v *Verifier) Verify(header http.Header, body []byte) (*mailer.WebhookEvent, error) {
	id := header.Get(HeaderID)
	ts := header.Get(HeaderTimestamp)
	sigs := header.Get(HeaderSignature)
	if id == "" || ts == "" || sigs == "" {
		return nil, fmt.Errorf("%w: missing svix headers", mailer.ErrWebhookUnauthorized)
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timestamp", mailer.ErrWebhookUnauthorized)
	}
	if skew := v.now().Sub(time.Unix(sec, 0)).Abs(); skew > v.tolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", mailer.ErrWebhookUnauthorized)
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", mailer.ErrWebhookUnauthorized)
	}

	if !v.matches(sigs, v.sign(id, ts, body)) {
		return nil, fmt.Errorf("%w: signature mismatch", mailer.ErrWebhookUnauthorized)
	}

	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", mailer.ErrWebhookMalformed, err)
	}
	if p.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", mailer.ErrWebhookMalformed)
	}

	return &mailer.WebhookEvent{
		DeliveryID: id,
		Type:       p.Type,
		ProviderID: p.Data.EmailID,
		CreatedAt:  p.CreatedAt,
	}, nil
}

func (v *Verifier) sign(id, ts string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(id))
	mac.Write([]byte{'.'})
	mac.Write([]byte(ts))
	mac.Write([]byte{'.'})
	mac.Write(body)

	sum := mac.Sum(nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum)
	return out
}

// matches checks each space-delimited "version,signature" entry.
func (v *Verifier) matches(header string, expected []byte) bool {
	for entry := range strings.FieldsSeq(header) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != signatureVersion {
			continue
		}
		if hmac.Equal(expected, []byte(sig)) {
			return true
		}
	}
	return false
}
