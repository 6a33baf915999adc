package resend_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/broadcaster/pkg/mailer"
	"github.com/dmitrymomot/broadcaster/pkg/mailer/resend"
)

var (
	rawSecret     = []byte("super-secret-signing-key")
	webhookSecret = "whsec_" + base64.StdEncoding.EncodeToString(rawSecret)
	fixedNow      = time.Unix(1_760_000_000, 0)
)

const deliveredBody = `{"type":"email.delivered","created_at":"2025-10-09T08:53:20.000Z","data":{"email_id":"re_123","to":["ada@example.com"]}}`

func sign(t *testing.T, id, ts, body string) string {
	t.Helper()

	mac := hmac.New(sha256.New, rawSecret)
	mac.Write([]byte(id + "." + ts + "." + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newVerifier(t *testing.T) *resend.Verifier {
	t.Helper()

	v, err := resend.NewVerifier(
		resend.Config{WebhookSecret: webhookSecret},
		resend.WithVerifierClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)
	return v
}

func signedHeader(t *testing.T, at time.Time, body string) http.Header {
	t.Helper()

	ts := strconv.FormatInt(at.Unix(), 10)
	h := http.Header{}
	h.Set(resend.HeaderID, "msg_1")
	h.Set(resend.HeaderTimestamp, ts)
	h.Set(resend.HeaderSignature, "v1,"+sign(t, "msg_1", ts, body))
	return h
}

func TestNewVerifier(t *testing.T) {
	t.Parallel()

	_, err := resend.NewVerifier(resend.Config{})
	require.ErrorIs(t, err, resend.ErrInvalidSecret)

	_, err = resend.NewVerifier(resend.Config{WebhookSecret: "whsec_%%%"})
	require.ErrorIs(t, err, resend.ErrInvalidSecret)

	v, err := resend.NewVerifier(resend.Config{WebhookSecret: base64.StdEncoding.EncodeToString(rawSecret)})
	require.NoError(t, err)
	assert.Equal(t, resend.DefaultWebhookTolerance, v.Tolerance())
}

func TestVerifier_Valid(t *testing.T) {
	t.Parallel()

	v := newVerifier(t)

	ev, err := v.Verify(signedHeader(t, fixedNow, deliveredBody), []byte(deliveredBody))
	require.NoError(t, err)
	assert.Equal(t, "msg_1", ev.DeliveryID)
	assert.Equal(t, "email.delivered", ev.Type)
	assert.Equal(t, "re_123", ev.ProviderID)
	assert.Equal(t, "2025-10-09T08:53:20.000Z", ev.CreatedAt)
}

func TestVerifier_AcceptsAnyV1Signature(t *testing.T) {
	t.Parallel()

	v := newVerifier(t)
	h := signedHeader(t, fixedNow, deliveredBody)
	h.Set(resend.HeaderSignature, "v1,bm90LXRoaXM= v2,whatever "+h.Get(resend.HeaderSignature))

	_, err := v.Verify(h, []byte(deliveredBody))
	require.NoError(t, err)
}

func TestVerifier_WithinTolerance(t *testing.T) {
	t.Parallel()

	v := newVerifier(t)

	for _, at := range []time.Time{fixedNow.Add(-5 * time.Minute), fixedNow.Add(5 * time.Minute)} {
		_, err := v.Verify(signedHeader(t, at, deliveredBody), []byte(deliveredBody))
		require.NoError(t, err)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()

	v := newVerifier(t)

	tests := []struct {
		name   string
		header func() http.Header
		body   string
	}{
		{
			name: "missing id",
			header: func() http.Header {
				h := signedHeader(t, fixedNow, deliveredBody)
				h.Del(resend.HeaderID)
				return h
			},
			body: deliveredBody,
		},
		{
			name: "missing signature",
			header: func() http.Header {
				h := signedHeader(t, fixedNow, deliveredBody)
				h.Del(resend.HeaderSignature)
				return h
			},
			body: deliveredBody,
		},
		{
			name: "non numeric timestamp",
			header: func() http.Header {
				h := signedHeader(t, fixedNow, deliveredBody)
				h.Set(resend.HeaderTimestamp, "yesterday")
				return h
			},
			body: deliveredBody,
		},
		{
			name:   "too old",
			header: func() http.Header { return signedHeader(t, fixedNow.Add(-5*time.Minute-time.Second), deliveredBody) },
			body:   deliveredBody,
		},
		{
			name:   "too far in the future",
			header: func() http.Header { return signedHeader(t, fixedNow.Add(6*time.Minute), deliveredBody) },
			body:   deliveredBody,
		},
		{
			name:   "tampered body",
			header: func() http.Header { return signedHeader(t, fixedNow, deliveredBody) },
			body:   `{"type":"email.bounced","data":{"email_id":"re_123"}}`,
		},
		{
			name: "wrong version",
			header: func() http.Header {
				h := signedHeader(t, fixedNow, deliveredBody)
				ts := h.Get(resend.HeaderTimestamp)
				h.Set(resend.HeaderSignature, "v2,"+sign(t, "msg_1", ts, deliveredBody))
				return h
			},
			body: deliveredBody,
		},
		{
			name:   "empty body",
			header: func() http.Header { return signedHeader(t, fixedNow, "") },
			body:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev, err := v.Verify(tt.header(), []byte(tt.body))
			require.ErrorIs(t, err, mailer.ErrWebhookUnauthorized)
			assert.Nil(t, ev)
		})
	}
}

func TestVerifier_MalformedBody(t *testing.T) {
	t.Parallel()

	v := newVerifier(t)

	for _, body := range []string{`not json`, `{"data":{"email_id":"re_1"}}`} {
		_, err := v.Verify(signedHeader(t, fixedNow, body), []byte(body))
		require.ErrorIs(t, err, mailer.ErrWebhookMalformed)
	}
}
