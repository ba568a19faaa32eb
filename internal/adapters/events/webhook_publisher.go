package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

const (
	defaultWebhookTimeout = 10 * time.Second

	HeaderTopic     = "X-Activity-Topic"
	HeaderEventType = "X-Activity-Event-Type"
	HeaderTenant    = "X-Activity-Tenant"
	HeaderContext   = "X-Activity-Context"
	HeaderEventID   = "X-Activity-Event-ID"
	HeaderSignature = "X-Activity-Signature"

	signatureVersion = "v1"
)

var (
	ErrSignatureMissing = errors.New("webhook signature missing")
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrSignatureExpired = errors.New("webhook signature outside tolerance")
)

type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Clock   clockwork.Clock
}

// WebhookPublisher POSTs activity envelopes to a receiver. Each delivery is
// signed over its timestamp, event id and body, so a receiver can reject
// replays of an old delivery and bodies moved under another event id.
type WebhookPublisher struct {
	url    string
	secret []byte
	clock  clockwork.Clock
	client *http.Client
}

func NewWebhookPublisher(cfg WebhookConfig) *WebhookPublisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWebhookTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &WebhookPublisher{
		url:    cfg.URL,
		secret: []byte(cfg.Secret),
		clock:  cfg.Clock,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Publish delivers one envelope. The signature header has the form
//
//	X-Activity-Signature: t=<unix seconds>,v1=<hex HMAC-SHA256>
//
// where the MAC covers "<t>.<event id>.<body>". Any non-2xx status is an
// error and leaves the outbox row for another attempt.
func (p *WebhookPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTopic, topic)
	req.Header.Set(HeaderEventType, event.EventType)
	req.Header.Set(HeaderTenant, event.TenantID)
	if event.ContextID != "" {
		req.Header.Set(HeaderContext, event.ContextID)
	}
	req.Header.Set(HeaderEventID, event.EventID)
	req.Header.Set(HeaderSignature, SignatureHeader(p.secret, p.clock.Now(), event.EventID, body))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s to webhook: %w", event.EventID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook rejected %s (%s): status %d", event.EventID, event.EventType, resp.StatusCode)
	}
	return nil
}

// SignatureHeader renders the signature header value for a delivery made at ts.
func SignatureHeader(secret []byte, ts time.Time, eventID string, body []byte) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + unix + "," + signatureVersion + "=" + signature(secret, unix, eventID, body)
}

// VerifySignature checks a received signature header against the delivery's
// event id and body. Deliveries stamped further than tolerance from now are
// rejected; a zero tolerance skips the age check.
func VerifySignature(secret []byte, header, eventID string, body []byte, now time.Time, tolerance time.Duration) error {
	if header == "" {
		return ErrSignatureMissing
	}
	var unix, mac string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			unix = v
		case signatureVersion:
			mac = v
		}
	}
	if unix == "" || mac == "" {
		return ErrSignatureInvalid
	}
	sec, err := strconv.ParseInt(unix, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrSignatureInvalid)
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(sec, 0))
		if age > tolerance || age < -tolerance {
			return ErrSignatureExpired
		}
	}
	want := signature(secret, unix, eventID, body)
	if !hmac.Equal([]byte(mac), []byte(want)) {
		return ErrSignatureInvalid
	}
	return nil
}

func signature(secret []byte, unix, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(unix))
	mac.Write([]byte{'.'})
	mac.Write([]byte(eventID))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
