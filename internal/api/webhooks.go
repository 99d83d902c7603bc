/**
 * @description
 * This file contains the HTTP handlers for processing incoming payment
 * webhooks. These endpoints are unauthenticated HTTP surfaces, so signature
 * verification over the raw request body is the only thing standing between
 * the internet and a payment being marked completed. Both providers are
 * verified before a single byte of the payload is interpreted.
 *
 * - Stripe signs with HMAC-SHA256 over "<timestamp>.<body>", delivered in
 *   the Stripe-Signature header as "t=...,v1=...".
 * - Paystack signs with HMAC-SHA512 over the body, delivered hex-encoded in
 *   the x-paystack-signature header.
 *
 * Completion itself is idempotent, so webhook retries and replays of
 * already-processed events are harmless.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256, crypto/sha512: Signature validation.
 * - internal/app: Payment completion logic.
 */

package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/devlaunch/onboarding-service/internal/store"
)

// stripeSignatureTolerance bounds how old a signed timestamp may be before
// the event is treated as a replay.
const stripeSignatureTolerance = 5 * time.Minute

// PaymentCompleter is the slice of the application service webhooks need.
type PaymentCompleter interface {
	CompletePayment(ctx context.Context, reference string) error
}

// WebhookHandlers processes incoming webhooks from the payment providers.
type WebhookHandlers struct {
	service        PaymentCompleter
	stripeSecret   string
	paystackSecret string
	now            func() time.Time
	maxBodyBytes   int64
}

// NewWebhookHandlers creates the webhook handlers. An empty secret disables
// the corresponding endpoint with a precondition failure.
func NewWebhookHandlers(service PaymentCompleter, stripeWebhookSecret, paystackSecretKey string) *WebhookHandlers {
	return &WebhookHandlers{
		service:        service,
		stripeSecret:   stripeWebhookSecret,
		paystackSecret: paystackSecretKey,
		now:            time.Now,
		maxBodyBytes:   1 << 20,
	}
}

// StripeWebhookHandler verifies and processes Stripe events.
func (h *WebhookHandlers) StripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if h.stripeSecret == "" {
		writeError(w, http.StatusPreconditionFailed, "stripe webhook secret is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	if err := h.verifyStripeSignature(r.Header.Get("Stripe-Signature"), body); err != nil {
		log.Printf("level=warn component=webhook provider=stripe outcome=reject reason=bad_signature err=%v", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if event.Type != "checkout.session.completed" {
		log.Printf("level=info component=webhook provider=stripe outcome=ignored event=%s", event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.complete(w, r, "stripe", event.Data.Object.ID)
}

// PaystackWebhookHandler verifies and processes Paystack events.
func (h *WebhookHandlers) PaystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if h.paystackSecret == "" {
		writeError(w, http.StatusPreconditionFailed, "paystack secret is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	if !h.verifyPaystackSignature(r.Header.Get("x-paystack-signature"), body) {
		log.Printf("level=warn component=webhook provider=paystack outcome=reject reason=bad_signature")
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if event.Event != "charge.success" {
		log.Printf("level=info component=webhook provider=paystack outcome=ignored event=%s", event.Event)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.complete(w, r, "paystack", event.Data.Reference)
}

// complete pushes a verified reference through the idempotent completion
// path. An unknown reference returns 404 so the provider retries; the record
// may simply not be committed yet.
func (h *WebhookHandlers) complete(w http.ResponseWriter, r *http.Request, provider, reference string) {
	if reference == "" {
		writeError(w, http.StatusBadRequest, "event is missing a payment reference")
		return
	}

	if err := h.service.CompletePayment(r.Context(), reference); err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			log.Printf("level=warn component=webhook provider=%s outcome=unknown_reference reference=%s", provider, reference)
			writeError(w, http.StatusNotFound, "unknown payment reference")
			return
		}
		log.Printf("level=error component=webhook provider=%s reference=%s err=%v", provider, reference, err)
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	log.Printf("level=info component=webhook provider=%s outcome=processed reference=%s", provider, reference)
	w.WriteHeader(http.StatusOK)
}

// verifyStripeSignature checks the "t=...,v1=..." header against an
// HMAC-SHA256 of "<t>.<body>" and rejects timestamps outside the tolerance.
func (h *WebhookHandlers) verifyStripeSignature(header string, body []byte) error {
	if header == "" {
		return errors.New("missing Stripe-Signature header")
	}

	var (
		timestamp  string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return errors.New("malformed Stripe-Signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid signature timestamp: %w", err)
	}
	age := h.now().Sub(time.Unix(ts, 0))
	if age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return errors.New("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(h.stripeSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return errors.New("no matching v1 signature")
}

// verifyPaystackSignature checks the hex HMAC-SHA512 of the body against the
// x-paystack-signature header.
func (h *WebhookHandlers) verifyPaystackSignature(header string, body []byte) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(h.paystackSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(header))))
}
