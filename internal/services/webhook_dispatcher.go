package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"praxis/internal/models"
)

const (
	webhookTimeout     = 10 * time.Second
	webhookMaxAttempts = 3
	webhookRetryDelay  = 2 * time.Second

	// Per-endpoint delivery rate; standard changes are rare, this only
	// protects subscribers from bursts during backfills.
	webhookRatePerSecond = 2
)

// WebhookDispatcher POSTs notifications to configured subscriber URLs.
// Each endpoint gets its own rate limiter; deliveries are retried a bounded
// number of times and failures never propagate to the recording path.
type WebhookDispatcher struct {
	urls     []string
	client   *http.Client
	limiters *sync.Map // url -> *rate.Limiter
	log      *logrus.Entry
}

// NewWebhookDispatcher creates a dispatcher for the given subscriber URLs
func NewWebhookDispatcher(urls []string) *WebhookDispatcher {
	return &WebhookDispatcher{
		urls:     urls,
		client:   &http.Client{Timeout: webhookTimeout},
		limiters: &sync.Map{},
		log:      logrus.WithField("component", "webhook"),
	}
}

func (d *WebhookDispatcher) limiterFor(url string) *rate.Limiter {
	if l, ok := d.limiters.Load(url); ok {
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Limit(webhookRatePerSecond), webhookRatePerSecond*2)
	actual, _ := d.limiters.LoadOrStore(url, l)
	return actual.(*rate.Limiter)
}

// Notify implements Notifier. Delivery happens in the background.
func (d *WebhookDispatcher) Notify(ctx context.Context, n models.Notification) {
	if len(d.urls) == 0 {
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		d.log.WithError(err).Warn("failed to marshal notification")
		return
	}

	for _, url := range d.urls {
		go d.deliver(url, n.Type, payload)
	}
}

func (d *WebhookDispatcher) deliver(url, eventType string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := d.limiterFor(url).Wait(ctx); err != nil {
		return
	}

	entry := d.log.WithFields(logrus.Fields{"url": url, "event": eventType})

	for attempt := 1; attempt <= webhookMaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			entry.WithError(err).Warn("failed to build webhook request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Praxis-Event", eventType)

		resp, err := d.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 300 {
				entry.WithField("attempt", attempt).Debug("webhook delivered")
				return
			}
			err = &webhookStatusError{status: resp.StatusCode}
		}

		entry.WithError(err).WithField("attempt", attempt).Warn("webhook delivery failed")
		if attempt < webhookMaxAttempts {
			select {
			case <-time.After(webhookRetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return
			}
		}
	}
}

type webhookStatusError struct {
	status int
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}
