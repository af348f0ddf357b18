package alert

import (
	"context"

	"github.com/tempscope/tempscope/internal/httpc"
	"github.com/tempscope/tempscope/internal/log"
)

// Webhook delivers alert events to an HTTP endpoint as JSON.
// Delivery is fire-and-forget: it never blocks the caller and
// failures are only logged at debug level.
type Webhook struct {
	url string
}

// NewWebhook creates a webhook sender. An empty URL disables it.
func NewWebhook(url string) *Webhook {
	return &Webhook{url: url}
}

// Enabled reports whether a target URL is configured.
func (w *Webhook) Enabled() bool {
	return w.url != ""
}

// Notify posts the event in the background.
func (w *Webhook) Notify(ev Event) {
	if w.url == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), httpc.DefaultTimeout)
		defer cancel()

		if err := httpc.PostJSON(ctx, w.url, ev); err != nil {
			log.Debug("alert webhook delivery failed", "url", w.url, "error", err)
		}
	}()
}
