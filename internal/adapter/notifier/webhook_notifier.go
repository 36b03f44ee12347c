package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/rl1809/storefront/internal/metrics"
	"github.com/rl1809/storefront/internal/port"
)

const (
	webhookTimeout = 3 * time.Second
	deliverTimeout = 5 * time.Second
)

type webhookPayload struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// WebhookNotifier POSTs notifications to an external endpoint (ops chat hook,
// back-office feed). Delivery is fire-and-forget behind a circuit breaker so a
// dead endpoint never stalls order placement.
type WebhookNotifier struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	url     string
	wg      sync.WaitGroup
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notification-webhook",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"circuit": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("notification webhook circuit state changed")
		},
	})

	return &WebhookNotifier{
		client:  resty.New().SetTimeout(webhookTimeout).SetRetryCount(0),
		breaker: cb,
		url:     url,
	}
}

func (n *WebhookNotifier) Notify(_ context.Context, kind port.NotificationKind, message string) {
	payload := webhookPayload{
		Kind:    string(kind),
		Message: message,
		At:      time.Now(),
	}

	// Delivery runs detached from the request context; a placed order must not
	// wait on, or be cancelled with, its notification.
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()

		_, err := n.breaker.Execute(func() (interface{}, error) {
			resp, err := n.client.R().SetContext(ctx).SetBody(payload).Post(n.url)
			if err != nil {
				return nil, err
			}
			if resp.IsError() {
				return nil, fmt.Errorf("webhook returned %s", resp.Status())
			}
			return nil, nil
		})
		if err != nil {
			metrics.NotifierFailures.WithLabelValues("webhook").Inc()
			log.WithField("kind", string(kind)).WithError(err).Debug("notification webhook delivery failed")
		}
	}()
}

// Close waits for in-flight deliveries to finish.
func (n *WebhookNotifier) Close() {
	n.wg.Wait()
}
