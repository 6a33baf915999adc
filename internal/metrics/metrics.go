// Package metrics exposes Prometheus counters for the broadcast pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
)

const namespace = "broadcaster"

// Collector implements broadcast.Metrics on Prometheus counters.
type Collector struct {
	emailsQueued       prometheus.Counter
	broadcastsFinished *prometheus.CounterVec
	emailsSent         prometheus.Counter
	emailsFailed       prometheus.Counter
	webhookEvents      *prometheus.CounterVec
	unsubscribes       prometheus.Counter
}

var _ broadcast.Metrics = (*Collector)(nil)

// New creates the counters and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		emailsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_queued_total",
			Help:      "Send-email jobs enqueued by the dispatcher.",
		}),
		broadcastsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_finished_total",
			Help:      "Broadcasts that left the sending state, by final status.",
		}, []string{"status"}),
		emailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Emails accepted by the transport.",
		}),
		emailsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_failed_total",
			Help:      "Emails marked failed after rejection or the final attempt.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Provider webhook events applied to emails, by activity.",
		}, []string{"activity"}),
		unsubscribes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unsubscribes_total",
			Help:      "Contacts opted out through an unsubscribe token.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.emailsQueued,
		c.broadcastsFinished,
		c.emailsSent,
		c.emailsFailed,
		c.webhookEvents,
		c.unsubscribes,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Collector) EmailsQueued(n int) {
	if n > 0 {
		c.emailsQueued.Add(float64(n))
	}
}

func (c *Collector) BroadcastFinished(status broadcast.Status) {
	c.broadcastsFinished.WithLabelValues(string(status)).Inc()
}

func (c *Collector) EmailSent()   { c.emailsSent.Inc() }
func (c *Collector) EmailFailed() { c.emailsFailed.Inc() }

func (c *Collector) WebhookEvent(activity broadcast.ActivityType) {
	c.webhookEvents.WithLabelValues(string(activity)).Inc()
}

func (c *Collector) Unsubscribed() { c.unsubscribes.Inc() }
