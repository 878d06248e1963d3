package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	messagesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_messages_processed_total",
		Help: "Outbox messages successfully delivered and marked processed.",
	}, []string{"type"})

	messagesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_messages_failed_total",
		Help: "Outbox delivery attempts recorded as failed.",
	}, []string{"type"})

	messagesSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_messages_swept_total",
		Help: "Processed outbox messages removed by the retention sweeper.",
	})
)

func init() {
	prometheus.MustRegister(messagesProcessed, messagesFailed, messagesSwept)
}
