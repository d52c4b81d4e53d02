// The consumer tails the order-status topic and keeps the local order
// history in step with the platform, so tracking screens read fresh
// status without hitting the upstream API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/courier-booking/internal/models"
	"github.com/example/courier-booking/internal/storage"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total order status messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	statusUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_status_updates_total",
		Help: "Total successful order status updates",
	})
	statusErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_status_errors_total",
		Help: "Total order status update errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, statusUpdates, statusErrors)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = os.Getenv("KAFKA_BROKER")
	}
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_STATUS_TOPIC")
	if topic == "" {
		topic = "order-status"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "courier-booking-consumer"
	}

	var updater StatusUpdater
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		ps, err := storage.NewPostgresStore(dsn)
		if err != nil {
			log.Fatalf("postgres unavailable: %v", err)
		}
		defer ps.Close()
		updater = &storeAdapter{store: ps}
	} else {
		log.Printf("PG_DSN not set; status updates will only be logged")
		updater = logUpdater{}
	}

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
	}()

	log.Printf("consumer listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down consumer")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			if sleepBackoff(ctx, backoff) != nil {
				log.Println("shutting down consumer")
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		msgsConsumed.Inc()

		var ev models.OrderStatusEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.OrderID == "" {
			msgsInvalid.Inc()
			log.Printf("invalid message: %v", err)
			continue
		}

		if err := updateStatusWithRetry(ctx, updater, ev, 3, 200*time.Millisecond); err != nil {
			statusErrors.Inc()
			log.Printf("status update failed for order=%s: %v", ev.OrderID, err)
			continue
		}
		statusUpdates.Inc()
	}
}

// StatusUpdater defines the small subset of store operations we need for
// tests and production.
type StatusUpdater interface {
	UpdateStatus(orderID, status string) error
}

type storeAdapter struct{ store storage.OrderStore }

func (a *storeAdapter) UpdateStatus(orderID, status string) error {
	return a.store.UpdateStatus(orderID, status)
}

type logUpdater struct{}

func (logUpdater) UpdateStatus(orderID, status string) error {
	log.Printf("order %s -> %s", orderID, status)
	return nil
}

// sleepBackoff waits for d unless ctx is cancelled first.
func sleepBackoff(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// updateStatusWithRetry applies a status update with retry/backoff.
func updateStatusWithRetry(ctx context.Context, u StatusUpdater, ev models.OrderStatusEvent, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = u.UpdateStatus(ev.OrderID, ev.Status); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
