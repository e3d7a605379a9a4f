// Command worker consumes record-change events from AMQP and logs a reminder
// for every client birthday or anniversary falling in the coming week.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/aidplug-crm/internal/backend/postgres"
	"github.com/unclebandit/aidplug-crm/internal/config"
	"github.com/unclebandit/aidplug-crm/internal/dashboard"
	"github.com/unclebandit/aidplug-crm/internal/db"
	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/logging"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/queue"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if cfg.DatabaseURL == "" || cfg.AMQPURL == "" {
		logger.Fatal("worker needs DATABASE_URL and AMQP_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer conn.Close()

	amqpConn, ch, err := queue.DialAMQP(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("amqp", zap.Error(err))
	}
	defer amqpConn.Close()
	defer ch.Close()

	w := &reminderWorker{
		clients: func(userID string) repository.CollectionRepositoryInterface[model.Client] {
			return postgres.NewTables(conn, repository.StaticPrincipal(userID)).Clients
		},
		logger:  logger,
		timeout: cfg.RequestTimeout,
	}

	logger.Info("worker running, waiting for record changes")
	if err := queue.Consume(ctx, ch, queue.TopicRecordChanged, w.handle, logger); err != nil && ctx.Err() == nil {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
}

// reminderWorker recomputes a user's upcoming client events whenever one of
// their clients changes.
type reminderWorker struct {
	clients func(userID string) repository.CollectionRepositoryInterface[model.Client]
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

func (w *reminderWorker) handle(body []byte) error {
	timeout := w.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ev, err := queue.DecodeRecordEvent(body)
	if err != nil {
		return err
	}
	_, err = w.process(ctx, ev)
	return err
}

// process returns the events it reminded about. Events for other tables are
// ignored.
func (w *reminderWorker) process(ctx context.Context, ev queue.RecordEvent) ([]dashboard.Event, error) {
	if ev.Table != repository.TableClients {
		return nil, nil
	}
	if ev.UserID == "" {
		return nil, fmt.Errorf("%s event %s has no owner: %w", ev.Table, ev.ID, appErrors.ErrNotAuthenticated)
	}
	now := time.Now
	if w.now != nil {
		now = w.now
	}

	clients, err := w.clients(ev.UserID).List(ctx, repository.ListOptions{})
	if err != nil {
		return nil, err
	}
	events := dashboard.UpcomingEvents(clients, now())
	for _, e := range events {
		w.logger.Info("upcoming client event",
			zap.String("user_id", ev.UserID),
			zap.String("client_id", e.ClientID),
			zap.String("type", string(e.Kind)),
			zap.String("reminder", dashboard.Describe(e)))
	}
	return events, nil
}
