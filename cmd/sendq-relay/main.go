// Command sendq-relay runs the send scheduler against a local sendq database,
// delivering claimed messages to an HTTP webhook.
//
// It exists for deployments where the transport is a sidecar or gateway that
// accepts outgoing messages as JSON POSTs; the client process only enqueues.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/murmurchat/sendq"
	"github.com/murmurchat/sendq/sqlite"
)

const exitUsage = 2

type config struct {
	DBPath       string        `env:"SENDQ_DB" env-description:"path to the sendq SQLite database"`
	WebhookURL   string        `env:"SENDQ_WEBHOOK_URL" env-description:"URL receiving outgoing messages as JSON POSTs"`
	Workers      int           `env:"SENDQ_WORKERS" env-default:"1"`
	BatchSize    int           `env:"SENDQ_BATCH_SIZE" env-default:"25"`
	PollInterval time.Duration `env:"SENDQ_POLL_INTERVAL" env-default:"250ms"`
	SendTimeout  time.Duration `env:"SENDQ_SEND_TIMEOUT" env-default:"30s"`
	StaleAfter   time.Duration `env:"SENDQ_STALE_AFTER" env-default:"5m"`
	Verbose      bool          `env:"SENDQ_VERBOSE" env-default:"false"`
}

type wireMessage struct {
	ID          uuid.UUID               `json:"id"`
	ThreadID    uuid.UUID               `json:"thread_id"`
	Body        *sendq.Body             `json:"body,omitempty"`
	QuotedReply *sendq.QuotedReply      `json:"quoted_reply,omitempty"`
	LinkPreview *sendq.LinkPreviewDraft `json:"link_preview,omitempty"`
	Sticker     *sendq.Sticker          `json:"sticker,omitempty"`
	Attachments []wireAttachment        `json:"attachments,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

type wireAttachment struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name,omitempty"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"data"`
}

type webhookTransport struct {
	url    string
	client *http.Client
}

func (t *webhookTransport) Send(ctx context.Context, msg sendq.Message) error {
	wire := wireMessage{
		ID:          msg.ID,
		ThreadID:    msg.ThreadID,
		Body:        msg.Body,
		QuotedReply: msg.QuotedReply,
		LinkPreview: msg.LinkPreview,
		Sticker:     msg.Sticker,
		CreatedAt:   msg.CreatedAt,
	}
	for _, att := range msg.Attachments {
		wire.Attachments = append(wire.Attachments, wireAttachment{
			ID:          att.ID,
			FileName:    att.FileName,
			ContentType: att.ContentType,
			Size:        att.Size,
			Data:        att.Data,
		})
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}

	return nil
}

// classify treats webhook 4xx responses as permanent failures and everything
// else as retryable.
func classify(_ context.Context, _ sendq.Message, err error) sendq.FailureAction {
	var status int
	if _, scanErr := fmt.Sscanf(err.Error(), "webhook returned %d", &status); scanErr == nil {
		if status >= 400 && status < 500 {
			return sendq.FailurePermanent
		}
	}

	return sendq.FailureRetry
}

func main() {
	var cfg config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "read environment:", err)
		os.Exit(exitUsage)
	}

	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the sendq SQLite database")
	flag.StringVar(&cfg.WebhookURL, "webhook", cfg.WebhookURL, "URL receiving outgoing messages")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of send workers")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "messages claimed per batch")
	flag.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "delay between empty polls")
	flag.DurationVar(&cfg.SendTimeout, "timeout", cfg.SendTimeout, "per-message send timeout")
	flag.DurationVar(&cfg.StaleAfter, "stale-after", cfg.StaleAfter, "window after which stuck claims are released")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "verbose logging")
	flag.Parse()

	if cfg.DBPath == "" || cfg.WebhookURL == "" {
		fmt.Fprintln(os.Stderr, "both -db and -webhook are required")
		flag.Usage()
		os.Exit(exitUsage)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrate", "err", err)
		os.Exit(1)
	}

	transport := &webhookTransport{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: cfg.SendTimeout},
	}
	scheduler := sendq.NewScheduler(store, transport,
		sendq.WithWorkers(cfg.Workers),
		sendq.WithBatchSize(cfg.BatchSize),
		sendq.WithPollInterval(cfg.PollInterval),
		sendq.WithSendTimeout(cfg.SendTimeout),
		sendq.WithStaleAfter(cfg.StaleAfter),
		sendq.WithPendingInterval(time.Minute),
		sendq.WithFailureClassifier(classify),
		sendq.WithSchedulerLogger(logger),
	)

	logger.Info("relay started", "db", cfg.DBPath, "webhook", cfg.WebhookURL, "workers", cfg.Workers)
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("relay stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("relay stopped")
}
