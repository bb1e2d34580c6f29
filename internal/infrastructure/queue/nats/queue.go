package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/case-inquiry/internal/infrastructure/resilience"
)

// Queue carries follow-up questions over NATS request/reply.
type Queue struct {
	conn           *nats.Conn
	subject        string
	group          string
	handlerTimeout time.Duration
	executor       *resilience.Executor
	logger         *slog.Logger
}

const (
	// RequestOperation is the executor operation name for question requests.
	RequestOperation = "nats.request"

	DefaultHandlerTimeout = 2 * time.Minute
)

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	HandlerTimeout       time.Duration
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	group := options.QueueGroup
	if group == "" {
		group = "inquiry-workers"
	}
	handlerTimeout := options.HandlerTimeout
	if handlerTimeout <= 0 {
		handlerTimeout = DefaultHandlerTimeout
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("case-inquiry"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subject:        subject,
		group:          group,
		handlerTimeout: handlerTimeout,
		executor:       options.ResilienceExecutor,
		logger:         logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Request sends one question payload and waits for the worker's reply.
func (q *Queue) Request(ctx context.Context, payload []byte) ([]byte, error) {
	var reply []byte
	call := func(callCtx context.Context) error {
		msg, err := q.conn.RequestWithContext(callCtx, q.subject, payload)
		if err != nil {
			return fmt.Errorf("nats request: %w", err)
		}
		reply = msg.Data
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, RequestOperation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded(err)
	}
	return reply, nil
}

// SubscribeQuestions answers requests until ctx is done, then drains. A
// handler error is logged and the requester gets no reply.
func (q *Queue) SubscribeQuestions(ctx context.Context, handler func(context.Context, []byte) ([]byte, error)) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.group, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithTimeout(ctx, q.handlerTimeout)
		defer cancel()
		reply, err := handler(handlerCtx, msg.Data)
		if err != nil {
			q.logger.Error("question_handler_failed", "subject", msg.Subject, "error", err)
			return
		}
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			q.logger.Error("question_reply_failed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
