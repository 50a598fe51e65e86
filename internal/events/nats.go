package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recur/internal/logging"
	"github.com/fyrsmithlabs/recur/internal/orchestrator"
)

const (
	// DefaultSubjectPrefix roots every published subject.
	DefaultSubjectPrefix = "recur.runs"

	// DefaultFlushTimeout bounds Close.
	DefaultFlushTimeout = 2 * time.Second
)

// NATSSink publishes each event as JSON to:
//
//	{prefix}.{run_id}.{event_type}
//
// Every message carries a unique Nats-Msg-Id header so a JetStream stream
// bound to the subjects deduplicates redeliveries. Publish failures are logged
// and counted; they never fail the run.
type NATSSink struct {
	nc           *nats.Conn
	prefix       string
	flushTimeout time.Duration
	logger       *logging.Logger
	owned        bool

	published atomic.Int64
	failed    atomic.Int64
}

// NATSOption configures a NATSSink.
type NATSOption func(*NATSSink)

// WithSubjectPrefix sets the subject prefix. Empty keeps the default.
func WithSubjectPrefix(prefix string) NATSOption {
	return func(s *NATSSink) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithFlushTimeout bounds the flush performed by Close.
func WithFlushTimeout(d time.Duration) NATSOption {
	return func(s *NATSSink) {
		if d > 0 {
			s.flushTimeout = d
		}
	}
}

// WithLogger sets the logger for publish failures.
func WithLogger(l *logging.Logger) NATSOption {
	return func(s *NATSSink) {
		s.logger = logging.OrNop(l).Named("nats")
	}
}

// NewNATSSink publishes on an existing connection. Close flushes but does not
// close nc.
func NewNATSSink(nc *nats.Conn, opts ...NATSOption) *NATSSink {
	s := &NATSSink{
		nc:           nc,
		prefix:       DefaultSubjectPrefix,
		flushTimeout: DefaultFlushTimeout,
		logger:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DialNATS connects to url and returns a sink that owns the connection.
func DialNATS(url string, opts ...NATSOption) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("recur"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	s := NewNATSSink(nc, opts...)
	s.owned = true
	return s, nil
}

// Subject returns the subject ev is published to.
func (s *NATSSink) Subject(ev orchestrator.Event) string {
	return fmt.Sprintf("%s.%s.%s", s.prefix, ev.RunID, ev.Type)
}

// Handle publishes ev.
func (s *NATSSink) Handle(ev orchestrator.Event) {
	if err := s.publish(ev); err != nil {
		s.failed.Add(1)
		s.logger.Warn(context.Background(), "failed to publish progress event",
			zap.String("type", string(ev.Type)),
			zap.String("run_id", ev.RunID),
			zap.Error(err),
		)
		return
	}
	s.published.Add(1)
}

func (s *NATSSink) publish(ev orchestrator.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(s.Subject(ev))
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	msg.Data = data

	if err := s.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Published returns the number of events published.
func (s *NATSSink) Published() int64 {
	return s.published.Load()
}

// Failed returns the number of events that could not be published.
func (s *NATSSink) Failed() int64 {
	return s.failed.Load()
}

// Close flushes buffered messages, waiting at most the flush timeout or until
// ctx is done, and closes the connection when the sink owns it.
func (s *NATSSink) Close(ctx context.Context) error {
	timeout := s.flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	var err error
	if timeout > 0 && s.nc.IsConnected() {
		if ferr := s.nc.FlushTimeout(timeout); ferr != nil {
			err = fmt.Errorf("flushing nats: %w", ferr)
		}
	}
	if s.owned {
		s.nc.Close()
	}
	return err
}
