// Package pubsub publishes status change events over NATS so interested
// agents can react to provisioning transitions without polling.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// StatusMessage is the event body published on every resource status change.
type StatusMessage struct {
	EventType          string                `json:"event_type"`
	ResourceType       lb.ResourceType       `json:"resource_type"`
	SubjectID          string                `json:"subject_id"`
	LoadBalancerID     string                `json:"loadbalancer_id"`
	ProvisioningStatus lb.ProvisioningStatus `json:"provisioning_status,omitempty"`
	OperatingStatus    lb.OperatingStatus    `json:"operating_status,omitempty"`
	Timestamp          time.Time             `json:"timestamp"`
}

// Publisher is the nats publisher for status change events.
type Publisher struct {
	url           string
	conn          *nats.Conn
	userCreds     string
	subjectPrefix string
	logger        *zap.SugaredLogger
}

// PublisherOption is a functional option for the Publisher.
type PublisherOption func(p *Publisher)

// WithLogger sets the logger for the Publisher.
func WithLogger(l *zap.SugaredLogger) PublisherOption {
	return func(p *Publisher) {
		p.logger = l
	}
}

// WithUserCredentials sets the nats user credentials file for the Publisher.
func WithUserCredentials(creds string) PublisherOption {
	return func(p *Publisher) {
		p.userCreds = creds
	}
}

// WithSubjectPrefix overrides the subject prefix for published events.
func WithSubjectPrefix(prefix string) PublisherOption {
	return func(p *Publisher) {
		p.subjectPrefix = prefix
	}
}

// NewPublisher creates a new Publisher.
func NewPublisher(url string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		url:           url,
		subjectPrefix: "lbstatus",
		logger:        zap.NewNop().Sugar(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Connect connects to the nats server.
func (p *Publisher) Connect() error {
	var opts []nats.Option

	if p.userCreds != "" {
		opts = append(opts, nats.UserCredentials(p.userCreds))
	}

	conn, err := nats.Connect(p.url, opts...)
	if err != nil {
		return err
	}

	p.conn = conn

	return nil
}

// PublishStatus publishes one status change on
// "<prefix>.<resource_type>.<event_type>".
func (p *Publisher) PublishStatus(_ context.Context, msg StatusMessage) error {
	if p.conn == nil || p.conn.IsClosed() {
		return ErrNatsConnClosed
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s.%s.%s", p.subjectPrefix, msg.ResourceType, msg.EventType)

	if err := p.conn.Publish(subject, data); err != nil {
		return err
	}

	p.logger.Debugw("published status event", "subject", subject, "subjectID", msg.SubjectID)

	return nil
}

// Close flushes and closes the nats connection.
func (p *Publisher) Close() error {
	if p.conn != nil && !p.conn.IsClosed() {
		p.logger.Info("Shutting down nats connection")

		if err := p.conn.Flush(); err != nil {
			return err
		}

		p.conn.Close()
	}

	return nil
}
