package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/smallbiznis/recovery/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	EventActionRequired = "case.action_required"
	EventCaseSettled    = "case.settled"
)

var ErrPublisherClosed = errors.New("publisher_closed")

// Event is published whenever a case starts needing collector contact or
// is settled by payment.
type Event struct {
	Type         string    `json:"type"`
	CaseID       string    `json:"case_id"`
	InvoiceID    string    `json:"invoice_id"`
	CustomerID   string    `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	Zone         string    `json:"zone"`
	Action       string    `json:"action"`
	Outstanding  string    `json:"outstanding"`
	AgentID      string    `json:"agent_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// PubSubPublisher sends events to a Google Pub/Sub topic as JSON.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic

	mu     sync.RWMutex
	closed bool
}

func NewPubSubPublisher(ctx context.Context, cfg config.PubSubConfig) (*PubSubPublisher, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("pubsub project id is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("pubsub topic is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSubPublisher{client: client, topic: client.Topic(cfg.Topic)}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":   event.Type,
			"action": event.Action,
		},
	})
	_, err = res.Get(ctx)
	return err
}

func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.topic.Stop()
	return p.client.Close()
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// New picks the Pub/Sub publisher when a project is configured and the no-op
// publisher otherwise.
func New(p Params) (Publisher, error) {
	log := p.Log.Named("notify")
	if p.Config.PubSub.ProjectID == "" {
		log.Info("pubsub not configured, action events disabled")
		return NopPublisher{}, nil
	}

	publisher, err := NewPubSubPublisher(context.Background(), p.Config.PubSub)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	log.Info("pubsub publisher ready",
		zap.String("project_id", p.Config.PubSub.ProjectID),
		zap.String("topic", p.Config.PubSub.Topic),
	)
	return publisher, nil
}

var Module = fx.Module("notify",
	fx.Provide(New),
)
