package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/docflow-api/internal/dto"
	"github.com/noah-isme/docflow-api/internal/observability"
)

const auditStreamBufferSize = 32

// AuditStream fans committed activity entries out to live subscribers of a client.
type AuditStream interface {
	Publish(ctx context.Context, entry dto.ActivityLogResponse)
	Subscribe(clientID uint) (<-chan dto.ActivityLogResponse, func())
	Start(ctx context.Context)
}

type auditStream struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *auditBroker
	nodeID       string
}

type auditEvent struct {
	Source string                  `json:"source"`
	Entry  dto.ActivityLogResponse `json:"entry"`
	SentAt time.Time               `json:"sent_at"`
}

type auditBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.ActivityLogResponse]struct{}
}

// NewAuditStream builds the stream. Redis and NATS are optional; without them
// entries only reach subscribers connected to this node.
func NewAuditStream(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) AuditStream {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":activity"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".activity"
	}

	return &auditStream{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "audit_stream").Logger(),
		broker: &auditBroker{
			subscribers: make(map[uint]map[chan dto.ActivityLogResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *auditStream) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *auditStream) Publish(ctx context.Context, entry dto.ActivityLogResponse) {
	s.broker.broadcast(entry.ClientID, entry)

	payload, err := json.Marshal(auditEvent{Source: s.nodeID, Entry: entry, SentAt: time.Now().UTC()})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode activity event")
		return
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish activity event to redis")
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish activity event to nats")
		}
	}
}

func (s *auditStream) Subscribe(clientID uint) (<-chan dto.ActivityLogResponse, func()) {
	channel := make(chan dto.ActivityLogResponse, auditStreamBufferSize)

	s.broker.subscribe(clientID, channel)
	observability.AuditStreamClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(clientID, channel)
			observability.AuditStreamClients().Dec()
		})
	}

	return channel, cleanup
}

func (s *auditStream) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("activity redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *auditStream) consumeNATS(ctx context.Context) {
	// Every node must see every event, so this is a plain subscription rather than a queue group.
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats activity subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain activity nats subscription")
		}
	}()
}

func (s *auditStream) handleEvent(payload []byte) {
	var event auditEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid activity event payload")
		return
	}
	if event.Source == s.nodeID {
		return
	}
	s.broker.broadcast(event.Entry.ClientID, event.Entry)
}

func (b *auditBroker) subscribe(clientID uint, ch chan dto.ActivityLogResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[clientID]; !exists {
		b.subscribers[clientID] = make(map[chan dto.ActivityLogResponse]struct{})
	}
	b.subscribers[clientID][ch] = struct{}{}
}

func (b *auditBroker) unsubscribe(clientID uint, ch chan dto.ActivityLogResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[clientID]; ok {
		if _, present := subscribers[ch]; !present {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, clientID)
		}
	}
}

// broadcast drops the entry for subscribers whose buffer is full.
func (b *auditBroker) broadcast(clientID uint, entry dto.ActivityLogResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[clientID] {
		select {
		case ch <- entry:
		default:
		}
	}
}
