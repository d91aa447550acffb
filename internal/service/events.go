package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// 领域事件类型（MQTT topic 后缀）
const (
	EventResidentCreated    = "resident.created"
	EventResidentUpdated    = "resident.updated"
	EventResidentDeleted    = "resident.deleted"
	EventFamilyCardCreated  = "family_card.created"
	EventMembershipChanged  = "membership.changed"
	EventBirthRecorded      = "birth.recorded"
	EventBirthDeleted       = "birth.deleted"
	EventDeathRecorded      = "death.recorded"
	EventDeathUpdated       = "death.updated"
	EventDeathDeleted       = "death.deleted"
	EventArrivalRecorded    = "arrival.recorded"
	EventArrivalDeleted     = "arrival.deleted"
	EventDepartureRecorded  = "departure.recorded"
	EventDepartureUpdated   = "departure.updated"
	EventDepartureDeleted   = "departure.deleted"
	EventLetterRequested    = "letter.requested"
	EventLetterStatusChange = "letter.status_changed"
)

// DomainEvent 事务提交后发布的事件
type DomainEvent struct {
	Type       string    `json:"type"`
	EntityID   string    `json:"entity_id"`
	ResidentID string    `json:"resident_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher 尽力发布，失败只记录日志
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, DomainEvent) {}

// mqttPublisher common/mqtt.Client 满足该接口
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	QoS() byte
}

// MQTTEventPublisher 发布到 "<prefix>/<type>"
type MQTTEventPublisher struct {
	client mqttPublisher
	prefix string
	logger *zap.Logger
}

func NewMQTTEventPublisher(client mqttPublisher, topicPrefix string, logger *zap.Logger) *MQTTEventPublisher {
	return &MQTTEventPublisher{client: client, prefix: topicPrefix, logger: logger}
}

func (p *MQTTEventPublisher) Publish(_ context.Context, event DomainEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to encode domain event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	topic := p.prefix + "/" + event.Type
	if err := p.client.Publish(topic, p.client.QoS(), false, payload); err != nil {
		p.logger.Warn("Failed to publish domain event",
			zap.String("topic", topic),
			zap.String("entity_id", event.EntityID),
			zap.Error(err),
		)
	}
}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return NopPublisher{}
	}
	return p
}
