package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/catalog-service/internal/events"
)

// AuditService writes security and catalog events to the audit log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventUserRegistered, a.handleAccountEvent)
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleAccountEvent)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginRejected)
	a.dispatcher.Subscribe(events.EventLoginThrottled, a.handleLoginRejected)
	a.dispatcher.Subscribe(events.EventBookCreated, a.handleCatalogEvent)
	a.dispatcher.Subscribe(events.EventBookUpdated, a.handleCatalogEvent)
	a.dispatcher.Subscribe(events.EventBookDeleted, a.handleCatalogEvent)
}

func (a *AuditService) handleAccountEvent(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type), eventFields(event)...)
	return nil
}

func (a *AuditService) handleLoginRejected(_ context.Context, event events.Event) error {
	a.logger.Warn(string(event.Type), eventFields(event)...)
	return nil
}

func (a *AuditService) handleCatalogEvent(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type), eventFields(event)...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("resource", event.Resource),
		zap.String("actor", event.Actor.Username),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload),
	}
}
