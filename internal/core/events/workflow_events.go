package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRequestCreated   = "request.created"
	EventTypeRequestApproved  = "request.approved"
	EventTypeRequestRejected  = "request.rejected"
	EventTypeRequestDelivered = "request.delivered"
	EventTypeRequestDeleted   = "request.deleted"

	EventTypeOverrideUpdated = "permission.override_updated"
)

// RequestEventTypes lists every request lifecycle event.
func RequestEventTypes() []string {
	return []string{
		EventTypeRequestCreated,
		EventTypeRequestApproved,
		EventTypeRequestRejected,
		EventTypeRequestDelivered,
		EventTypeRequestDeleted,
	}
}

type RequestEvent struct {
	BaseEvent
	RequestID int64  `json:"request_id"`
	Code      int64  `json:"code"`
	ActorID   int64  `json:"actor_id"`
	Status    string `json:"status"`
}

func NewRequestEvent(eventType string, requestID, code, actorID int64, status string) *RequestEvent {
	return &RequestEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"request_id": requestID,
				"code":       code,
				"actor_id":   actorID,
				"status":     status,
			},
		},
		RequestID: requestID,
		Code:      code,
		ActorID:   actorID,
		Status:    status,
	}
}

type OverrideUpdatedEvent struct {
	BaseEvent
	UserID     int64 `json:"user_id"`
	ModifiedBy int64 `json:"modified_by"`
}

func NewOverrideUpdatedEvent(userID, modifiedBy int64) *OverrideUpdatedEvent {
	return &OverrideUpdatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeOverrideUpdated,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"user_id":     userID,
				"modified_by": modifiedBy,
			},
		},
		UserID:     userID,
		ModifiedBy: modifiedBy,
	}
}
