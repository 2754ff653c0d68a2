package usecases

import (
	"context"
	"time"

	"github.com/opencat-io/opencat/internal/domain/event"
	"github.com/opencat-io/opencat/internal/shared/constants"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type ListEventsQuery struct {
	AppID    uint
	SinceSID string // exclusive cursor; empty starts from the beginning
	Limit    int
}

type EventDTO struct {
	SID         string         `json:"id"`
	Type        string         `json:"type"`
	Payload     map[string]any `json:"payload"`
	FannedOutAt *time.Time     `json:"fanned_out_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type ListEventsResult struct {
	Events []EventDTO `json:"events"`
	// NextCursor is the SID to pass as since for the following page.
	// Empty when this page is the end of the log.
	NextCursor string `json:"next_cursor,omitempty"`
}

// ListEventsUseCase reads the event log in creation order, oldest first,
// for audit and inspection.
type ListEventsUseCase struct {
	eventRepo event.Repository
	logger    logger.Interface
}

func NewListEventsUseCase(eventRepo event.Repository, logger logger.Interface) *ListEventsUseCase {
	return &ListEventsUseCase{
		eventRepo: eventRepo,
		logger:    logger,
	}
}

func (uc *ListEventsUseCase) Execute(ctx context.Context, query ListEventsQuery) (*ListEventsResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = constants.DefaultEventLimit
	}
	if limit > constants.MaxEventLimit {
		limit = constants.MaxEventLimit
	}

	var sinceID uint
	if query.SinceSID != "" {
		since, err := uc.eventRepo.GetBySID(ctx, query.SinceSID)
		if err != nil {
			return nil, err
		}
		sinceID = since.ID()
	}

	events, err := uc.eventRepo.ListByApp(ctx, query.AppID, sinceID, limit)
	if err != nil {
		return nil, err
	}

	result := &ListEventsResult{
		Events: make([]EventDTO, len(events)),
	}
	for i, e := range events {
		result.Events[i] = EventDTO{
			SID:         e.SID(),
			Type:        e.Type().String(),
			Payload:     e.Payload(),
			FannedOutAt: e.FannedOutAt(),
			CreatedAt:   e.CreatedAt(),
		}
	}
	if len(events) == limit {
		result.NextCursor = events[len(events)-1].SID()
	}

	return result, nil
}
