package events

import (
	"context"
	"errors"
	"fmt"

	"attendly/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrEventNotFound = errors.New("event not found")

type Service interface {
	SetCapacityListener(listener CapacityListener)
	CreateEvent(ctx context.Context, userID uuid.UUID, req CreateEventRequest) (*EventResponse, error)
	GetEventByID(ctx context.Context, id uuid.UUID) (*EventResponse, error)
	GetAllEvents(ctx context.Context, query EventListQuery) (*PaginatedEvents, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, userID uuid.UUID, req UpdateEventRequest) (*UpdateEventResponse, error)
}

// CapacityListener is told about every committed event edit so it can
// promote waitlisted attendees into newly available seats. Declared here to
// avoid an import cycle with the admission package.
type CapacityListener interface {
	HandleCapacityChange(ctx context.Context, before, after *Event) (int, error)
}

type service struct {
	repo     Repository
	listener CapacityListener
	log      *logger.Logger
}

func NewService(repo Repository, log *logger.Logger) Service {
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{repo: repo, log: log}
}

func (s *service) SetCapacityListener(listener CapacityListener) {
	s.listener = listener
}

func (s *service) CreateEvent(ctx context.Context, userID uuid.UUID, req CreateEventRequest) (*EventResponse, error) {
	event := &Event{
		Name:                req.Name,
		Description:         req.Description,
		Venue:               req.Venue,
		StartsAt:            req.StartsAt.UTC(),
		Capacity:            positiveOrNil(req.Capacity),
		WaitlistEnabled:     req.WaitlistEnabled,
		WaitlistMaxSize:     positiveOrNil(req.WaitlistMaxSize),
		WaitlistAutoPromote: req.WaitlistAutoPromote,
		CreatedBy:           userID,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.log.InfoWithContext(ctx, "Event Created", map[string]interface{}{
		"event_id": event.ID.String(),
		"user_id":  userID.String(),
	})

	resp := event.ToResponse()
	return &resp, nil
}

func (s *service) GetEventByID(ctx context.Context, id uuid.UUID) (*EventResponse, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	resp := event.ToResponse()
	return &resp, nil
}

func (s *service) GetAllEvents(ctx context.Context, query EventListQuery) (*PaginatedEvents, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}
	if query.Limit > 100 {
		query.Limit = 100
	}

	events, total, err := s.repo.GetAll(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]EventResponse, 0, len(events))
	for i := range events {
		out = append(out, events[i].ToResponse())
	}

	return &PaginatedEvents{
		Events:     out,
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
	}, nil
}

// UpdateEvent applies the patch and, once it is stored, hands the before and
// after versions to the capacity listener. A listener failure is logged and
// does not undo the edit: promotions can be retried by the admin endpoint.
func (s *service) UpdateEvent(ctx context.Context, id uuid.UUID, userID uuid.UUID, req UpdateEventRequest) (*UpdateEventResponse, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	updates := make(map[string]interface{})

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Venue != nil {
		updates["venue"] = *req.Venue
	}
	if req.StartsAt != nil {
		updates["starts_at"] = req.StartsAt.UTC()
	}
	if req.Capacity != nil {
		updates["capacity"] = positiveOrNil(*req.Capacity)
	}
	if req.WaitlistEnabled != nil {
		updates["waitlist_enabled"] = *req.WaitlistEnabled
	}
	if req.WaitlistMaxSize != nil {
		updates["waitlist_max_size"] = positiveOrNil(*req.WaitlistMaxSize)
	}
	if req.WaitlistAutoPromote != nil {
		updates["waitlist_auto_promote"] = *req.WaitlistAutoPromote
	}
	updates["updated_by"] = userID

	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	result := &UpdateEventResponse{Event: updated.ToResponse()}

	if s.listener != nil {
		promoted, err := s.listener.HandleCapacityChange(ctx, current, updated)
		if err != nil {
			s.log.ErrorWithContext(ctx, "Capacity change promotion failed", err, map[string]interface{}{
				"event_id": id.String(),
				"promoted": promoted,
			})
		}
		result.Promoted = promoted
	}

	return result, nil
}
