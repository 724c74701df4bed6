package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"plexward/internal/domain/event"
	"plexward/internal/infrastructure/persistence/models"
	"plexward/internal/shared/biztime"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

var _ event.Repository = (*EventRepository)(nil)

func (r *EventRepository) Log(ctx context.Context, kind string, payload map[string]any) error {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
	}

	model := models.EventModel{
		Kind:      kind,
		Payload:   raw,
		CreatedAt: biztime.NowUTC(),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}
	return nil
}

func (r *EventRepository) ListRecent(ctx context.Context, limit int) ([]*event.Event, error) {
	var rows []models.EventModel
	err := r.db.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return toEventList(rows)
}

func (r *EventRepository) ListByKind(ctx context.Context, kind string, limit int) ([]*event.Event, error) {
	var rows []models.EventModel
	err := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events by kind: %w", err)
	}
	return toEventList(rows)
}

func toEventList(rows []models.EventModel) ([]*event.Event, error) {
	events := make([]*event.Event, 0, len(rows))
	for i := range rows {
		var payload map[string]any
		if len(rows[i].Payload) > 0 {
			if err := json.Unmarshal(rows[i].Payload, &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
			}
		}
		events = append(events, &event.Event{
			ID:        rows[i].ID,
			Kind:      rows[i].Kind,
			Payload:   payload,
			CreatedAt: rows[i].CreatedAt,
		})
	}
	return events, nil
}
