package setting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"plexward/internal/shared/biztime"
)

// ErrNotFound is returned when no setting matches the lookup.
var ErrNotFound = errors.New("setting not found")

// ValueType defines the type of a setting value
type ValueType string

const (
	ValueTypeString ValueType = "string"
	ValueTypeInt    ValueType = "int"
	ValueTypeBool   ValueType = "bool"
	ValueTypeJSON   ValueType = "json"
)

// SystemSetting represents one configuration entry, grouped by category
// ("paypal", "stripe", "plex", "smtp", "notifications", "announcement").
// Database values take precedence over file/env configuration.
type SystemSetting struct {
	id        uint
	category  string
	key       string
	value     string
	valueType ValueType
	createdAt time.Time
	updatedAt time.Time
}

// NewSystemSetting creates a setting entry.
func NewSystemSetting(category, key, value string, valueType ValueType) (*SystemSetting, error) {
	if category == "" {
		return nil, fmt.Errorf("category is required")
	}
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	switch valueType {
	case ValueTypeString, ValueTypeInt, ValueTypeBool, ValueTypeJSON:
	default:
		return nil, fmt.Errorf("invalid value type: %s", valueType)
	}

	now := biztime.NowUTC()
	return &SystemSetting{
		category:  category,
		key:       key,
		value:     value,
		valueType: valueType,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructSystemSetting rebuilds a setting from persistence.
func ReconstructSystemSetting(id uint, category, key, value string, valueType ValueType, createdAt, updatedAt time.Time) *SystemSetting {
	return &SystemSetting{
		id:        id,
		category:  category,
		key:       key,
		value:     value,
		valueType: valueType,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (s *SystemSetting) ID() uint             { return s.id }
func (s *SystemSetting) Category() string     { return s.category }
func (s *SystemSetting) Key() string          { return s.key }
func (s *SystemSetting) Value() string        { return s.value }
func (s *SystemSetting) Type() ValueType      { return s.valueType }
func (s *SystemSetting) CreatedAt() time.Time { return s.createdAt }
func (s *SystemSetting) UpdatedAt() time.Time { return s.updatedAt }

// SetID writes the auto-generated ID back after insert.
func (s *SystemSetting) SetID(id uint) { s.id = id }

// SetValue updates the stored value.
func (s *SystemSetting) SetValue(value string) {
	s.value = value
	s.updatedAt = biztime.NowUTC()
}

// IntValue parses the value as int, returning fallback on failure.
func (s *SystemSetting) IntValue(fallback int) int {
	v, err := strconv.Atoi(s.value)
	if err != nil {
		return fallback
	}
	return v
}

// BoolValue parses the value as bool, returning fallback on failure.
func (s *SystemSetting) BoolValue(fallback bool) bool {
	v, err := strconv.ParseBool(s.value)
	if err != nil {
		return fallback
	}
	return v
}

// Repository defines setting persistence.
type Repository interface {
	GetByKey(ctx context.Context, category, key string) (*SystemSetting, error)
	GetByCategory(ctx context.Context, category string) ([]*SystemSetting, error)
	Upsert(ctx context.Context, s *SystemSetting) error
	Delete(ctx context.Context, category, key string) error
}
