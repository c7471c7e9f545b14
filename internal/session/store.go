package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-widget/internal/calendar"
)

const (
	sessionKeyPrefix  = "widget:session:"
	defaultSessionTTL = 24 * time.Hour
)

// Hash fields, one per session field.
const (
	fieldID               = "id"
	fieldCreatedAt        = "created_at"
	fieldDate             = "selected_date"
	fieldDateLabel        = "selected_date_label"
	fieldTime             = "selected_time"
	fieldServices         = "services"
	fieldProviderID       = "provider_id"
	fieldProviderName     = "provider_name"
	fieldProviderCategory = "provider_category"
	fieldVenueID          = "venue_id"
	fieldVenueName        = "venue_name"
	fieldVenueAddress     = "venue_address"
	fieldClientName       = "client_name"
	fieldClientSurname    = "client_surname"
	fieldClientPatronymic = "client_patronymic"
	fieldClientBirthday   = "client_birthday"
	fieldClientPhone      = "client_phone"
	fieldClientEmail      = "client_email"
	fieldRemindMinutes    = "remind_minutes"
)

// Store persists sessions as Redis hashes so a reopened widget restores its
// selections.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a session store. A non-positive ttl uses 24h.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Save writes every field of the session and refreshes its expiry.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID() == "" {
		return fmt.Errorf("session: save: id required")
	}
	fields, err := encodeFields(sess)
	if err != nil {
		return err
	}
	key := sessionKey(sess.ID())
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: save %s: %w", sess.ID(), err)
	}
	return nil
}

// Load restores a session, returning ErrNotFound when it is missing or expired.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	key := sessionKey(id)
	values, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	sess, err := decodeFields(values)
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}
	if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("session: refresh ttl %s: %w", id, err)
	}
	return sess, nil
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	return nil
}

func encodeFields(sess *Session) (map[string]any, error) {
	services := sess.Services()
	if services == nil {
		services = []ServiceItem{}
	}
	servicesJSON, err := json.Marshal(services)
	if err != nil {
		return nil, fmt.Errorf("session: encode services: %w", err)
	}

	var date, label string
	if d, ok := sess.SelectedDate(); ok {
		date, label = d.Key(), d.WeekdayLabel
	}
	t, _ := sess.SelectedTime()
	p, v, c := sess.Provider(), sess.Venue(), sess.Client()

	return map[string]any{
		fieldID:               sess.ID(),
		fieldCreatedAt:        sess.CreatedAt().UTC().Format(time.RFC3339Nano),
		fieldDate:             date,
		fieldDateLabel:        label,
		fieldTime:             t,
		fieldServices:         string(servicesJSON),
		fieldProviderID:       p.ID,
		fieldProviderName:     p.Name,
		fieldProviderCategory: p.Category,
		fieldVenueID:          v.ID,
		fieldVenueName:        v.Name,
		fieldVenueAddress:     v.Address,
		fieldClientName:       c.Name,
		fieldClientSurname:    c.Surname,
		fieldClientPatronymic: c.Patronymic,
		fieldClientBirthday:   c.Birthday,
		fieldClientPhone:      c.Phone,
		fieldClientEmail:      c.Email,
		fieldRemindMinutes:    strconv.Itoa(sess.RemindMinutes()),
	}, nil
}

func decodeFields(values map[string]string) (*Session, error) {
	snap := Snapshot{
		ID: values[fieldID],
		Provider: Provider{
			ID:       values[fieldProviderID],
			Name:     values[fieldProviderName],
			Category: values[fieldProviderCategory],
		},
		Venue: Venue{
			ID:      values[fieldVenueID],
			Name:    values[fieldVenueName],
			Address: values[fieldVenueAddress],
		},
		Client: Client{
			Name:       values[fieldClientName],
			Surname:    values[fieldClientSurname],
			Patronymic: values[fieldClientPatronymic],
			Birthday:   values[fieldClientBirthday],
			Phone:      values[fieldClientPhone],
			Email:      values[fieldClientEmail],
		},
	}

	if raw := values[fieldCreatedAt]; raw != "" {
		created, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode created_at: %w", err)
		}
		snap.CreatedAt = created
	}
	if raw := values[fieldDate]; raw != "" {
		d, err := calendar.ParseKey(raw)
		if err != nil {
			return nil, err
		}
		d.WeekdayLabel = values[fieldDateLabel]
		snap.SelectedDate = &d
	}
	if raw := values[fieldTime]; raw != "" {
		snap.SelectedTime = &raw
	}
	if raw := values[fieldServices]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &snap.Services); err != nil {
			return nil, fmt.Errorf("decode services: %w", err)
		}
	}
	if raw := values[fieldRemindMinutes]; raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("decode remind_minutes: %w", err)
		}
		snap.RemindMinutes = minutes
	}
	return Restore(snap), nil
}
