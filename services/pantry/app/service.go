// Package app implements the pantry use cases: shopping session commands, ingredient
// management and the read-side queries consumed by the HTTP layer.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const defaultPhotoURLTTL = 15 * time.Minute

// Config carries the optional collaborators of a Service.
type Config struct {
	Publisher   Publisher
	Photos      PhotoStorage
	PhotoURLTTL time.Duration
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Service exposes every pantry use case over a Store.
type Service struct {
	store     Store
	publisher Publisher
	photos    PhotoStorage
	photoTTL  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewService builds a Service, applying defaults to cfg.
func NewService(store Store, cfg Config) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PhotoURLTTL <= 0 {
		cfg.PhotoURLTTL = defaultPhotoURLTTL
	}

	return &Service{
		store:     store,
		publisher: cfg.Publisher,
		photos:    cfg.Photos,
		photoTTL:  cfg.PhotoURLTTL,
		log:       cfg.Logger,
		now:       func() time.Time { return cfg.Now().UTC() },
	}, nil
}

func (s *Service) publish(ctx context.Context, subject string, evt Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, subject, evt); err != nil {
		s.log.Warn().Err(err).Str("subject", subject).Str("session_id", evt.SessionID).Msg("publish event")
	}
}
