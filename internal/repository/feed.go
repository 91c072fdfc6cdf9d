package repository

import (
	"context"
	"errors"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
)

// MultiFeed fans a tick batch out to several publishers. Every
// publisher gets the batch even when an earlier one fails; errors are
// joined for the caller to log.
type MultiFeed struct {
	feeds []repository.FeedPublisher
}

func NewMultiFeed(feeds ...repository.FeedPublisher) *MultiFeed {
	return &MultiFeed{feeds: feeds}
}

func (m *MultiFeed) PublishTicks(ctx context.Context, ticks []models.PriceTick) error {
	var errs []error
	for _, f := range m.feeds {
		if err := f.PublishTicks(ctx, ticks); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiFeed) Close() error {
	var errs []error
	for _, f := range m.feeds {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
