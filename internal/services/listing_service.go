package services

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"github.com/sirupsen/logrus"

	"kostBack/internal/cache"
	"kostBack/internal/intake"
	"kostBack/internal/models"
	"kostBack/internal/repositories"
	"kostBack/internal/storage"
)

// Notifier receives an event after every successful write.
type Notifier interface {
	Publish(event models.ListingEvent)
}

type ListingService struct {
	Repo     *repositories.ListingRepository
	Intake   *intake.Intake
	Cache    *cache.ListingCache
	Notifier Notifier
	Log      *logrus.Entry
}

// Create stores the uploaded photos and then inserts the row. Photos are
// removed again when the insert fails.
func (s *ListingService) Create(ctx context.Context, fields models.ListingFields, form *multipart.Form) (int64, error) {
	refs, err := s.Intake.Accept(ctx, form)
	if err != nil {
		return 0, err
	}

	id, err := s.Repo.Create(ctx, fields, refs)
	if err != nil {
		if derr := s.Intake.Discard(ctx, refs); derr != nil {
			s.logger().WithError(derr).WithField("images", refs.Names()).Warn("discard uploaded images")
		}
		return 0, err
	}

	s.changed(ctx, models.EventListingCreated, id)
	return id, nil
}

// List serves the cached collection when present. A fill is dropped when a
// write lands between reading the generation and storing the result.
func (s *ListingService) List(ctx context.Context) ([]models.Listing, error) {
	gen, genErr := s.Cache.Generation(ctx)
	if genErr != nil {
		s.logger().WithError(genErr).Warn("listing cache generation")
	}

	listings, hit, err := s.Cache.Get(ctx)
	if err != nil {
		s.logger().WithError(err).Warn("listing cache read")
	}
	if hit {
		return listings, nil
	}

	listings, err = s.Repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		if err := s.Cache.Set(ctx, gen, listings); err != nil {
			s.logger().WithError(err).Warn("listing cache write")
		}
	}
	return listings, nil
}

func (s *ListingService) Get(ctx context.Context, id int64) (models.Listing, error) {
	return s.Repo.GetByID(ctx, id)
}

// Update returns models.ErrListingNotFound when no row has the id.
func (s *ListingService) Update(ctx context.Context, id int64, fields models.ListingFields) error {
	if err := s.Repo.Update(ctx, id, fields); err != nil {
		return err
	}
	s.changed(ctx, models.EventListingUpdated, id)
	return nil
}

// Delete returns models.ErrListingNotFound when no row has the id.
// Photos of the deleted row are left for SweepImages.
func (s *ListingService) Delete(ctx context.Context, id int64) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, models.EventListingDeleted, id)
	return nil
}

// SweepImages removes files in dir last modified before cutoff that no
// listing references. It returns the number of files removed.
func (s *ListingService) SweepImages(ctx context.Context, dir *storage.Disk, cutoff time.Time) (int, error) {
	candidates, err := dir.ModifiedBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	referenced, err := s.Repo.ImageNames(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	removed := 0
	for _, name := range candidates {
		if _, ok := referenced[name]; ok {
			continue
		}
		if err := s.Intake.Store.Remove(ctx, name); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *ListingService) changed(ctx context.Context, kind string, id int64) {
	if err := s.Cache.Invalidate(ctx); err != nil {
		s.logger().WithError(err).Warn("listing cache invalidate")
	}
	if s.Notifier != nil {
		s.Notifier.Publish(models.ListingEvent{Type: kind, ID: id, Timestamp: time.Now().UTC()})
	}
}

func (s *ListingService) logger() *logrus.Entry {
	if s.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return s.Log
}
