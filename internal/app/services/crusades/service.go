package crusades

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/vvvdotnet/crusades/internal/app/core/service"
	"github.com/vvvdotnet/crusades/internal/app/domain/crusade"
	"github.com/vvvdotnet/crusades/internal/app/storage"
	"github.com/vvvdotnet/crusades/internal/errors"
	"github.com/vvvdotnet/crusades/internal/logging"
)

// Service manages crusades and enrollments.
type Service struct {
	store   storage.CrusadeStore
	log     *logging.Logger
	catalog []crusade.Crusade
	now     func() time.Time
}

// New constructs a crusade service seeded with the default catalog.
func New(store storage.CrusadeStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("crusades")
	}
	return &Service{store: store, log: log, catalog: crusade.Defaults(), now: time.Now}
}

// SetCatalog replaces the crusades created by SeedDefaults. An empty
// catalog keeps the built-in defaults.
func (s *Service) SetCatalog(catalog []crusade.Crusade) {
	if len(catalog) > 0 {
		s.catalog = catalog
	}
}

// ListActive returns crusades open to members, newest first.
func (s *Service) ListActive(ctx context.Context) ([]crusade.Crusade, error) {
	list, err := s.store.ListCrusades(ctx, true)
	if err != nil {
		return nil, errors.Internal("Failed to list crusades", err)
	}
	return list, nil
}

// ListMine returns the active crusades the user joined, most recent first.
func (s *Service) ListMine(ctx context.Context, userID string) ([]crusade.Enrolled, error) {
	enrolled, err := s.store.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, errors.Internal("Failed to list enrollments", err)
	}
	out := make([]crusade.Enrolled, 0, len(enrolled))
	for _, e := range enrolled {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (crusade.Crusade, error) {
	c, err := s.store.GetCrusade(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return crusade.Crusade{}, errors.NotFound("Crusade not found")
	}
	if err != nil {
		return crusade.Crusade{}, errors.Internal("Failed to load crusade", err)
	}
	return c, nil
}

// Enroll joins the user to an active crusade. Joining twice is reported as
// a bad request.
func (s *Service) Enroll(ctx context.Context, userID, crusadeID string) (crusade.Enrollment, error) {
	c, err := s.Get(ctx, crusadeID)
	if err != nil {
		return crusade.Enrollment{}, err
	}
	if !c.Enrollable(s.now()) {
		return crusade.Enrollment{}, errors.NotFound("Crusade not found")
	}

	e, err := s.store.CreateEnrollment(ctx, crusade.Enrollment{UserID: userID, CrusadeID: crusadeID, EnrolledAt: s.now().UTC()})
	switch {
	case stderrors.Is(err, storage.ErrConflict):
		return crusade.Enrollment{}, errors.BadRequest("Already enrolled in this crusade")
	case stderrors.Is(err, storage.ErrNotFound):
		return crusade.Enrollment{}, errors.NotFound("Crusade not found")
	case err != nil:
		return crusade.Enrollment{}, errors.Internal("Failed to enroll", err)
	}

	s.log.WithContext(ctx).WithField("crusade_id", crusadeID).Info("user enrolled")
	return e, nil
}

// Unenroll removes the enrollment if present.
func (s *Service) Unenroll(ctx context.Context, userID, crusadeID string) error {
	if err := s.store.DeleteEnrollment(ctx, userID, crusadeID); err != nil {
		return errors.Internal("Failed to unenroll", err)
	}
	return nil
}

// SeedDefaults creates catalog crusades whose name is not taken yet and
// returns the ones it created.
func (s *Service) SeedDefaults(ctx context.Context) ([]crusade.Crusade, error) {
	existing, err := s.store.ListCrusades(ctx, false)
	if err != nil {
		return nil, errors.Internal("Failed to list crusades", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, c := range existing {
		taken[c.Name] = true
	}

	created := []crusade.Crusade{}
	for _, c := range s.catalog {
		if taken[c.Name] {
			continue
		}
		if !c.Type.Valid() {
			return created, errors.BadRequest(fmt.Sprintf("Crusade %q has unknown type %q", c.Name, c.Type))
		}
		c.ID = ""
		c.CreatedAt = s.now().UTC()
		out, err := s.store.CreateCrusade(ctx, c)
		if stderrors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			return created, errors.Internal("Failed to create crusade", err)
		}
		taken[c.Name] = true
		created = append(created, out)
	}

	if len(created) > 0 {
		s.log.WithContext(ctx).WithField("count", len(created)).Info("seeded crusades")
	}
	return created, nil
}

// Descriptor advertises the service.
func (s *Service) Descriptor() service.Descriptor {
	return service.Descriptor{Name: "crusades", Domain: "crusades", Layer: service.LayerAPI, Capabilities: []string{"list", "enroll", "seed"}}
}
