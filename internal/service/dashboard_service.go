package service

import (
	"context"
	"time"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository"
)

const upcomingLimit = 5

// WeatherClient looks up current conditions for a free-form location.
type WeatherClient interface {
	Current(ctx context.Context, location string) (*domain.Weather, error)
}

type DashboardService struct {
	store   docstore.Store
	repos   repository.Manager
	weather WeatherClient
	logger  logging.Logger
	now     func() time.Time
}

func NewDashboardService(store docstore.Store, repos repository.Manager, weather WeatherClient, logger logging.Logger) *DashboardService {
	return &DashboardService{
		store:   store,
		repos:   repos,
		weather: weather,
		logger:  logger.With("service", "dashboard"),
		now:     time.Now,
	}
}

// Overview gathers the home screen. Weather failures are logged and leave
// the corresponding field empty.
func (s *DashboardService) Overview(ctx context.Context, sess domain.Session) (*domain.Dashboard, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	me, err := loadAccount(ctx, s.repos, s.store, sess.AccountID)
	if err != nil {
		return nil, err
	}

	d := &domain.Dashboard{Account: me, Weather: s.lookupWeather(ctx, me.Location)}
	if me.HasPartner() {
		partner, err := s.repos.Accounts(s.store).GetByID(ctx, me.Partner())
		if err != nil {
			return nil, storeErr("reading partner", err)
		}
		if partner != nil {
			d.Partner = partner
			d.PartnerWeather = s.lookupWeather(ctx, partner.Location)
		}
	}

	d.Upcoming, err = s.repos.Events(s.store).ListUpcoming(ctx, me.ID, s.now(), upcomingLimit)
	if err != nil {
		return nil, storeErr("listing events", err)
	}
	return d, nil
}

func (s *DashboardService) lookupWeather(ctx context.Context, location string) *domain.Weather {
	if s.weather == nil || location == "" {
		return nil
	}
	w, err := s.weather.Current(ctx, location)
	if err != nil {
		s.logger.Warn(ctx, "weather lookup failed", "location", location, "error", err)
		return nil
	}
	return w
}
