package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/logging"
)

type fakeWeather map[string]*domain.Weather

func (f fakeWeather) Current(_ context.Context, location string) (*domain.Weather, error) {
	w, ok := f[location]
	if !ok {
		return nil, errors.New("unknown location")
	}
	return w, nil
}

func TestDashboardOverview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	profiles := NewProfileService(env.store, env.repos, logging.Discard())
	events := NewEventService(env.store, env.repos)
	alice := env.seedAccount(t, "alice", "Alice")
	bob := env.seedAccount(t, "bob", "Bob")
	env.pair(t, "alice", "bob")

	_, err := profiles.UpdateProfile(ctx, alice, domain.ProfileUpdate{Location: ptr("Zagreb")})
	require.NoError(t, err)
	_, err = profiles.UpdateProfile(ctx, bob, domain.ProfileUpdate{Location: ptr("Atlantis")})
	require.NoError(t, err)

	now := time.Now().UTC()
	for i := range 7 {
		_, err := events.Create(ctx, bob, EventInput{Title: "e", Start: now.Add(time.Duration(i+1) * time.Hour)})
		require.NoError(t, err)
	}

	weather := fakeWeather{"Zagreb": {Location: "Zagreb", Temperature: 18, Condition: "Clear"}}
	dash := NewDashboardService(env.store, env.repos, weather, logging.Discard())

	d, err := dash.Overview(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", d.Account.ID)
	require.NotNil(t, d.Partner)
	assert.Equal(t, "bob", d.Partner.ID)
	require.NotNil(t, d.Weather)
	assert.Equal(t, "Clear", d.Weather.Condition)
	assert.Nil(t, d.PartnerWeather, "failed lookups are reported as no weather")
	assert.Len(t, d.Upcoming, upcomingLimit)
}

func TestDashboardOverview_Unpaired(t *testing.T) {
	env := newTestEnv(t)
	carol := env.seedAccount(t, "carol", "Carol")
	dash := NewDashboardService(env.store, env.repos, nil, logging.Discard())

	d, err := dash.Overview(context.Background(), carol)
	require.NoError(t, err)
	assert.Nil(t, d.Partner)
	assert.Nil(t, d.Weather)
	assert.Empty(t, d.Upcoming)
}
