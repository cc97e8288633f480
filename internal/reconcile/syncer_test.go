package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/identity-sync-service/internal/apperr"
	"github.com/PratikDhanave/identity-sync-service/internal/logging"
	"github.com/PratikDhanave/identity-sync-service/internal/models"
	"github.com/PratikDhanave/identity-sync-service/internal/projection"
)

func rawUsers(t *testing.T, raw string) []models.RawUser {
	t.Helper()
	var out []models.RawUser
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

const oktaUsers = `[
	{"id":"u1","status":"ACTIVE","lastLogin":"2024-03-01T10:00:00.000Z","passwordChanged":"2024-02-01T10:00:00.000Z","statusChanged":null,
	 "profile":{"firstName":"Ada","lastName":"Lovelace","email":"ada@x.com"}},
	{"id":"u2","lastLogin":null,"profile":{"firstName":"Bob","lastName":"Stone","email":"bob@x.com"}},
	{"id":"u3","profile":{"firstName":"No","lastName":"Email"}}
]`

func newSyncer(f *fixture, src IdentitySource) *Syncer {
	return NewSyncer(src, projection.New(projection.DefaultRules), f.rec, f.aside, "00g-admins", time.Minute, logging.Discard(), nil)
}

func TestSync_FullRun(t *testing.T) {
	f := newFixture(t)
	src := new(mockSource)
	src.On("FetchAllUsers", mock.Anything).Return(rawUsers(t, oktaUsers), nil).Once()
	src.On("FetchGroupMembers", mock.Anything, "00g-admins").Return(rawUsers(t, `[{"id":"u1"}]`), nil).Once()

	report, err := newSyncer(f, src).Sync(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.GroupMembers)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 1, report.Skipped)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	ada := f.get(t, "ada@x.com")
	assert.Equal(t, models.UserRecord{
		Email:           "ada@x.com",
		ID:              "u1",
		Name:            "Ada Lovelace",
		Admin:           true,
		LastLogin:       "2024-03-01T10:00:00.000Z",
		PasswordChanged: "2024-02-01T10:00:00.000Z",
		UserEvents:      []models.UserEvent{},
	}, ada)
	assert.False(t, f.get(t, "bob@x.com").Admin)
	src.AssertExpectations(t)
}

func TestSync_UpstreamResultsAreCached(t *testing.T) {
	f := newFixture(t)
	src := new(mockSource)
	src.On("FetchAllUsers", mock.Anything).Return(rawUsers(t, oktaUsers), nil).Once()
	src.On("FetchGroupMembers", mock.Anything, "00g-admins").Return(rawUsers(t, `[]`), nil).Once()

	s := newSyncer(f, src)
	_, err := s.Sync(context.Background())
	require.NoError(t, err)

	second, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Unchanged)
	src.AssertExpectations(t)
}

func TestSync_UserFetchFailure(t *testing.T) {
	f := newFixture(t)
	src := new(mockSource)
	src.On("FetchAllUsers", mock.Anything).Return([]models.RawUser{}, apperr.FetchFailure("idp.FetchAllUsers", errors.New("503"))).Twice()
	src.On("FetchGroupMembers", mock.Anything, "00g-admins").Return(rawUsers(t, `[]`), nil).Maybe()

	s := newSyncer(f, src)
	report, err := s.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindFetchFailure))
	assert.NotEmpty(t, report.RunID)

	// failures are not cached
	_, err = s.Sync(context.Background())
	require.Error(t, err)
	src.AssertExpectations(t)
}

func TestSync_EmptyUserListIsFetchFailure(t *testing.T) {
	f := newFixture(t)
	src := new(mockSource)
	src.On("FetchAllUsers", mock.Anything).Return([]models.RawUser{}, nil)
	src.On("FetchGroupMembers", mock.Anything, "00g-admins").Return(rawUsers(t, `[]`), nil).Maybe()

	_, err := newSyncer(f, src).Sync(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindFetchFailure))

	all, err := f.store.ScanUsers(context.Background(), storeFilterAll)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSync_GroupFailureDegradesWithoutDemotion(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.UserRecord{Email: "ada@x.com", ID: "u1", Admin: true})

	src := new(mockSource)
	src.On("FetchAllUsers", mock.Anything).Return(rawUsers(t, oktaUsers), nil)
	src.On("FetchGroupMembers", mock.Anything, "00g-admins").Return([]models.RawUser{}, errors.New("timeout"))

	report, err := newSyncer(f, src).Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.GroupMembers)
	assert.True(t, f.get(t, "ada@x.com").Admin)
	assert.False(t, f.get(t, "bob@x.com").Admin)
}
