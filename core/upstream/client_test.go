package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&Config{
		BaseURL:            srv.URL + "/",
		Username:           "user",
		Token:              "secret",
		PageTimeoutSeconds: 5,
	}, zap.NewNop())
}

func TestClient_ListTeams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "/2025/teams", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))

		_, _ = w.Write([]byte(`{
			"teams": [{"teamNumber": 19458, "nameShort": "Robo", "city": "Fremont", "rookieYear": 2020, "website": null}],
			"teamCountTotal": 1, "pageCurrent": 2, "pageTotal": 3
		}`))
	})

	page, err := client.ListTeams(context.Background(), 2025, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, page.PageTotal)
	require.Len(t, page.Teams, 1)
	team := page.Teams[0]
	assert.Equal(t, 19458, team.TeamNumber)
	assert.Equal(t, "Fremont", *team.City)
	assert.Equal(t, 2020, *team.RookieYear)
	assert.Nil(t, team.Website)
	assert.Nil(t, team.SchoolName)
}

func TestClient_ListTeamsFirstPageOmitsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"teams": [], "pageTotal": 1}`))
	})

	page, err := client.ListTeams(context.Background(), 2025, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.PageTotal)
}

func TestClient_ListEventsNormalizes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2025/events", r.URL.Path)
		_, _ = w.Write([]byte(`{"events": [
			{"code": "CASJ", "name": "San Jose", "dateStart": "2025-03-01T00:00:00", "dateEnd": null,
			 "coordinates": {"lat": 37.3, "lon": -121.9}, "fieldCount": 2, "remote": false},
			{"code": "USCAFFL", "dateStart": "", "webcasts": ["https://twitch.tv/ftc"]}
		], "eventCount": 2}`))
	})

	events, err := client.ListEvents(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, events, 2)

	casj := events[0]
	assert.Equal(t, "CASJ", casj.Code)
	require.NotNil(t, casj.DateStart)
	assert.True(t, casj.DateStart.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, casj.DateEnd)
	assert.Equal(t, 2, casj.FieldCount)
	assert.Equal(t, []string{}, casj.Webcasts)

	assert.Nil(t, events[1].DateStart)
	assert.Equal(t, []string{"https://twitch.tv/ftc"}, events[1].Webcasts)
}

func TestClient_ListEventMatchesTagsEventCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2025/matches/CASJ", r.URL.Path)
		_, _ = w.Write([]byte(`{"matches": [{
			"matchNumber": 5, "description": "Qualification 5", "tournamentLevel": "QUALIFICATION",
			"series": 0, "actualStartTime": "2025-03-01T10:15:00Z", "modifiedOn": "2025-03-01T10:30:00.12Z",
			"scoreRedFinal": 120, "scoreBlueFinal": 98, "scoreRedAuto": 30,
			"teams": [
				{"teamNumber": 19458, "station": "Red1", "dq": false, "onField": true},
				{"teamNumber": 99999, "station": "Blue1", "dq": true, "onField": false}
			]
		}]}`))
	})

	matches, err := client.ListEventMatches(context.Background(), 2025, "CASJ")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "CASJ", m.EventCode)
	assert.Equal(t, "CASJ:5", m.Key())
	assert.Equal(t, 120, m.ScoreRedFinal)
	assert.Equal(t, 30, m.ScoreRedAuto)
	require.NotNil(t, m.ModifiedOn)
	assert.Equal(t, 120*time.Millisecond, time.Duration(m.ModifiedOn.Nanosecond()))
	assert.Nil(t, m.PostResultTime)
	require.Len(t, m.Teams, 2)
	assert.True(t, m.Teams[1].DQ)
	assert.Equal(t, "Red1", *m.Teams[0].Station)
}

func TestClient_StatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.ListEvents(context.Background(), 2025)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		_, err := client.ListEvents(context.Background(), 2025)
		require.Error(t, err)
	}

	_, err := client.ListEvents(context.Background(), 2025)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, calls)
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 7; i++ {
		_, err := client.ListEventMatches(context.Background(), 2025, "NOPE")
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
	}
	assert.Equal(t, 7, calls)
}

func TestClient_PageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(&Config{BaseURL: srv.URL, PageTimeoutSeconds: 1}, zap.NewNop())
	client.timeout = 50 * time.Millisecond

	_, err := client.ListEvents(context.Background(), 2025)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMatchKey(t *testing.T) {
	assert.Equal(t, "CASJ:5", MatchKey("CASJ", 5))
	assert.Equal(t, "19458", TeamKey(19458))
}
