package podds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/richard-senior/podds/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seasonCSV = "Div,Date,Time,HomeTeam,AwayTeam,FTHG,FTAG,FTR,WHH,WHD,WHA\n" +
	"E0,12/08/2023,15:00,Everton,Fulham,0,1,A,2.0,3.4,3.8\n" +
	"E0,19/08/2023,15:00,Fulham,Brentford,0,3,A,2.6,3.3,2.7\n"

const countryPage = `<html><body>
<a href="mmz4281/2324/E0.csv">Premier League</a>
<a href="mmz4281/2324/E1.csv">Championship</a>
<a href="mmz4281/2223/E0.csv">Premier League</a>
<a href="mmz4281/9900/E0.csv">Premier League</a>
<a href="mmz4281/2223/E0.csv">duplicate</a>
<a href="notes.txt">Notes</a>
</body></html>`

func testServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mmz4281/2324/E0.csv", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(seasonCSV))
	})
	mux.HandleFunc("/englandm.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(countryPage))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testFootballData(t *testing.T, srv *httptest.Server, cache string) *FootballData {
	c := DefaultPoddsConfig()
	c.FootballDataURL = srv.URL + "/"
	c.CachePath = cache
	return NewFootballData(c, transport.NewClient(transport.WithRateLimit(1000, 10)))
}

func TestCSVURL(t *testing.T) {
	fd := NewFootballData(DefaultPoddsConfig(), nil)
	assert.Equal(t, "https://www.football-data.co.uk/mmz4281/2324/E0.csv", fd.CSVURL("E0", "2324"))
}

func TestFetchMatchesUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := testServer(t, &hits)
	cache := t.TempDir()
	fd := testFootballData(t, srv, cache)

	matches, err := fd.FetchMatches(context.Background(), "E0", []string{"2023/2024"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Everton", matches[0].HomeTeam)
	assert.Equal(t, "2324", matches[0].Season)

	_, err = os.Stat(filepath.Join(cache, "E0-2324.csv"))
	require.NoError(t, err)

	again, err := fd.FetchMatches(context.Background(), "E0", []string{"2324"})
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchMissingSeason(t *testing.T) {
	var hits atomic.Int32
	srv := testServer(t, &hits)
	fd := testFootballData(t, srv, "")

	_, err := fd.Fetch(context.Background(), "E0", "2122")
	var se *transport.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestDiscoverSeasons(t *testing.T) {
	var hits atomic.Int32
	srv := testServer(t, &hits)
	fd := testFootballData(t, srv, "")

	seasons, err := fd.DiscoverSeasons(context.Background(), "englandm.php", "E0")
	require.NoError(t, err)
	assert.Equal(t, []string{"9900", "2223", "2324"}, seasons)

	seasons, err = fd.DiscoverSeasons(context.Background(), srv.URL+"/englandm.php", "E1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2324"}, seasons)
}
