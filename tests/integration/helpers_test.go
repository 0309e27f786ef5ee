//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/showfinder/config"
	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/pkg/database"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

const vectorDim = 1536

// Seeded IDs sit far above any real catalog ID so reruns overwrite only
// fixture rows
const (
	eastShowA int64 = 910001 + iota
	eastShowB
	northShowA
	northShowB
	plotOnlyShow
)

var fixtureIDs = []int64{eastShowA, eastShowB, northShowA, northShowB, plotOnlyShow}

// axis returns a unit vector leaning towards dimension i, tilted by lean
// towards dimension i+1
func axis(i int, lean float64) catalog.Embedding {
	v := make(facet.Vector, vectorDim)
	v[i] = 1
	v[i+1] = lean
	unit, _ := facet.Normalize(v)
	return catalog.Embedding(unit)
}

func connectDatabase(s *suite.Suite) *gorm.DB {
	cfg := config.Load()
	db, err := database.NewConnection(&cfg.Database)
	require.NoError(s.T(), err, "integration tests need the service database")
	require.NoError(s.T(), database.EnableVectorExtension(db))
	require.NoError(s.T(), db.AutoMigrate(&catalog.Genre{}, &catalog.Show{}))
	return db
}

// seedShows writes two shows pointing east, two pointing north and one with
// only a plot vector
func seedShows(s *suite.Suite, db *gorm.DB) {
	shows := []*catalog.Show{
		{ID: eastShowA, Title: "Fixture East A", ShowType: "tv", Year: 2019, Embedding: axis(0, 0), PlotEmbedding: axis(0, 0), ToneEmbedding: axis(4, 0)},
		{ID: eastShowB, Title: "Fixture East B", ShowType: "tv", Year: 2020, Embedding: axis(0, 0.1), PlotEmbedding: axis(2, 0)},
		{ID: northShowA, Title: "Fixture North A", ShowType: "movie", Year: 2015, Embedding: axis(2, 0)},
		{ID: northShowB, Title: "Fixture North B", ShowType: "movie", Year: 2016, Embedding: axis(2, 0.2)},
		{ID: plotOnlyShow, Title: "Fixture Plot Only", ShowType: "tv", Year: 2021, PlotEmbedding: axis(0, 0)},
	}
	for _, show := range shows {
		require.NoError(s.T(), db.Save(show).Error)
	}
}

type apiClient struct {
	http  *http.Client
	token string
}

func newAPIClient() *apiClient {
	return &apiClient{http: &http.Client{Timeout: 60 * time.Second}}
}

func (c *apiClient) do(method, path string, body any) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequest(method, APIBaseURL+path, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp, data, err
}

// signUpAndLogin registers a fresh user and keeps its token on the client
func (c *apiClient) signUpAndLogin(s *suite.Suite, prefix string) string {
	email := fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
	credentials := map[string]string{"email": email, "password": "testpassword123"}

	resp, _, err := c.do(http.MethodPost, "/signup", credentials)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)

	resp, data, err := c.do(http.MethodPost, "/login", credentials)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var login map[string]string
	require.NoError(s.T(), json.Unmarshal(data, &login))
	require.NotEmpty(s.T(), login["token"])
	c.token = login["token"]
	return email
}
