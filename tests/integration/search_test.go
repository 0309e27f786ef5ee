//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type searchResult struct {
	ItemID           int64              `json:"item_id"`
	Distances        map[string]float64 `json:"distances"`
	WeightedDistance float64            `json:"weighted_distance"`
}

type searchResponse struct {
	Results  []searchResult `json:"results"`
	Count    int            `json:"count"`
	Metadata struct {
		Alpha        float64            `json:"alpha"`
		Weights      map[string]float64 `json:"weights"`
		Candidates   []int64            `json:"candidates"`
		Personalized bool               `json:"personalized"`
	} `json:"metadata"`
}

type SearchTestSuite struct {
	suite.Suite
	anon   *apiClient
	signed *apiClient
}

func (suite *SearchTestSuite) SetupSuite() {
	db := connectDatabase(&suite.Suite)
	seedShows(&suite.Suite, db)

	suite.anon = newAPIClient()
	suite.signed = newAPIClient()
	suite.signed.signUpAndLogin(&suite.Suite, "search-test")
}

func (suite *SearchTestSuite) search(c *apiClient, body map[string]interface{}) (int, searchResponse) {
	resp, data, err := c.do(http.MethodPost, "/search", body)
	require.NoError(suite.T(), err)

	var out searchResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(suite.T(), json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func (suite *SearchTestSuite) TestAnonymousSearch() {
	status, out := suite.search(suite.anon, map[string]interface{}{"query": "slow burning crime drama", "top_k": 3})
	require.Equal(suite.T(), http.StatusOK, status)

	assert.LessOrEqual(suite.T(), len(out.Results), 3)
	assert.Equal(suite.T(), len(out.Results), out.Count)
	assert.False(suite.T(), out.Metadata.Personalized)
	assert.InDelta(suite.T(), 0.5, out.Metadata.Weights["main"], 1e-9)

	for i, r := range out.Results {
		assert.Contains(suite.T(), out.Metadata.Candidates, r.ItemID)
		assert.Len(suite.T(), r.Distances, 8)
		if i > 0 {
			assert.LessOrEqual(suite.T(), out.Results[i-1].WeightedDistance, r.WeightedDistance)
		}
	}
}

func (suite *SearchTestSuite) TestSignedInWithoutHistory() {
	status, out := suite.search(suite.signed, map[string]interface{}{"query": "feel good comedy", "alpha": 0.8})
	require.Equal(suite.T(), http.StatusOK, status)
	assert.False(suite.T(), out.Metadata.Personalized, "a new user has no taste vector")
	assert.InDelta(suite.T(), 0.8, out.Metadata.Alpha, 1e-9)
}

func (suite *SearchTestSuite) TestBadRequests() {
	status, _ := suite.search(suite.anon, map[string]interface{}{"query": ""})
	assert.Equal(suite.T(), http.StatusBadRequest, status)

	status, _ = suite.search(suite.anon, map[string]interface{}{"query": "anything", "top_k": -1})
	assert.Equal(suite.T(), http.StatusBadRequest, status)
}

func (suite *SearchTestSuite) TestExplain() {
	resp, _, err := suite.anon.do(http.MethodPost, "/search/explain", map[string]interface{}{
		"query":   "two friends on a road trip",
		"show_id": 999999999,
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusNotFound, resp.StatusCode)

	resp, data, err := suite.anon.do(http.MethodPost, "/search/explain", map[string]interface{}{
		"query":   "two friends on a road trip",
		"show_id": eastShowA,
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	var report map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(data, &report))
	assert.NotEmpty(suite.T(), report)
}

func (suite *SearchTestSuite) TestCatalogRoutes() {
	resp, data, err := suite.anon.do(http.MethodGet, "/shows/910001", nil)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	var show map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(data, &show))
	assert.Equal(suite.T(), "Fixture East A", show["title"])
	assert.NotContains(suite.T(), show, "embedding")

	resp, _, err = suite.anon.do(http.MethodGet, "/genres", nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
}
