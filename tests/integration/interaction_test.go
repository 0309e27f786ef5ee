//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// InteractionTestSuite records views through the API and checks the
// recommendation list they produce
type InteractionTestSuite struct {
	suite.Suite
	api *apiClient
}

func (suite *InteractionTestSuite) SetupSuite() {
	db := connectDatabase(&suite.Suite)
	seedShows(&suite.Suite, db)

	suite.api = newAPIClient()
	suite.api.signUpAndLogin(&suite.Suite, "interaction-test")
}

func (suite *InteractionTestSuite) record(showID int64, body map[string]interface{}) (int, map[string]interface{}) {
	resp, data, err := suite.api.do(http.MethodPut, fmt.Sprintf("/interactions/shows/%d", showID), body)
	require.NoError(suite.T(), err)

	var out map[string]interface{}
	_ = json.Unmarshal(data, &out)
	return resp.StatusCode, out
}

func (suite *InteractionTestSuite) TestRecordValidation() {
	status, _ := suite.record(eastShowA, map[string]interface{}{"rating": 3})
	assert.Equal(suite.T(), http.StatusBadRequest, status)

	status, _ = suite.record(eastShowA, map[string]interface{}{"completion_ratio": 1.5})
	assert.Equal(suite.T(), http.StatusBadRequest, status)

	status, _ = suite.record(-5, map[string]interface{}{"rating": 1})
	assert.Equal(suite.T(), http.StatusBadRequest, status)

	status, _ = suite.record(999999999, map[string]interface{}{"rating": 1})
	assert.Equal(suite.T(), http.StatusNotFound, status)
}

func (suite *InteractionTestSuite) TestRecordGetAndDelete() {
	status, body := suite.record(northShowB, map[string]interface{}{"rating": 1, "viewed_amount": 1})
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), float64(1), body["rating"])

	// a partial update keeps earlier fields
	status, body = suite.record(northShowB, map[string]interface{}{"completion_ratio": 0.5})
	require.Equal(suite.T(), http.StatusOK, status)
	assert.Equal(suite.T(), float64(1), body["rating"])
	assert.Equal(suite.T(), 0.5, body["completion_ratio"])

	path := fmt.Sprintf("/interactions/shows/%d", northShowB)
	resp, _, err := suite.api.do(http.MethodGet, path, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	resp, _, err = suite.api.do(http.MethodDelete, path, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	resp, _, err = suite.api.do(http.MethodGet, path, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusNotFound, resp.StatusCode)
}

func (suite *InteractionTestSuite) TestRecommendationsFollowHistory() {
	// below the minimum history nothing is recommended
	status, _ := suite.record(eastShowA, map[string]interface{}{"rating": 2})
	require.Equal(suite.T(), http.StatusOK, status)

	resp, data, err := suite.api.do(http.MethodPost, "/recommendations/refresh", nil)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	var refreshed struct {
		ShowIDs []int64 `json:"show_ids"`
		Count   int     `json:"count"`
	}
	require.NoError(suite.T(), json.Unmarshal(data, &refreshed))
	assert.Zero(suite.T(), refreshed.Count)

	// two more views with main vectors push the user over the threshold
	for _, id := range []int64{eastShowB, northShowA} {
		status, _ := suite.record(id, map[string]interface{}{"rating": 0, "viewed_amount": 1})
		require.Equal(suite.T(), http.StatusOK, status)
	}

	resp, data, err = suite.api.do(http.MethodPost, "/recommendations/refresh", nil)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	require.NoError(suite.T(), json.Unmarshal(data, &refreshed))
	require.NotZero(suite.T(), refreshed.Count)

	for _, id := range refreshed.ShowIDs {
		assert.NotContains(suite.T(), []int64{eastShowA, eastShowB, northShowA}, id, "seen shows are excluded")
	}

	resp, data, err = suite.api.do(http.MethodGet, "/recommendations?limit=3", nil)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	var recs map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(data, &recs))
	assert.LessOrEqual(suite.T(), recs["count"], float64(3))
	assert.NotEmpty(suite.T(), recs["generated_at"])

	resp, data, err = suite.api.do(http.MethodGet, "/interactions?page=1&limit=2", nil)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	var list struct {
		Interactions []map[string]interface{} `json:"interactions"`
		Pagination   struct {
			Total int `json:"total"`
			Limit int `json:"limit"`
		} `json:"pagination"`
	}
	require.NoError(suite.T(), json.Unmarshal(data, &list))
	assert.Len(suite.T(), list.Interactions, 2)
	assert.GreaterOrEqual(suite.T(), list.Pagination.Total, 3)
}

func (suite *InteractionTestSuite) TestRequiresAuth() {
	resp, _, err := newAPIClient().do(http.MethodGet, "/interactions", nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusUnauthorized, resp.StatusCode)

	resp, _, err = newAPIClient().do(http.MethodGet, "/recommendations", nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusUnauthorized, resp.StatusCode)
}
