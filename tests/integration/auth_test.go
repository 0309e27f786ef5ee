//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type AuthTestSuite struct {
	suite.Suite
	api       *apiClient
	userEmail string
}

func (suite *AuthTestSuite) SetupSuite() {
	suite.api = newAPIClient()
	suite.userEmail = suite.api.signUpAndLogin(&suite.Suite, "auth-test")
}

func (suite *AuthTestSuite) TestUserSignup() {
	anon := newAPIClient()
	testEmail := fmt.Sprintf("Signup-Test-%d@Example.com", time.Now().UnixNano())

	resp, data, err := anon.do(http.MethodPost, "/signup", map[string]string{
		"email":        testEmail,
		"password":     "testpassword123",
		"display_name": "Signup Tester",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusCreated, resp.StatusCode)

	var user map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(data, &user))
	assert.Equal(suite.T(), strings.ToLower(testEmail), user["email"])
	assert.Equal(suite.T(), "Signup Tester", user["display_name"])
	assert.NotEmpty(suite.T(), user["id"])
	assert.NotEmpty(suite.T(), user["created_at"])

	// same address in another case is a duplicate
	resp, _, err = anon.do(http.MethodPost, "/signup", map[string]string{
		"email":    strings.ToUpper(testEmail),
		"password": "testpassword123",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusConflict, resp.StatusCode)
}

func (suite *AuthTestSuite) TestSignupRejectsShortPassword() {
	resp, _, err := newAPIClient().do(http.MethodPost, "/signup", map[string]string{
		"email":    fmt.Sprintf("short-%d@example.com", time.Now().UnixNano()),
		"password": "short",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusBadRequest, resp.StatusCode)
}

func (suite *AuthTestSuite) TestInvalidLogin() {
	resp, _, err := newAPIClient().do(http.MethodPost, "/login", map[string]string{
		"email":    suite.userEmail,
		"password": "wrongpassword",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusUnauthorized, resp.StatusCode)
}

func (suite *AuthTestSuite) TestUserMe_AfterLogin() {
	resp, data, err := suite.api.do(http.MethodGet, "/users/me", nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	var user map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(data, &user))
	assert.Equal(suite.T(), suite.userEmail, user["email"])
	assert.NotEmpty(suite.T(), user["id"])
}

func (suite *AuthTestSuite) TestUnauthorizedAccess() {
	resp, _, err := newAPIClient().do(http.MethodGet, "/users/me", nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusUnauthorized, resp.StatusCode)
}

func (suite *AuthTestSuite) TestInvalidToken() {
	forged := newAPIClient()
	forged.token = "invalid_token"

	resp, _, err := forged.do(http.MethodGet, "/users/me", nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusUnauthorized, resp.StatusCode)

	// optional auth on search still rejects a bad token
	resp, _, err = forged.do(http.MethodPost, "/search", map[string]string{"query": "space opera"})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusUnauthorized, resp.StatusCode)
}
