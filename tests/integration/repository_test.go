//go:build integration
// +build integration

package integration

import (
	"context"
	"time"

	"github.com/dustin/showfinder/internal/adapter"
	"github.com/dustin/showfinder/internal/audit"
	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/facet"
	"github.com/dustin/showfinder/internal/interaction"
	"github.com/dustin/showfinder/internal/personalization"
	"github.com/dustin/showfinder/internal/recommendation"
	"github.com/dustin/showfinder/internal/repository"
	"github.com/dustin/showfinder/internal/user"
	"github.com/dustin/showfinder/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// RepositoryTestSuite exercises the GORM repositories and the pgvector facet
// store against the real database
type RepositoryTestSuite struct {
	suite.Suite
	db     *gorm.DB
	userID uuid.UUID
}

func (suite *RepositoryTestSuite) SetupSuite() {
	suite.db = connectDatabase(&suite.Suite)
	require.NoError(suite.T(), suite.db.AutoMigrate(
		&user.User{},
		&interaction.Interaction{},
		&recommendation.UserRecommendation{},
		&audit.QueryLog{},
	))
	seedShows(&suite.Suite, suite.db)

	u := &user.User{
		ID:           uuid.New(),
		Email:        "repo-" + uuid.NewString() + "@example.com",
		PasswordHash: "not-a-real-hash",
	}
	require.NoError(suite.T(), suite.db.Create(u).Error)
	suite.userID = u.ID
}

func (suite *RepositoryTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.db.Where("user_id = ?", suite.userID).Delete(&interaction.Interaction{})
	suite.db.Where("user_id = ?", suite.userID).Delete(&recommendation.UserRecommendation{})
	suite.db.Where("id = ?", suite.userID).Delete(&user.User{})
}

func (suite *RepositoryTestSuite) fixtureFilter(f facet.Facet) catalog.Filter {
	// keep neighbours inside the fixture rows
	var others []int64
	suite.db.Model(&catalog.Show{}).Where("id NOT IN ?", fixtureIDs).Pluck("id", &others)
	filter := catalog.HasFacet(f)
	filter.ExcludeIDs = others
	return filter
}

func (suite *RepositoryTestSuite) TestFacetStore_NearestByFacet() {
	store := repository.NewGORMFacetStore(suite.db, logger.Nop())
	query := facet.Vector(axis(0, 0))

	got, err := store.NearestByFacet(context.Background(), facet.Main, query, suite.fixtureFilter(facet.Main), 4)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 4)

	assert.Equal(suite.T(), eastShowA, got[0].ShowID)
	assert.InDelta(suite.T(), 0.0, got[0].Distance, 1e-6)
	assert.Equal(suite.T(), eastShowB, got[1].ShowID)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(suite.T(), got[i-1].Distance, got[i].Distance)
	}

	// the plot-only show carries no main vector
	for _, n := range got {
		assert.NotEqual(suite.T(), plotOnlyShow, n.ShowID)
	}
}

func (suite *RepositoryTestSuite) TestFacetStore_DistancesForItems() {
	store := repository.NewGORMFacetStore(suite.db, logger.Nop())
	bundle := facet.Bundle{
		facet.Main: facet.Vector(axis(0, 0)),
		facet.Plot: facet.Vector(axis(0, 0)),
	}

	got, err := store.DistancesForItems(context.Background(), []int64{eastShowA, northShowA, plotOnlyShow}, bundle)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 3)

	assert.InDelta(suite.T(), 0.0, got[eastShowA].Resolved(facet.Main), 1e-6)
	assert.InDelta(suite.T(), 0.0, got[eastShowA].Resolved(facet.Plot), 1e-6)
	assert.InDelta(suite.T(), 1.0, got[northShowA].Resolved(facet.Main), 1e-6)
	assert.Equal(suite.T(), facet.MaxDistance, got[northShowA].Resolved(facet.Plot))
	assert.Equal(suite.T(), facet.MaxDistance, got[plotOnlyShow].Resolved(facet.Main))
	// facets not in the bundle are never measured
	assert.Equal(suite.T(), facet.MaxDistance, got[eastShowA].Resolved(facet.Tone))
}

func (suite *RepositoryTestSuite) TestCatalogRepository() {
	repo := repository.NewGORMCatalogRepository(suite.db, logger.Nop())

	show, err := repo.FindByID(eastShowA)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Fixture East A", show.Title)

	_, err = repo.FindByID(-1)
	assert.ErrorIs(suite.T(), err, catalog.ErrNotFound)

	vectors, err := repo.FindMainVectors([]int64{eastShowA, plotOnlyShow})
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), vectors[eastShowA], vectorDim)
	assert.Empty(suite.T(), vectors[plotOnlyShow])
}

func (suite *RepositoryTestSuite) TestInteractionRepository() {
	repo := repository.NewGORMInteractionRepository(suite.db, logger.Nop())
	older := time.Now().UTC().Add(-48 * time.Hour)
	newer := time.Now().UTC()

	require.NoError(suite.T(), repo.Upsert(&interaction.Interaction{
		UserID: suite.userID, ShowID: eastShowA, FirstDate: &older, LastDate: &older, Rating: 2,
	}))
	require.NoError(suite.T(), repo.Upsert(&interaction.Interaction{
		UserID: suite.userID, ShowID: northShowA, FirstDate: &newer, LastDate: &newer, Rating: -1,
	}))
	// second write on the same pair updates in place
	require.NoError(suite.T(), repo.Upsert(&interaction.Interaction{
		UserID: suite.userID, ShowID: northShowA, FirstDate: &newer, LastDate: &newer, Rating: 1,
	}))

	row, err := repo.FindByUserAndShow(suite.userID, northShowA)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, row.Rating)

	rows, total, err := repo.FindByUser(suite.userID, 1, 10)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), total)
	require.Len(suite.T(), rows, 2)
	assert.Equal(suite.T(), northShowA, rows[0].ShowID, "most recent first")
	require.NotNil(suite.T(), rows[0].Show)

	history, err := repo.History(suite.userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), history, 2)
	assert.Equal(suite.T(), eastShowA, history[0].ShowID, "oldest first")

	users, err := repo.UsersWithInteractions()
	require.NoError(suite.T(), err)
	assert.Contains(suite.T(), users, suite.userID)

	// history joins main vectors for personalization
	source := adapter.NewInteractionHistory(repo, repository.NewGORMCatalogRepository(suite.db, logger.Nop()))
	joined, err := source.History(context.Background(), suite.userID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), joined, 2)
	assert.Equal(suite.T(), personalization.RatingStrongPositive, joined[0].Rating)
	assert.Len(suite.T(), joined[0].Vector, vectorDim)

	require.NoError(suite.T(), repo.Delete(suite.userID, northShowA))
	assert.ErrorIs(suite.T(), repo.Delete(suite.userID, northShowA), interaction.ErrNotFound)
	_, err = repo.FindByUserAndShow(suite.userID, northShowA)
	assert.ErrorIs(suite.T(), err, interaction.ErrNotFound)
}

func (suite *RepositoryTestSuite) TestRecommendationRepository() {
	repo := repository.NewGORMRecommendationRepository(suite.db, logger.Nop())

	_, err := repo.FindByUser(uuid.New())
	assert.ErrorIs(suite.T(), err, recommendation.ErrNotFound)

	require.NoError(suite.T(), repo.Save(&recommendation.UserRecommendation{
		UserID: suite.userID, ShowIDs: []int64{eastShowB, northShowA},
	}))
	require.NoError(suite.T(), repo.Save(&recommendation.UserRecommendation{
		UserID: suite.userID, ShowIDs: []int64{northShowB},
	}))

	rec, err := repo.FindByUser(suite.userID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []int64{northShowB}, []int64(rec.ShowIDs))

	// an empty list is stored, not skipped
	require.NoError(suite.T(), repo.Save(&recommendation.UserRecommendation{UserID: suite.userID}))
	rec, err = repo.FindByUser(suite.userID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), rec.ShowIDs)
}

func (suite *RepositoryTestSuite) TestQueryLogWriter() {
	writer := repository.NewGORMQueryLogWriter(suite.db, logger.Nop())
	query := "integration " + uuid.NewString()

	err := writer.Write(context.Background(), audit.Event{
		Query:     query,
		TopK:      5,
		ResultIDs: []int64{eastShowA},
		Timestamp: time.Now().UTC(),
	})
	require.NoError(suite.T(), err)

	var count int64
	suite.db.Model(&audit.QueryLog{}).Where("query = ?", query).Count(&count)
	assert.Equal(suite.T(), int64(1), count)
}
