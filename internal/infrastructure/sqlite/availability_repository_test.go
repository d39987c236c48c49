package sqlite_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routecard/internal/routing/domain"
	"routecard/internal/testutil"
)

func TestAvailabilitySaveAndFind(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.AvailabilityRepository()

	record := domain.NewPartSiteAvailability("widget-a", "dallas", domain.AvailabilityConstraints{
		IsPreferred:   true,
		LeadTime:      72 * time.Hour,
		MinLotSize:    10,
		MaxLotSize:    500,
		UnitCostCents: 1250,
	})
	require.NoError(t, repo.Save(record))

	loaded, err := repo.Find("widget-a", "dallas")
	require.NoError(t, err)
	require.Equal(t, record.ID(), loaded.ID())
	require.True(t, loaded.IsCapable())
	require.True(t, loaded.Constraints().IsPreferred)
	require.Equal(t, 72*time.Hour, loaded.Constraints().LeadTime)
	require.Equal(t, 10, loaded.Constraints().MinLotSize)
	require.Equal(t, 500, loaded.Constraints().MaxLotSize)
	require.Equal(t, int64(1250), loaded.Constraints().UnitCostCents)
	require.Nil(t, loaded.Constraints().ExpiresAt)
}

func TestAvailabilitySaveUpdatesByIdentity(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.AvailabilityRepository()

	record := domain.NewPartSiteAvailability("widget-a", "dallas", domain.AvailabilityConstraints{
		LeadTime: 24 * time.Hour,
	})
	require.NoError(t, repo.Save(record))

	record.Revoke()
	require.NoError(t, repo.Save(record))

	loaded, err := repo.Find("widget-a", "dallas")
	require.NoError(t, err)
	require.Equal(t, record.ID(), loaded.ID())
	require.False(t, loaded.IsCapable())
	require.NotNil(t, loaded.Constraints().ExpiresAt)

	all, err := repo.ListForPart("widget-a")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestAvailabilityRoundTripPreservesWindow(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.AvailabilityRepository()

	from := time.Now().Add(-time.Hour).Truncate(time.Second)
	until := time.Now().Add(time.Hour).Truncate(time.Second)
	record := domain.NewPartSiteAvailability("widget-a", "dallas", domain.AvailabilityConstraints{
		EffectiveFrom: from,
		ExpiresAt:     &until,
	})
	require.NoError(t, repo.Save(record))

	loaded, err := repo.Find("widget-a", "dallas")
	require.NoError(t, err)
	require.True(t, loaded.Constraints().EffectiveFrom.Equal(from))
	require.NotNil(t, loaded.Constraints().ExpiresAt)
	require.True(t, loaded.Constraints().ExpiresAt.Equal(until))
}

func TestAvailabilityFindNotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.AvailabilityRepository()

	_, err := repo.Find("widget-a", "nowhere")
	var notFound *domain.AvailabilityNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "widget-a", notFound.PartID)
	require.Equal(t, "nowhere", notFound.SiteID)
}

func TestAvailabilityListForPartOrderedBySite(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.AvailabilityRepository()

	require.NoError(t, repo.Save(domain.NewPartSiteAvailability("widget-a", "dallas", domain.AvailabilityConstraints{})))
	require.NoError(t, repo.Save(domain.NewPartSiteAvailability("widget-a", "austin", domain.AvailabilityConstraints{})))
	require.NoError(t, repo.Save(domain.NewPartSiteAvailability("widget-b", "dallas", domain.AvailabilityConstraints{})))

	records, err := repo.ListForPart("widget-a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "austin", records[0].SiteID())
	require.Equal(t, "dallas", records[1].SiteID())
}

func TestAvailabilityDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.AvailabilityRepository()

	require.NoError(t, repo.Save(domain.NewPartSiteAvailability("widget-a", "dallas", domain.AvailabilityConstraints{})))
	require.NoError(t, repo.Delete("widget-a", "dallas"))

	var notFound *domain.AvailabilityNotFoundError
	_, err := repo.Find("widget-a", "dallas")
	require.ErrorAs(t, err, &notFound)

	require.ErrorAs(t, repo.Delete("widget-a", "dallas"), &notFound)
}
