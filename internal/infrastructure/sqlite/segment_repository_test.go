package sqlite_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routecard/internal/routing/domain"
	"routecard/internal/testutil"
)

func TestSegmentSaveAndFind(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.SegmentRepository()

	segment := domain.NewProcessSegment("CUT-100", "Rough cut", domain.Timing{
		Setup:    10 * time.Minute,
		Run:      30 * time.Minute,
		Teardown: 5 * time.Minute,
	})
	segment.SetSiteID("dallas")
	require.NoError(t, repo.Save(segment))

	loaded, err := repo.FindByID(segment.ID())
	require.NoError(t, err)
	require.Equal(t, segment.ID(), loaded.ID())
	require.Equal(t, "CUT-100", loaded.Code())
	require.Equal(t, "Rough cut", loaded.Name())
	require.Equal(t, segment.Nominal(), loaded.Nominal())
	require.Equal(t, "dallas", loaded.SiteID())
	require.False(t, loaded.IsStandard())

	byCode, err := repo.FindByCode("CUT-100")
	require.NoError(t, err)
	require.Equal(t, segment.ID(), byCode.ID())
}

func TestSegmentSaveUpdatesInPlace(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.SegmentRepository()

	segment := domain.NewProcessSegment("CUT-100", "Rough cut", domain.Timing{Run: 30 * time.Minute})
	require.NoError(t, repo.Save(segment))

	segment.SetName("Rough cut v2")
	segment.SetNominal(domain.Timing{Run: 25 * time.Minute})
	segment.SetStandard(true)
	require.NoError(t, repo.Save(segment))

	loaded, err := repo.FindByID(segment.ID())
	require.NoError(t, err)
	require.Equal(t, "Rough cut v2", loaded.Name())
	require.Equal(t, 25*time.Minute, loaded.Nominal().Run)
	require.True(t, loaded.IsStandard())

	all, err := repo.List(domain.SegmentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSegmentDuplicateCode(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.SegmentRepository()

	require.NoError(t, repo.Save(domain.NewProcessSegment("CUT-100", "Rough cut", domain.Timing{})))

	err := repo.Save(domain.NewProcessSegment("CUT-100", "Another cut", domain.Timing{}))
	require.ErrorIs(t, err, domain.ErrDuplicateCode)
}

func TestSegmentFindNotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.SegmentRepository()

	var notFound *domain.SegmentNotFoundError

	_, err := repo.FindByID("missing")
	require.ErrorAs(t, err, &notFound)

	_, err = repo.FindByCode("MISSING-CODE")
	require.ErrorAs(t, err, &notFound)
}

func TestSegmentList(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.SegmentRepository()

	dallasCut := domain.NewProcessSegment("CUT-100", "Rough cut", domain.Timing{})
	dallasCut.SetSiteID("dallas")
	require.NoError(t, repo.Save(dallasCut))

	austinWeld := domain.NewProcessSegment("WELD-200", "Seam weld", domain.Timing{})
	austinWeld.SetSiteID("austin")
	require.NoError(t, repo.Save(austinWeld))

	globalInspect := domain.NewProcessSegment("INSPECT-900", "Final inspection", domain.Timing{})
	globalInspect.SetStandard(true)
	require.NoError(t, repo.Save(globalInspect))

	all, err := repo.List(domain.SegmentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Ordered by code.
	require.Equal(t, "CUT-100", all[0].Code())
	require.Equal(t, "INSPECT-900", all[1].Code())
	require.Equal(t, "WELD-200", all[2].Code())

	dallasOnly, err := repo.List(domain.SegmentFilter{SiteID: "dallas"})
	require.NoError(t, err)
	require.Len(t, dallasOnly, 1)
	require.Equal(t, "CUT-100", dallasOnly[0].Code())

	dallasAndGlobal, err := repo.List(domain.SegmentFilter{SiteID: "dallas", IncludeGlobal: true})
	require.NoError(t, err)
	require.Len(t, dallasAndGlobal, 2)

	standard := true
	standardOnly, err := repo.List(domain.SegmentFilter{Standard: &standard})
	require.NoError(t, err)
	require.Len(t, standardOnly, 1)
	require.Equal(t, "INSPECT-900", standardOnly[0].Code())
}

func TestSegmentDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := db.SegmentRepository()

	segment := domain.NewProcessSegment("CUT-100", "Rough cut", domain.Timing{})
	require.NoError(t, repo.Save(segment))
	require.NoError(t, repo.Delete(segment.ID()))

	var notFound *domain.SegmentNotFoundError
	_, err := repo.FindByID(segment.ID())
	require.ErrorAs(t, err, &notFound)

	require.ErrorAs(t, repo.Delete(segment.ID()), &notFound)
}
