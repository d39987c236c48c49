package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routecard/internal/routing/domain"
)

func TestParsePositiveInt(t *testing.T) {
	n, err := parsePositiveInt("10", "step number")
	require.NoError(t, err)
	require.Equal(t, 10, n)

	_, err = parsePositiveInt("0", "step number")
	require.Error(t, err)

	_, err = parsePositiveInt("ten", "step number")
	require.Error(t, err)
}

func TestParseAt(t *testing.T) {
	at, err := parseAt("2026-09-01T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, 2026, at.Year())

	// Empty defaults to roughly now.
	at, err = parseAt("")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), at, time.Minute)

	_, err = parseAt("next tuesday")
	require.Error(t, err)
}

func TestToSegmentDTO(t *testing.T) {
	segment := domain.NewProcessSegment("CUT-100", "Rough cut", domain.Timing{
		Setup: 10 * time.Minute, Run: 30 * time.Minute, Teardown: 5 * time.Minute,
	})
	segment.SetSiteID("dallas")
	segment.SetStandard(true)

	dto := toSegmentDTO(segment)
	require.Equal(t, "CUT-100", dto.Code)
	require.Equal(t, "dallas", dto.Site)
	require.True(t, dto.Standard)
	require.Equal(t, "10m0s", dto.Setup)
	require.Equal(t, "30m0s", dto.Run)
}

func TestToRoutingDTO(t *testing.T) {
	routing := domain.NewRouting("widget-a", "dallas", "1.0")
	step, err := routing.AddStep(10, "segment-1")
	require.NoError(t, err)
	step2, err := routing.AddStep(20, "segment-2")
	require.NoError(t, err)
	_, err = routing.AddDependency(step2.ID(), step.ID(),
		domain.DependencyMustComplete, domain.TimingFinishToStart)
	require.NoError(t, err)

	dto := toRoutingDTO(routing, true)
	require.Equal(t, "widget-a", dto.Part)
	require.Equal(t, "draft", dto.State)
	require.Len(t, dto.Steps, 2)
	require.Len(t, dto.Dependencies, 1)
	require.Equal(t, step2.ID(), dto.Dependencies[0].Dependent)

	summary := toRoutingDTO(routing, false)
	require.Empty(t, summary.Steps)
	require.Empty(t, summary.Dependencies)
}
