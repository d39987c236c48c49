package testutil

import "time"

// WithStandardCatalog adds a small machining catalog: three global standard
// segments, grants for one part at two sites, and a three-step draft routing
// at the first site.
func (b *Builder) WithStandardCatalog() *Builder {
	return b.
		WithSegment("CUT-100", SegmentName("Rough Cut")).
		WithSegment("DRILL-200", SegmentName("Drill Pattern")).
		WithSegment("FINISH-300", SegmentName("Surface Finish")).
		WithGrant("widget-a", "dallas", Preferred(), LeadTime(48*time.Hour), LotSizes(10, 500)).
		WithGrant("widget-a", "austin", LeadTime(72*time.Hour), LotSizes(50, 1000)).
		WithRouting("widget-a", "dallas", "1.0",
			Step(10, "CUT-100"),
			Step(20, "DRILL-200"),
			Step(30, "FINISH-300"),
			MustComplete(20, 10),
			MustComplete(30, 20),
		)
}
