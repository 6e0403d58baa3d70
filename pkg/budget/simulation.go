package budget

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// DefaultRPM is the assumed payout in dollars per 1000 views.
	DefaultRPM = 0.22
	// AssumedViewsPerClip is a planning heuristic: at the default rate it gives roughly $3 per clip.
	AssumedViewsPerClip = 13636
)

// Linear planning multipliers applied to the weekly figure. Heuristics, not forecasts.
var (
	monthlyMultiplier      = decimal.NewFromInt(30).Div(decimal.NewFromInt(7))
	worstCaseMultiplier    = decimal.RequireFromString("1.5")
	riskAdjustedMultiplier = decimal.RequireFromString("0.8")
	safeLimitMultiplier    = decimal.RequireFromString("1.1")
)

type SimulationParams struct {
	RPM float64
	// WeeklyLimitCents overrides the current cycle's weekly limit when set.
	WeeklyLimitCents *int64
	// BonusRateChange is accepted and echoed back; the projection does not use it yet.
	BonusRateChange *float64
	// SegmentId restricts the returned distribution rows. Totals are computed over all active segments.
	SegmentId *int
}

type SimulationDefaults struct {
	FallbackWeeklyLimitCents int64
	DefaultSegmentLimitCents int64
}

type SimulationResult struct {
	RPM                   decimal.Decimal
	WeeklyLimitCents      int64
	MaxViews              int64
	AvgPayoutPerClipCents int64
	TotalClips            int64
	BonusRateChange       *float64

	Day7SpendCents    int64
	Day30SpendCents   int64
	WorstCaseCents    int64
	RiskAdjustedCents int64
	SafeLimitCents    int64

	Distribution []SegmentProjection
}

type SegmentProjection struct {
	SegmentId        int
	Name             string
	Share            decimal.Decimal
	Clips            int64
	SpendCents       int64
	WeeklyLimitCents int64
	// Capped is set when the proportional share would have exceeded the segment's own limit.
	Capped bool
}

// Simulate projects weekly spend and clip volume for the given rate and limit. It has no side
// effects: the same params, cycle and segments always produce the same result.
func Simulate(params SimulationParams, cycle *Cycle, segments []Segment, defaults SimulationDefaults) SimulationResult {
	rpm := decimal.NewFromFloat(params.RPM)
	if !rpm.IsPositive() {
		rpm = decimal.NewFromFloat(DefaultRPM)
	}

	weeklyLimitCents := defaults.FallbackWeeklyLimitCents
	if params.WeeklyLimitCents != nil && *params.WeeklyLimitCents > 0 {
		weeklyLimitCents = *params.WeeklyLimitCents
	} else if cycle != nil && cycle.WeeklyLimitCents != nil && *cycle.WeeklyLimitCents > 0 {
		weeklyLimitCents = *cycle.WeeklyLimitCents
	}
	weeklyLimit := decimal.NewFromInt(weeklyLimitCents)
	hundred := decimal.NewFromInt(100)
	thousand := decimal.NewFromInt(1000)

	maxViews := weeklyLimit.Div(hundred).Div(rpm).Mul(thousand).Floor()

	avgPerClipCents := perClipCents(rpm)
	if !avgPerClipCents.IsPositive() {
		avgPerClipCents = perClipCents(decimal.NewFromFloat(DefaultRPM))
	}

	totalClips := weeklyLimit.Div(avgPerClipCents).Floor()
	weeklySpend := decimal.Min(totalClips.Mul(avgPerClipCents), weeklyLimit)
	riskAdjusted := weeklySpend.Mul(riskAdjustedMultiplier)

	return SimulationResult{
		RPM:                   rpm,
		WeeklyLimitCents:      weeklyLimitCents,
		MaxViews:              maxViews.IntPart(),
		AvgPayoutPerClipCents: avgPerClipCents.Round(0).IntPart(),
		TotalClips:            totalClips.IntPart(),
		BonusRateChange:       params.BonusRateChange,
		Day7SpendCents:        weeklySpend.Round(0).IntPart(),
		Day30SpendCents:       weeklySpend.Mul(monthlyMultiplier).Round(0).IntPart(),
		WorstCaseCents:        weeklySpend.Mul(worstCaseMultiplier).Round(0).IntPart(),
		RiskAdjustedCents:     riskAdjusted.Round(0).IntPart(),
		SafeLimitCents:        riskAdjusted.Mul(safeLimitMultiplier).Round(0).IntPart(),
		Distribution:          distribute(totalClips, avgPerClipCents, segments, defaults, params.SegmentId),
	}
}

// perClipCents is rate x assumed views per clip / 1000, in cents.
func perClipCents(rpm decimal.Decimal) decimal.Decimal {
	return rpm.Mul(decimal.NewFromInt(AssumedViewsPerClip)).Div(decimal.NewFromInt(1000)).Mul(decimal.NewFromInt(100))
}

// distribute spreads totalClips over active segments in proportion to their weekly limits.
// A segment's projected spend never exceeds its own weekly limit.
func distribute(
	totalClips decimal.Decimal,
	avgPerClipCents decimal.Decimal,
	segments []Segment,
	defaults SimulationDefaults,
	onlySegmentId *int,
) []SegmentProjection {
	active := make([]Segment, 0, len(segments))
	sum := decimal.Zero
	for _, s := range segments {
		if !s.IsActive {
			continue
		}
		active = append(active, s)
		sum = sum.Add(decimal.NewFromInt(segmentLimit(s, defaults)))
	}
	if !sum.IsPositive() {
		return []SegmentProjection{}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].Id < active[j].Id
	})

	projections := make([]SegmentProjection, 0, len(active))
	for _, s := range active {
		if onlySegmentId != nil && *onlySegmentId != s.Id {
			continue
		}
		limitCents := segmentLimit(s, defaults)
		share := decimal.NewFromInt(limitCents).Div(sum)
		clips := totalClips.Mul(share).Floor()
		spend := clips.Mul(avgPerClipCents).Round(0).IntPart()
		capped := false
		if spend > limitCents {
			spend = limitCents
			capped = true
		}
		projections = append(projections, SegmentProjection{
			SegmentId:        s.Id,
			Name:             s.Name,
			Share:            share,
			Clips:            clips.IntPart(),
			SpendCents:       spend,
			WeeklyLimitCents: limitCents,
			Capped:           capped,
		})
	}
	return projections
}

func segmentLimit(s Segment, defaults SimulationDefaults) int64 {
	if s.WeeklyLimitCents != nil {
		return *s.WeeklyLimitCents
	}
	return defaults.DefaultSegmentLimitCents
}
