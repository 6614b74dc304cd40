package service

import (
	"context"
	"math"
	"time"

	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/domain/registration"
	"github.com/gatherly/gatherly/internal/repo/postgres"
)

type StatsStore interface {
	Collect(ctx context.Context, eventID int64) (postgres.StatsRows, error)
}

type Stats struct {
	store StatsStore
	clk   clock.Clock
}

func NewStats(store StatsStore, clk clock.Clock) *Stats {
	return &Stats{store: store, clk: clk}
}

type StatusBreakdown struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type CapacityUtilization struct {
	Used           int     `json:"used"`
	Available      int     `json:"available"`
	PercentageFull float64 `json:"percentage_full"`
}

type TimelineBucket struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
}

type RecentEntry struct {
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
}

type StatsView struct {
	EventID  int64     `json:"event_id"`
	Title    string    `json:"title"`
	DateTime time.Time `json:"date_time"`
	Capacity int       `json:"capacity"`

	ConfirmedRegistrations int                        `json:"confirmed_registrations"`
	StatusBreakdown        map[string]StatusBreakdown `json:"status_breakdown"`

	RegistrationRatePercentage    float64  `json:"registration_rate_percentage"`
	FirstRegistration             *time.Time `json:"first_registration"`
	LatestRegistration            *time.Time `json:"latest_registration"`
	AverageRegistrationDelayHours *float64 `json:"average_registration_delay_hours"`

	CapacityUtilization CapacityUtilization `json:"capacity_utilization"`

	TimeUntilEvent int64 `json:"time_until_event"` // seconds
	IsEventSoon    bool  `json:"is_event_soon"`

	HourlyTimeline      []TimelineBucket `json:"hourly_timeline"`
	RecentRegistrations []RecentEntry    `json:"recent_registrations"`
}

func (s *Stats) Snapshot(ctx context.Context, eventID int64) (StatsView, error) {
	rows, err := s.store.Collect(ctx, eventID)

	if err != nil {
		return StatsView{}, err
	}

	return BuildStatsView(rows, s.clk.Now()), nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// BuildStatsView derives every presented number from one consistent set of
// rows.
func BuildStatsView(rows postgres.StatsRows, now time.Time) StatsView {
	e := rows.Event

	total := 0
	for _, c := range rows.StatusCounts {
		total += c
	}

	breakdown := make(map[string]StatusBreakdown, 4)

	for _, status := range []registration.Status{
		registration.StatusConfirmed,
		registration.StatusCancelled,
		registration.StatusWaitlist,
		registration.StatusPending,
	} {
		count := rows.StatusCounts[status]
		pct := 0.0
		if total > 0 {
			pct = round2(float64(count) / float64(total) * 100)
		}
		breakdown[string(status)] = StatusBreakdown{Count: count, Percentage: pct}
	}

	confirmed := rows.StatusCounts[registration.StatusConfirmed]

	var avgHours *float64

	if rows.AvgDelaySeconds != nil {
		h := round2(*rows.AvgDelaySeconds / 3600)
		avgHours = &h
	}

	until := e.DateTime.Sub(now)

	timeline := make([]TimelineBucket, 0, len(rows.Hourly))
	for _, b := range rows.Hourly {
		timeline = append(timeline, TimelineBucket{Hour: b.Hour, Count: b.Count})
	}

	recent := make([]RecentEntry, 0, len(rows.Recent))
	for _, r := range rows.Recent {
		recent = append(recent, RecentEntry{Name: r.Name, RegisteredAt: r.RegisteredAt})
	}

	return StatsView{
		EventID:  e.ID,
		Title:    e.Title,
		DateTime: e.DateTime,
		Capacity: e.Capacity,

		ConfirmedRegistrations: confirmed,
		StatusBreakdown:        breakdown,

		RegistrationRatePercentage:    round2(float64(confirmed) / float64(e.Capacity) * 100),
		FirstRegistration:             rows.FirstRegistration,
		LatestRegistration:            rows.LatestRegistration,
		AverageRegistrationDelayHours: avgHours,

		CapacityUtilization: CapacityUtilization{
			Used:           confirmed,
			Available:      e.Capacity - confirmed,
			PercentageFull: round2(float64(confirmed) / float64(e.Capacity) * 100),
		},

		TimeUntilEvent: int64(until.Seconds()),
		IsEventSoon:    until > 0 && until < 24*time.Hour,

		HourlyTimeline:      timeline,
		RecentRegistrations: recent,
	}
}
