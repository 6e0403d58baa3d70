package budget

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Action names the mutation a BudgetEvent describes.
type Action string

const (
	ActionCycleCreated              Action = "cycle_created"
	ActionCycleStatusUpdated        Action = "cycle_status_updated"
	ActionCycleLimitsUpdated        Action = "cycle_limits_updated"
	ActionSegmentCreated            Action = "segment_created"
	ActionSegmentUpdated            Action = "segment_updated"
	ActionSegmentDeleted            Action = "segment_deleted"
	ActionSegmentCycleStatusUpdated Action = "segment_cycle_status_updated"
	ActionMemberAssigned            Action = "member_assigned"
	ActionMemberRemoved             Action = "member_removed"
)

// Cycle is the spend envelope of one Monday-Sunday (UTC) week.
type Cycle struct {
	Id        int       `json:"id"`
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`
	Status    Status    `json:"status"`
	// Limits are unset until an admin configures them.
	WeeklyLimitCents         *int64     `json:"weekly_limit_cents"`
	MonthlyLimitCents        *int64     `json:"monthly_limit_cents"`
	EmergencyReserveCents    *int64     `json:"emergency_reserve_cents"`
	PerClipCapCents          *int64     `json:"per_clip_cap_cents"`
	PerClipperWeeklyCapCents *int64     `json:"per_clipper_weekly_cap_cents"`
	Notes                    string     `json:"notes"`
	ApprovedAt               *time.Time `json:"approved_at"`
	Created                  time.Time  `json:"created"`
}

// CycleLimits is a partial update; nil fields are left untouched.
type CycleLimits struct {
	WeeklyLimitCents         *int64
	MonthlyLimitCents        *int64
	EmergencyReserveCents    *int64
	PerClipCapCents          *int64
	PerClipperWeeklyCapCents *int64
	Notes                    *string
}

func (l CycleLimits) apply(c Cycle) Cycle {
	if l.WeeklyLimitCents != nil {
		c.WeeklyLimitCents = l.WeeklyLimitCents
	}
	if l.MonthlyLimitCents != nil {
		c.MonthlyLimitCents = l.MonthlyLimitCents
	}
	if l.EmergencyReserveCents != nil {
		c.EmergencyReserveCents = l.EmergencyReserveCents
	}
	if l.PerClipCapCents != nil {
		c.PerClipCapCents = l.PerClipCapCents
	}
	if l.PerClipperWeeklyCapCents != nil {
		c.PerClipperWeeklyCapCents = l.PerClipperWeeklyCapCents
	}
	if l.Notes != nil {
		c.Notes = *l.Notes
	}
	return c
}

// Segment is a named spend bucket. Rule and Throttle are stored as given and never interpreted here.
type Segment struct {
	Id                int             `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Rule              json.RawMessage `json:"rule,omitempty"`
	WeeklyLimitCents  *int64          `json:"weekly_limit_cents"`
	MonthlyLimitCents *int64          `json:"monthly_limit_cents"`
	// Priority orders segments for display only.
	Priority int             `json:"priority"`
	Throttle json.RawMessage `json:"throttle,omitempty"`
	IsActive bool            `json:"is_active"`
	Created  time.Time       `json:"created"`
}

type SegmentUpdate struct {
	Name              *string
	Description       *string
	Rule              json.RawMessage
	WeeklyLimitCents  *int64
	MonthlyLimitCents *int64
	Priority          *int
	Throttle          json.RawMessage
	IsActive          *bool
}

func (u SegmentUpdate) apply(s Segment) Segment {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.Rule != nil {
		s.Rule = u.Rule
	}
	if u.WeeklyLimitCents != nil {
		s.WeeklyLimitCents = u.WeeklyLimitCents
	}
	if u.MonthlyLimitCents != nil {
		s.MonthlyLimitCents = u.MonthlyLimitCents
	}
	if u.Priority != nil {
		s.Priority = *u.Priority
	}
	if u.Throttle != nil {
		s.Throttle = u.Throttle
	}
	if u.IsActive != nil {
		s.IsActive = *u.IsActive
	}
	return s
}

// SegmentCycle is one segment's allocation within one cycle. At most one exists per (segment, cycle).
type SegmentCycle struct {
	Id             int        `json:"id"`
	SegmentId      int        `json:"segment_id"`
	CycleId        int        `json:"cycle_id"`
	SpentCents     int64      `json:"spent_cents"`
	ProjectedCents int64      `json:"projected_cents"`
	RemainingCents int64      `json:"remaining_cents"`
	Status         Status     `json:"status"`
	ApprovedAt     *time.Time `json:"approved_at"`
}

type Member struct {
	Id         int       `json:"id"`
	UserId     string    `json:"user_id"`
	SegmentId  int       `json:"segment_id"`
	AssignedAt time.Time `json:"assigned_at"`
	// DisplayName is filled from the profile directory when listing and is not persisted.
	DisplayName string `json:"-"`
}

// Event is an append-only audit record of a single mutation.
type Event struct {
	Id                   int
	Action               Action
	Before               json.RawMessage
	After                json.RawMessage
	ImpactedSegmentIds   []int
	RollbackToken        string
	EstimatedImpactCents *int64
	PerformedBy          string
	Created              time.Time
}

// ActualSpend sums real clipper payouts made within a cycle's week.
type ActualSpend struct {
	WeekStart    time.Time
	WeekEnd      time.Time
	TotalCents   int64
	PayoutCount  int
	ClipperCount int
}
