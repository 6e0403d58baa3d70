package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/clipperhq/growthcore/internal/config"
	"github.com/clipperhq/growthcore/internal/utils"
	"github.com/clipperhq/growthcore/pkg/user"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidStatus = errors.New("invalid budget status")
var ErrInvalidSegment = errors.New("invalid segment definition")

const defaultEventsLimit = 50

type Service interface {
	// GetCurrentCycle returns this week's cycle, creating it (pending approval, no limits) when absent.
	GetCurrentCycle(ctx context.Context) (Cycle, error)
	UpdateCycleStatus(ctx context.Context, status Status) (Cycle, error)
	UpdateCycleLimits(ctx context.Context, limits CycleLimits) (Cycle, error)
	ListCurrentSegmentCycles(ctx context.Context) ([]SegmentCycle, error)
	UpdateSegmentCycleStatus(ctx context.Context, id int, status Status) (SegmentCycle, error)

	ListSegments(ctx context.Context) ([]Segment, error)
	CreateSegment(ctx context.Context, segment Segment) (Segment, error)
	UpdateSegment(ctx context.Context, id int, update SegmentUpdate) (Segment, error)
	DeleteSegment(ctx context.Context, id int) error

	ListMembers(ctx context.Context, segmentId int) ([]Member, error)
	AssignMember(ctx context.Context, segmentId int, userId string) (Member, error)
	RemoveMember(ctx context.Context, id int) error

	// Simulate projects spend for the current week without creating or changing anything.
	Simulate(ctx context.Context, params SimulationParams) (SimulationResult, error)
	GetActualSpend(ctx context.Context) (ActualSpend, error)
	ListEvents(ctx context.Context, limit int) ([]Event, error)
}

// DirectoryReader resolves user ids to display names.
type DirectoryReader interface {
	GetDisplayNames(ctx context.Context, uids []string) (map[string]string, error)
}

type ServiceImpl struct {
	repo      Repository
	directory DirectoryReader
	clock     utils.Clock
	defaults  SimulationDefaults
}

func NewService(repo Repository, directory DirectoryReader, clock utils.Clock, cfg config.Budget) Service {
	return &ServiceImpl{
		repo:      repo,
		directory: directory,
		clock:     clock,
		defaults: SimulationDefaults{
			FallbackWeeklyLimitCents: cfg.FallbackWeeklyLimitCents,
			DefaultSegmentLimitCents: cfg.DefaultSegmentLimitCents,
		},
	}
}

func (s *ServiceImpl) GetCurrentCycle(ctx context.Context) (Cycle, error) {
	weekStart, weekEnd := WeekBounds(s.clock.Now())
	cycle, err := s.repo.FindCycleForWeek(ctx, weekStart, weekEnd)
	if err == nil {
		return cycle, nil
	}
	if !errors.Is(err, ErrCycleNotFound) {
		return Cycle{}, err
	}

	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		stored, created, err := repo.InsertCycleIfAbsent(ctx, Cycle{
			WeekStart: weekStart,
			WeekEnd:   weekEnd,
			Status:    StatusPendingApproval,
		})
		if err != nil {
			return err
		}
		cycle = stored
		if !created {
			return nil
		}
		log.Debugf("created budget cycle %d for week %s", stored.Id, weekStart.Format("2006-01-02"))

		segmentCycles, err := s.seedSegmentCycles(ctx, repo, stored.Id)
		if err != nil {
			return err
		}
		impacted := make([]int, 0, len(segmentCycles))
		for _, sc := range segmentCycles {
			impacted = append(impacted, sc.SegmentId)
		}
		return s.appendEvent(ctx, repo, ActionCycleCreated, nil, stored, impacted, nil)
	})
	if err != nil {
		log.Errorf("failed to create budget cycle: %v", err)
		return Cycle{}, fmt.Errorf("failed to create budget cycle: %w", err)
	}
	return cycle, nil
}

// seedSegmentCycles creates the missing segment cycles of all active segments for the given cycle.
func (s *ServiceImpl) seedSegmentCycles(ctx context.Context, repo Repository, cycleId int) ([]SegmentCycle, error) {
	segments, err := repo.ListSegments(ctx)
	if err != nil {
		return nil, err
	}
	var toCreate []SegmentCycle
	for _, segment := range segments {
		if !segment.IsActive {
			continue
		}
		toCreate = append(toCreate, s.newSegmentCycle(segment, cycleId))
	}
	return repo.CreateSegmentCycles(ctx, toCreate)
}

func (s *ServiceImpl) newSegmentCycle(segment Segment, cycleId int) SegmentCycle {
	return SegmentCycle{
		SegmentId:      segment.Id,
		CycleId:        cycleId,
		RemainingCents: segmentLimit(segment, s.defaults),
		Status:         StatusPendingApproval,
	}
}

func (s *ServiceImpl) UpdateCycleStatus(ctx context.Context, status Status) (Cycle, error) {
	if !status.Valid() {
		return Cycle{}, ErrInvalidStatus
	}
	current, err := s.GetCurrentCycle(ctx)
	if err != nil {
		return Cycle{}, err
	}

	var updated Cycle
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		before, err := repo.GetCycle(ctx, current.Id)
		if err != nil {
			return err
		}
		after := before
		after.Status = status
		if status == StatusApproved {
			now := s.clock.Now()
			after.ApprovedAt = &now
		} else {
			after.ApprovedAt = nil
		}
		if err := s.appendEvent(ctx, repo, ActionCycleStatusUpdated, before, after, nil, nil); err != nil {
			return err
		}
		updated, err = repo.UpdateCycle(ctx, after)
		return err
	})
	if err != nil {
		log.Errorf("failed to update cycle status: %v", err)
		return Cycle{}, err
	}
	return updated, nil
}

func (s *ServiceImpl) UpdateCycleLimits(ctx context.Context, limits CycleLimits) (Cycle, error) {
	current, err := s.GetCurrentCycle(ctx)
	if err != nil {
		return Cycle{}, err
	}

	var updated Cycle
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		before, err := repo.GetCycle(ctx, current.Id)
		if err != nil {
			return err
		}
		after := limits.apply(before)
		impact := weeklyLimitDelta(before.WeeklyLimitCents, after.WeeklyLimitCents)
		if err := s.appendEvent(ctx, repo, ActionCycleLimitsUpdated, before, after, nil, impact); err != nil {
			return err
		}
		updated, err = repo.UpdateCycle(ctx, after)
		return err
	})
	if err != nil {
		log.Errorf("failed to update cycle limits: %v", err)
		return Cycle{}, err
	}
	return updated, nil
}

func weeklyLimitDelta(before, after *int64) *int64 {
	var b, a int64
	if before != nil {
		b = *before
	}
	if after != nil {
		a = *after
	}
	if a == b {
		return nil
	}
	delta := a - b
	return &delta
}

func (s *ServiceImpl) ListCurrentSegmentCycles(ctx context.Context) ([]SegmentCycle, error) {
	current, err := s.GetCurrentCycle(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSegmentCycles(ctx, current.Id)
}

func (s *ServiceImpl) UpdateSegmentCycleStatus(ctx context.Context, id int, status Status) (SegmentCycle, error) {
	if !status.Valid() {
		return SegmentCycle{}, ErrInvalidStatus
	}

	var updated SegmentCycle
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		before, err := repo.GetSegmentCycle(ctx, id)
		if err != nil {
			return err
		}
		after := before
		after.Status = status
		if status == StatusApproved {
			now := s.clock.Now()
			after.ApprovedAt = &now
		} else {
			after.ApprovedAt = nil
		}
		if err := s.appendEvent(ctx, repo, ActionSegmentCycleStatusUpdated, before, after, []int{before.SegmentId}, nil); err != nil {
			return err
		}
		updated, err = repo.UpdateSegmentCycle(ctx, after)
		return err
	})
	if err != nil {
		log.Errorf("failed to update segment cycle %d status: %v", id, err)
		return SegmentCycle{}, err
	}
	return updated, nil
}

func (s *ServiceImpl) ListSegments(ctx context.Context) ([]Segment, error) {
	return s.repo.ListSegments(ctx)
}

func (s *ServiceImpl) CreateSegment(ctx context.Context, segment Segment) (Segment, error) {
	segment.Name = strings.TrimSpace(segment.Name)
	if segment.Name == "" {
		return Segment{}, fmt.Errorf("%w: name is required", ErrInvalidSegment)
	}
	if err := validateSegmentLimits(segment.WeeklyLimitCents, segment.MonthlyLimitCents); err != nil {
		return Segment{}, err
	}

	weekStart, weekEnd := WeekBounds(s.clock.Now())
	var created Segment
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		var err error
		created, err = repo.CreateSegment(ctx, segment)
		if err != nil {
			return err
		}
		cycle, err := repo.FindCycleForWeek(ctx, weekStart, weekEnd)
		if err == nil {
			if _, err := repo.CreateSegmentCycles(ctx, []SegmentCycle{s.newSegmentCycle(created, cycle.Id)}); err != nil {
				return err
			}
		} else if !errors.Is(err, ErrCycleNotFound) {
			return err
		}
		return s.appendEvent(ctx, repo, ActionSegmentCreated, nil, created, []int{created.Id}, created.WeeklyLimitCents)
	})
	if err != nil {
		log.Errorf("failed to create segment: %v", err)
		return Segment{}, err
	}
	return created, nil
}

func (s *ServiceImpl) UpdateSegment(ctx context.Context, id int, update SegmentUpdate) (Segment, error) {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return Segment{}, fmt.Errorf("%w: name is required", ErrInvalidSegment)
	}
	if err := validateSegmentLimits(update.WeeklyLimitCents, update.MonthlyLimitCents); err != nil {
		return Segment{}, err
	}

	var updated Segment
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		before, err := repo.GetSegment(ctx, id)
		if err != nil {
			return err
		}
		after := update.apply(before)
		impact := weeklyLimitDelta(before.WeeklyLimitCents, after.WeeklyLimitCents)
		if err := s.appendEvent(ctx, repo, ActionSegmentUpdated, before, after, []int{id}, impact); err != nil {
			return err
		}
		updated, err = repo.UpdateSegment(ctx, after)
		return err
	})
	if err != nil {
		log.Errorf("failed to update segment %d: %v", id, err)
		return Segment{}, err
	}
	return updated, nil
}

func validateSegmentLimits(limits ...*int64) error {
	for _, limit := range limits {
		if limit != nil && *limit < 0 {
			return fmt.Errorf("%w: limits must not be negative", ErrInvalidSegment)
		}
	}
	return nil
}

// DeleteSegment removes the segment with its segment cycles and memberships.
func (s *ServiceImpl) DeleteSegment(ctx context.Context, id int) error {
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		before, err := repo.GetSegment(ctx, id)
		if err != nil {
			return err
		}
		if err := s.appendEvent(ctx, repo, ActionSegmentDeleted, before, nil, []int{id}, nil); err != nil {
			return err
		}
		deleted, err := repo.DeleteSegment(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrSegmentNotFound
		}
		return nil
	})
	if err != nil {
		log.Errorf("failed to delete segment %d: %v", id, err)
		return err
	}
	return nil
}

func (s *ServiceImpl) ListMembers(ctx context.Context, segmentId int) ([]Member, error) {
	if _, err := s.repo.GetSegment(ctx, segmentId); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, segmentId)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 || s.directory == nil {
		return members, nil
	}

	uids := make([]string, 0, len(members))
	for _, m := range members {
		uids = append(uids, m.UserId)
	}
	names, err := s.directory.GetDisplayNames(ctx, uids)
	if err != nil {
		// Names are decoration only.
		log.Warnf("failed to resolve member display names: %v", err)
		return members, nil
	}
	for i := range members {
		members[i].DisplayName = names[members[i].UserId]
	}
	return members, nil
}

// AssignMember is idempotent: assigning an existing member returns the existing membership.
func (s *ServiceImpl) AssignMember(ctx context.Context, segmentId int, userId string) (Member, error) {
	userId = strings.TrimSpace(userId)
	if userId == "" {
		return Member{}, fmt.Errorf("%w: user id is required", ErrInvalidSegment)
	}

	var member Member
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		if _, err := repo.GetSegment(ctx, segmentId); err != nil {
			return err
		}
		var before any
		existing, err := repo.FindMember(ctx, userId, segmentId)
		if err == nil {
			before = existing
		} else if !errors.Is(err, ErrMemberNotFound) {
			return err
		}
		member, err = repo.UpsertMember(ctx, Member{
			UserId:     userId,
			SegmentId:  segmentId,
			AssignedAt: s.clock.Now(),
		})
		if err != nil {
			return err
		}
		return s.appendEvent(ctx, repo, ActionMemberAssigned, before, member, []int{segmentId}, nil)
	})
	if err != nil {
		log.Errorf("failed to assign %s to segment %d: %v", userId, segmentId, err)
		return Member{}, err
	}
	return member, nil
}

func (s *ServiceImpl) RemoveMember(ctx context.Context, id int) error {
	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		before, err := repo.GetMember(ctx, id)
		if err != nil {
			return err
		}
		if err := s.appendEvent(ctx, repo, ActionMemberRemoved, before, nil, []int{before.SegmentId}, nil); err != nil {
			return err
		}
		deleted, err := repo.DeleteMember(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrMemberNotFound
		}
		return nil
	})
	if err != nil {
		log.Errorf("failed to remove member %d: %v", id, err)
		return err
	}
	return nil
}

func (s *ServiceImpl) Simulate(ctx context.Context, params SimulationParams) (SimulationResult, error) {
	weekStart, weekEnd := WeekBounds(s.clock.Now())
	var cycle *Cycle
	current, err := s.repo.FindCycleForWeek(ctx, weekStart, weekEnd)
	if err == nil {
		cycle = &current
	} else if !errors.Is(err, ErrCycleNotFound) {
		return SimulationResult{}, err
	}

	segments, err := s.repo.ListSegments(ctx)
	if err != nil {
		return SimulationResult{}, err
	}
	return Simulate(params, cycle, segments, s.defaults), nil
}

func (s *ServiceImpl) GetActualSpend(ctx context.Context) (ActualSpend, error) {
	weekStart, _ := WeekBounds(s.clock.Now())
	spend, err := s.repo.SumPayouts(ctx, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return ActualSpend{}, err
	}
	spend.WeekEnd = weekStart.AddDate(0, 0, 6)
	return spend, nil
}

func (s *ServiceImpl) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	return s.repo.ListEvents(ctx, limit)
}

func (s *ServiceImpl) appendEvent(
	ctx context.Context,
	repo Repository,
	action Action,
	before any,
	after any,
	impactedSegmentIds []int,
	estimatedImpactCents *int64,
) error {
	beforeJson, err := snapshot(before)
	if err != nil {
		return err
	}
	afterJson, err := snapshot(after)
	if err != nil {
		return err
	}
	performedBy, err := user.CurrentUid(ctx)
	if err != nil {
		log.Debugf("recording %s without an actor", action)
	}

	_, err = repo.AppendEvent(ctx, Event{
		Action:               action,
		Before:               beforeJson,
		After:                afterJson,
		ImpactedSegmentIds:   impactedSegmentIds,
		RollbackToken:        uuid.NewString(),
		EstimatedImpactCents: estimatedImpactCents,
		PerformedBy:          performedBy,
	})
	if err != nil {
		return fmt.Errorf("failed to append %s event: %w", action, err)
	}
	return nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}
	return b, nil
}
