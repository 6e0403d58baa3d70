package budget

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type stubState struct {
	cycles        map[int]Cycle
	segments      map[int]Segment
	segmentCycles map[int]SegmentCycle
	members       map[int]Member
	events        []Event
	payouts       []stubPayout
	nextId        int
}

type stubPayout struct {
	userId      string
	amountCents int64
	paidAt      time.Time
}

func (s stubState) clone() stubState {
	c := stubState{
		cycles:        make(map[int]Cycle, len(s.cycles)),
		segments:      make(map[int]Segment, len(s.segments)),
		segmentCycles: make(map[int]SegmentCycle, len(s.segmentCycles)),
		members:       make(map[int]Member, len(s.members)),
		events:        append([]Event(nil), s.events...),
		payouts:       append([]stubPayout(nil), s.payouts...),
		nextId:        s.nextId,
	}
	for k, v := range s.cycles {
		c.cycles[k] = v
	}
	for k, v := range s.segments {
		c.segments[k] = v
	}
	for k, v := range s.segmentCycles {
		c.segmentCycles[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	return c
}

type RepositoryStub struct {
	mu             sync.RWMutex
	state          stubState
	now            func() time.Time
	transactionErr error
	// appendEventErr makes AppendEvent fail, to exercise rollback of the surrounding mutation.
	appendEventErr error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		state: stubState{
			cycles:        make(map[int]Cycle),
			segments:      make(map[int]Segment),
			segmentCycles: make(map[int]SegmentCycle),
			members:       make(map[int]Member),
			nextId:        1,
		},
		now: func() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC) },
	}
}

func (r *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	r.mu.Lock()
	original := r.state.clone()
	r.mu.Unlock()

	err := fn(r)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil || r.transactionErr != nil {
		r.state = original
		if err != nil {
			return err
		}
		return r.transactionErr
	}
	return nil
}

func (r *RepositoryStub) id() int {
	id := r.state.nextId
	r.state.nextId++
	return id
}

func (r *RepositoryStub) FindCycleForWeek(ctx context.Context, weekStart, weekEnd time.Time) (Cycle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.state.cycles {
		if !c.WeekStart.Before(weekStart) && !c.WeekStart.After(weekEnd) {
			return c, nil
		}
	}
	return Cycle{}, ErrCycleNotFound
}

func (r *RepositoryStub) InsertCycleIfAbsent(ctx context.Context, cycle Cycle) (Cycle, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.state.cycles {
		if c.WeekStart.Equal(cycle.WeekStart) {
			return c, false, nil
		}
	}
	cycle.Id = r.id()
	cycle.Created = r.now()
	r.state.cycles[cycle.Id] = cycle
	return cycle, true, nil
}

func (r *RepositoryStub) GetCycle(ctx context.Context, id int) (Cycle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.state.cycles[id]
	if !ok {
		return Cycle{}, ErrCycleNotFound
	}
	return c, nil
}

func (r *RepositoryStub) UpdateCycle(ctx context.Context, cycle Cycle) (Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.cycles[cycle.Id]; !ok {
		return Cycle{}, ErrCycleNotFound
	}
	r.state.cycles[cycle.Id] = cycle
	return cycle, nil
}

func (r *RepositoryStub) ListSegments(ctx context.Context) ([]Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Segment
	for _, s := range r.state.segments {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].Id < result[j].Id
	})
	return result, nil
}

func (r *RepositoryStub) GetSegment(ctx context.Context, id int) (Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.state.segments[id]
	if !ok {
		return Segment{}, ErrSegmentNotFound
	}
	return s, nil
}

func (r *RepositoryStub) CreateSegment(ctx context.Context, segment Segment) (Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	segment.Id = r.id()
	segment.Created = r.now()
	r.state.segments[segment.Id] = segment
	return segment, nil
}

func (r *RepositoryStub) UpdateSegment(ctx context.Context, segment Segment) (Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.segments[segment.Id]; !ok {
		return Segment{}, ErrSegmentNotFound
	}
	r.state.segments[segment.Id] = segment
	return segment, nil
}

func (r *RepositoryStub) DeleteSegment(ctx context.Context, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for scId, sc := range r.state.segmentCycles {
		if sc.SegmentId == id {
			delete(r.state.segmentCycles, scId)
		}
	}
	for mId, m := range r.state.members {
		if m.SegmentId == id {
			delete(r.state.members, mId)
		}
	}
	if _, ok := r.state.segments[id]; !ok {
		return false, nil
	}
	delete(r.state.segments, id)
	return true, nil
}

func (r *RepositoryStub) ListSegmentCycles(ctx context.Context, cycleId int) ([]SegmentCycle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []SegmentCycle
	for _, sc := range r.state.segmentCycles {
		if sc.CycleId == cycleId {
			result = append(result, sc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SegmentId < result[j].SegmentId })
	return result, nil
}

func (r *RepositoryStub) GetSegmentCycle(ctx context.Context, id int) (SegmentCycle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.state.segmentCycles[id]
	if !ok {
		return SegmentCycle{}, ErrSegmentCycleNotFound
	}
	return sc, nil
}

func (r *RepositoryStub) CreateSegmentCycles(ctx context.Context, segmentCycles []SegmentCycle) ([]SegmentCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var created []SegmentCycle
outer:
	for _, sc := range segmentCycles {
		for _, existing := range r.state.segmentCycles {
			if existing.SegmentId == sc.SegmentId && existing.CycleId == sc.CycleId {
				continue outer
			}
		}
		sc.Id = r.id()
		r.state.segmentCycles[sc.Id] = sc
		created = append(created, sc)
	}
	return created, nil
}

func (r *RepositoryStub) UpdateSegmentCycle(ctx context.Context, segmentCycle SegmentCycle) (SegmentCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.segmentCycles[segmentCycle.Id]; !ok {
		return SegmentCycle{}, ErrSegmentCycleNotFound
	}
	r.state.segmentCycles[segmentCycle.Id] = segmentCycle
	return segmentCycle, nil
}

func (r *RepositoryStub) ListMembers(ctx context.Context, segmentId int) ([]Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Member
	for _, m := range r.state.members {
		if m.SegmentId == segmentId {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}

func (r *RepositoryStub) GetMember(ctx context.Context, id int) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.state.members[id]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return m, nil
}

func (r *RepositoryStub) FindMember(ctx context.Context, userId string, segmentId int) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.state.members {
		if m.UserId == userId && m.SegmentId == segmentId {
			return m, nil
		}
	}
	return Member{}, ErrMemberNotFound
}

func (r *RepositoryStub) UpsertMember(ctx context.Context, member Member) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.state.members {
		if m.UserId == member.UserId && m.SegmentId == member.SegmentId {
			return m, nil
		}
	}
	member.Id = r.id()
	r.state.members[member.Id] = member
	return member, nil
}

func (r *RepositoryStub) DeleteMember(ctx context.Context, id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.members[id]; !ok {
		return false, nil
	}
	delete(r.state.members, id)
	return true, nil
}

func (r *RepositoryStub) AppendEvent(ctx context.Context, event Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendEventErr != nil {
		return Event{}, r.appendEventErr
	}
	for _, e := range r.state.events {
		if e.RollbackToken == event.RollbackToken {
			return Event{}, errors.New("duplicate rollback token")
		}
	}
	event.Id = r.id()
	event.Created = r.now()
	if event.ImpactedSegmentIds == nil {
		event.ImpactedSegmentIds = []int{}
	}
	r.state.events = append(r.state.events, event)
	return event, nil
}

func (r *RepositoryStub) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Event
	for i := len(r.state.events) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, r.state.events[i])
	}
	return result, nil
}

func (r *RepositoryStub) SumPayouts(ctx context.Context, from, to time.Time) (ActualSpend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spend := ActualSpend{WeekStart: from, WeekEnd: to}
	clippers := make(map[string]struct{})
	for _, p := range r.state.payouts {
		if p.paidAt.Before(from) || !p.paidAt.Before(to) {
			continue
		}
		spend.TotalCents += p.amountCents
		spend.PayoutCount++
		clippers[p.userId] = struct{}{}
	}
	spend.ClipperCount = len(clippers)
	return spend, nil
}

// Helper method to record a payout (for actual spend tests)
func (r *RepositoryStub) AddPayout(userId string, amountCents int64, paidAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.payouts = append(r.state.payouts, stubPayout{userId: userId, amountCents: amountCents, paidAt: paidAt})
}

// Helper method to get all events in append order (useful for test assertions)
func (r *RepositoryStub) AllEvents() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Event(nil), r.state.events...)
}

// Helper method to make event appends fail (for testing transaction rollback)
func (r *RepositoryStub) SetAppendEventError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendEventErr = err
}

// Helper method to set transaction error (for testing transaction rollback)
func (r *RepositoryStub) SetTransactionError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactionErr = err
}
