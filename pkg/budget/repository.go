package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrCycleNotFound = errors.New("budget cycle not found")
var ErrSegmentNotFound = errors.New("budget segment not found")
var ErrSegmentCycleNotFound = errors.New("segment cycle not found")
var ErrMemberNotFound = errors.New("segment member not found")

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error

	// FindCycleForWeek returns the cycle whose week_start falls within [weekStart, weekEnd].
	FindCycleForWeek(ctx context.Context, weekStart, weekEnd time.Time) (Cycle, error)
	// InsertCycleIfAbsent inserts the cycle unless one already exists for its week_start, in which
	// case the existing row is returned and created is false.
	InsertCycleIfAbsent(ctx context.Context, cycle Cycle) (stored Cycle, created bool, err error)
	GetCycle(ctx context.Context, id int) (Cycle, error)
	UpdateCycle(ctx context.Context, cycle Cycle) (Cycle, error)

	ListSegments(ctx context.Context) ([]Segment, error)
	GetSegment(ctx context.Context, id int) (Segment, error)
	CreateSegment(ctx context.Context, segment Segment) (Segment, error)
	UpdateSegment(ctx context.Context, segment Segment) (Segment, error)
	// DeleteSegment removes the segment together with its segment cycles and memberships.
	DeleteSegment(ctx context.Context, id int) (bool, error)

	ListSegmentCycles(ctx context.Context, cycleId int) ([]SegmentCycle, error)
	GetSegmentCycle(ctx context.Context, id int) (SegmentCycle, error)
	// CreateSegmentCycles skips pairs that already exist and returns only the inserted rows.
	CreateSegmentCycles(ctx context.Context, segmentCycles []SegmentCycle) ([]SegmentCycle, error)
	UpdateSegmentCycle(ctx context.Context, segmentCycle SegmentCycle) (SegmentCycle, error)

	ListMembers(ctx context.Context, segmentId int) ([]Member, error)
	GetMember(ctx context.Context, id int) (Member, error)
	FindMember(ctx context.Context, userId string, segmentId int) (Member, error)
	// UpsertMember is idempotent on (userId, segmentId); an existing row keeps its assigned_at.
	UpsertMember(ctx context.Context, member Member) (Member, error)
	DeleteMember(ctx context.Context, id int) (bool, error)

	AppendEvent(ctx context.Context, event Event) (Event, error)
	ListEvents(ctx context.Context, limit int) ([]Event, error)

	SumPayouts(ctx context.Context, from, to time.Time) (ActualSpend, error)
}

type queryer interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

type RepositoryImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) getQueryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// forUpdate locks read rows when running inside a transaction.
func (r *RepositoryImpl) forUpdate() string {
	if r.tx != nil {
		return " FOR UPDATE"
	}
	return ""
}

func (r *RepositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	if err := fn(&RepositoryImpl{db: r.db, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const cycleColumns = `id, week_start, week_end, status, weekly_limit_cents, monthly_limit_cents, emergency_reserve_cents,
				per_clip_cap_cents, per_clipper_weekly_cap_cents, notes, approved_at, created`

func scanCycle(row pgx.Row) (Cycle, error) {
	var c Cycle
	err := row.Scan(
		&c.Id,
		&c.WeekStart,
		&c.WeekEnd,
		&c.Status,
		&c.WeeklyLimitCents,
		&c.MonthlyLimitCents,
		&c.EmergencyReserveCents,
		&c.PerClipCapCents,
		&c.PerClipperWeeklyCapCents,
		&c.Notes,
		&c.ApprovedAt,
		&c.Created,
	)
	return c, err
}

func (r *RepositoryImpl) FindCycleForWeek(ctx context.Context, weekStart, weekEnd time.Time) (Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM budget_cycle
				WHERE week_start >= $1 AND week_start <= $2 ORDER BY week_start LIMIT 1`
	c, err := scanCycle(r.getQueryer().QueryRow(ctx, query, weekStart, weekEnd))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cycle{}, ErrCycleNotFound
		}
		err := fmt.Errorf("could not find cycle: %w", err)
		log.Error(err)
		return Cycle{}, err
	}
	return c, nil
}

func (r *RepositoryImpl) InsertCycleIfAbsent(ctx context.Context, cycle Cycle) (Cycle, bool, error) {
	query := `INSERT INTO budget_cycle (week_start, week_end, status, notes)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (week_start) DO NOTHING
				RETURNING ` + cycleColumns
	stored, err := scanCycle(r.getQueryer().QueryRow(ctx, query, cycle.WeekStart, cycle.WeekEnd, cycle.Status, cycle.Notes))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		err := fmt.Errorf("could not insert cycle: %w", err)
		log.Error(err)
		return Cycle{}, false, err
	}
	// Another writer created the week's cycle first.
	existing, err := r.FindCycleForWeek(ctx, cycle.WeekStart, cycle.WeekStart)
	if err != nil {
		return Cycle{}, false, err
	}
	return existing, false, nil
}

func (r *RepositoryImpl) GetCycle(ctx context.Context, id int) (Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM budget_cycle WHERE id = $1` + r.forUpdate()
	c, err := scanCycle(r.getQueryer().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cycle{}, ErrCycleNotFound
		}
		return Cycle{}, fmt.Errorf("could not get cycle: %w", err)
	}
	return c, nil
}

func (r *RepositoryImpl) UpdateCycle(ctx context.Context, cycle Cycle) (Cycle, error) {
	query := `UPDATE budget_cycle SET
					status = $1,
					weekly_limit_cents = $2,
					monthly_limit_cents = $3,
					emergency_reserve_cents = $4,
					per_clip_cap_cents = $5,
					per_clipper_weekly_cap_cents = $6,
					notes = $7,
					approved_at = $8
				WHERE id = $9
				RETURNING ` + cycleColumns
	updated, err := scanCycle(r.getQueryer().QueryRow(ctx, query,
		cycle.Status,
		cycle.WeeklyLimitCents,
		cycle.MonthlyLimitCents,
		cycle.EmergencyReserveCents,
		cycle.PerClipCapCents,
		cycle.PerClipperWeeklyCapCents,
		cycle.Notes,
		cycle.ApprovedAt,
		cycle.Id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cycle{}, ErrCycleNotFound
		}
		err := fmt.Errorf("could not update cycle: %w", err)
		log.Error(err)
		return Cycle{}, err
	}
	return updated, nil
}

const segmentColumns = `id, name, description, rule, weekly_limit_cents, monthly_limit_cents, priority, throttle, is_active, created`

func scanSegment(row pgx.Row) (Segment, error) {
	var s Segment
	var rule, throttle []byte
	err := row.Scan(
		&s.Id,
		&s.Name,
		&s.Description,
		&rule,
		&s.WeeklyLimitCents,
		&s.MonthlyLimitCents,
		&s.Priority,
		&throttle,
		&s.IsActive,
		&s.Created,
	)
	if err != nil {
		return Segment{}, err
	}
	s.Rule = rawJSON(rule)
	s.Throttle = rawJSON(throttle)
	return s, nil
}

func (r *RepositoryImpl) ListSegments(ctx context.Context) ([]Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM budget_segment ORDER BY priority DESC, id`
	rows, err := r.getQueryer().Query(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not query segments: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		segments = append(segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return segments, nil
}

func (r *RepositoryImpl) GetSegment(ctx context.Context, id int) (Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM budget_segment WHERE id = $1` + r.forUpdate()
	s, err := scanSegment(r.getQueryer().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Segment{}, ErrSegmentNotFound
		}
		return Segment{}, fmt.Errorf("could not get segment: %w", err)
	}
	return s, nil
}

func (r *RepositoryImpl) CreateSegment(ctx context.Context, segment Segment) (Segment, error) {
	query := `INSERT INTO budget_segment (
					name,
					description,
					rule,
					weekly_limit_cents,
					monthly_limit_cents,
					priority,
					throttle,
					is_active
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING ` + segmentColumns
	created, err := scanSegment(r.getQueryer().QueryRow(ctx, query,
		segment.Name,
		segment.Description,
		nullableJSON(segment.Rule),
		segment.WeeklyLimitCents,
		segment.MonthlyLimitCents,
		segment.Priority,
		nullableJSON(segment.Throttle),
		segment.IsActive,
	))
	if err != nil {
		err := fmt.Errorf("could not create segment: %w", err)
		log.Error(err)
		return Segment{}, err
	}
	return created, nil
}

func (r *RepositoryImpl) UpdateSegment(ctx context.Context, segment Segment) (Segment, error) {
	query := `UPDATE budget_segment SET
					name = $1,
					description = $2,
					rule = $3,
					weekly_limit_cents = $4,
					monthly_limit_cents = $5,
					priority = $6,
					throttle = $7,
					is_active = $8
				WHERE id = $9
				RETURNING ` + segmentColumns
	updated, err := scanSegment(r.getQueryer().QueryRow(ctx, query,
		segment.Name,
		segment.Description,
		nullableJSON(segment.Rule),
		segment.WeeklyLimitCents,
		segment.MonthlyLimitCents,
		segment.Priority,
		nullableJSON(segment.Throttle),
		segment.IsActive,
		segment.Id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Segment{}, ErrSegmentNotFound
		}
		err := fmt.Errorf("could not update segment: %w", err)
		log.Error(err)
		return Segment{}, err
	}
	return updated, nil
}

func (r *RepositoryImpl) DeleteSegment(ctx context.Context, id int) (bool, error) {
	q := r.getQueryer()
	if _, err := q.Exec(ctx, `DELETE FROM segment_cycle WHERE segment_id = $1`, id); err != nil {
		err := fmt.Errorf("could not delete segment cycles: %w", err)
		log.Error(err)
		return false, err
	}
	if _, err := q.Exec(ctx, `DELETE FROM segment_member WHERE segment_id = $1`, id); err != nil {
		err := fmt.Errorf("could not delete segment members: %w", err)
		log.Error(err)
		return false, err
	}
	result, err := q.Exec(ctx, `DELETE FROM budget_segment WHERE id = $1`, id)
	if err != nil {
		err := fmt.Errorf("could not delete segment: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

const segmentCycleColumns = `id, segment_id, cycle_id, spent_cents, projected_cents, remaining_cents, status, approved_at`

func scanSegmentCycle(row pgx.Row) (SegmentCycle, error) {
	var sc SegmentCycle
	err := row.Scan(
		&sc.Id,
		&sc.SegmentId,
		&sc.CycleId,
		&sc.SpentCents,
		&sc.ProjectedCents,
		&sc.RemainingCents,
		&sc.Status,
		&sc.ApprovedAt,
	)
	return sc, err
}

func (r *RepositoryImpl) ListSegmentCycles(ctx context.Context, cycleId int) ([]SegmentCycle, error) {
	query := `SELECT ` + segmentCycleColumns + ` FROM segment_cycle WHERE cycle_id = $1 ORDER BY segment_id`
	rows, err := r.getQueryer().Query(ctx, query, cycleId)
	if err != nil {
		err := fmt.Errorf("could not query segment cycles: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var segmentCycles []SegmentCycle
	for rows.Next() {
		sc, err := scanSegmentCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		segmentCycles = append(segmentCycles, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return segmentCycles, nil
}

func (r *RepositoryImpl) GetSegmentCycle(ctx context.Context, id int) (SegmentCycle, error) {
	query := `SELECT ` + segmentCycleColumns + ` FROM segment_cycle WHERE id = $1` + r.forUpdate()
	sc, err := scanSegmentCycle(r.getQueryer().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SegmentCycle{}, ErrSegmentCycleNotFound
		}
		return SegmentCycle{}, fmt.Errorf("could not get segment cycle: %w", err)
	}
	return sc, nil
}

func (r *RepositoryImpl) CreateSegmentCycles(ctx context.Context, segmentCycles []SegmentCycle) ([]SegmentCycle, error) {
	if len(segmentCycles) == 0 {
		return nil, nil
	}

	query := `INSERT INTO segment_cycle (segment_id, cycle_id, spent_cents, projected_cents, remaining_cents, status)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (segment_id, cycle_id) DO NOTHING
				RETURNING ` + segmentCycleColumns
	var created []SegmentCycle
	for _, sc := range segmentCycles {
		stored, err := scanSegmentCycle(r.getQueryer().QueryRow(ctx, query,
			sc.SegmentId,
			sc.CycleId,
			sc.SpentCents,
			sc.ProjectedCents,
			sc.RemainingCents,
			sc.Status,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				log.Debugf("segment cycle for segment %d and cycle %d already exists", sc.SegmentId, sc.CycleId)
				continue
			}
			err := fmt.Errorf("could not create segment cycle: %w", err)
			log.Error(err)
			return nil, err
		}
		created = append(created, stored)
	}
	return created, nil
}

func (r *RepositoryImpl) UpdateSegmentCycle(ctx context.Context, sc SegmentCycle) (SegmentCycle, error) {
	query := `UPDATE segment_cycle SET
					spent_cents = $1,
					projected_cents = $2,
					remaining_cents = $3,
					status = $4,
					approved_at = $5
				WHERE id = $6
				RETURNING ` + segmentCycleColumns
	updated, err := scanSegmentCycle(r.getQueryer().QueryRow(ctx, query,
		sc.SpentCents,
		sc.ProjectedCents,
		sc.RemainingCents,
		sc.Status,
		sc.ApprovedAt,
		sc.Id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SegmentCycle{}, ErrSegmentCycleNotFound
		}
		err := fmt.Errorf("could not update segment cycle: %w", err)
		log.Error(err)
		return SegmentCycle{}, err
	}
	return updated, nil
}

const memberColumns = `id, user_id, segment_id, assigned_at`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.Id, &m.UserId, &m.SegmentId, &m.AssignedAt)
	return m, err
}

func (r *RepositoryImpl) ListMembers(ctx context.Context, segmentId int) ([]Member, error) {
	query := `SELECT ` + memberColumns + ` FROM segment_member WHERE segment_id = $1 ORDER BY assigned_at, id`
	rows, err := r.getQueryer().Query(ctx, query, segmentId)
	if err != nil {
		err := fmt.Errorf("could not query members: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return members, nil
}

func (r *RepositoryImpl) GetMember(ctx context.Context, id int) (Member, error) {
	query := `SELECT ` + memberColumns + ` FROM segment_member WHERE id = $1` + r.forUpdate()
	m, err := scanMember(r.getQueryer().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrMemberNotFound
		}
		return Member{}, fmt.Errorf("could not get member: %w", err)
	}
	return m, nil
}

func (r *RepositoryImpl) FindMember(ctx context.Context, userId string, segmentId int) (Member, error) {
	query := `SELECT ` + memberColumns + ` FROM segment_member WHERE user_id = $1 AND segment_id = $2` + r.forUpdate()
	m, err := scanMember(r.getQueryer().QueryRow(ctx, query, userId, segmentId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrMemberNotFound
		}
		return Member{}, fmt.Errorf("could not find member: %w", err)
	}
	return m, nil
}

func (r *RepositoryImpl) UpsertMember(ctx context.Context, member Member) (Member, error) {
	query := `INSERT INTO segment_member (user_id, segment_id, assigned_at) VALUES ($1, $2, $3)
				ON CONFLICT (user_id, segment_id) DO UPDATE SET assigned_at = segment_member.assigned_at
				RETURNING ` + memberColumns
	m, err := scanMember(r.getQueryer().QueryRow(ctx, query, member.UserId, member.SegmentId, member.AssignedAt))
	if err != nil {
		err := fmt.Errorf("could not upsert member: %w", err)
		log.Error(err)
		return Member{}, err
	}
	return m, nil
}

func (r *RepositoryImpl) DeleteMember(ctx context.Context, id int) (bool, error) {
	result, err := r.getQueryer().Exec(ctx, `DELETE FROM segment_member WHERE id = $1`, id)
	if err != nil {
		err := fmt.Errorf("could not delete member: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

const eventColumns = `id, action, before_state, after_state, impacted_segment_ids, rollback_token, estimated_impact_cents,
				performed_by, created`

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	var before, after []byte
	err := row.Scan(
		&e.Id,
		&e.Action,
		&before,
		&after,
		&e.ImpactedSegmentIds,
		&e.RollbackToken,
		&e.EstimatedImpactCents,
		&e.PerformedBy,
		&e.Created,
	)
	if err != nil {
		return Event{}, err
	}
	e.Before = rawJSON(before)
	e.After = rawJSON(after)
	return e, nil
}

func (r *RepositoryImpl) AppendEvent(ctx context.Context, event Event) (Event, error) {
	impacted := event.ImpactedSegmentIds
	if impacted == nil {
		impacted = []int{}
	}
	query := `INSERT INTO budget_event (
					action,
					before_state,
					after_state,
					impacted_segment_ids,
					rollback_token,
					estimated_impact_cents,
					performed_by
				) VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING ` + eventColumns
	stored, err := scanEvent(r.getQueryer().QueryRow(ctx, query,
		event.Action,
		nullableJSON(event.Before),
		nullableJSON(event.After),
		impacted,
		event.RollbackToken,
		event.EstimatedImpactCents,
		event.PerformedBy,
	))
	if err != nil {
		err := fmt.Errorf("could not append budget event: %w", err)
		log.Error(err)
		return Event{}, err
	}
	return stored, nil
}

func (r *RepositoryImpl) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM budget_event ORDER BY created DESC, id DESC LIMIT $1`
	rows, err := r.getQueryer().Query(ctx, query, limit)
	if err != nil {
		err := fmt.Errorf("could not query budget events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return events, nil
}

func (r *RepositoryImpl) SumPayouts(ctx context.Context, from, to time.Time) (ActualSpend, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0), COUNT(*), COUNT(DISTINCT user_id)
				FROM clipper_payout WHERE paid_at >= $1 AND paid_at < $2`
	spend := ActualSpend{WeekStart: from, WeekEnd: to}
	err := r.getQueryer().QueryRow(ctx, query, from, to).Scan(&spend.TotalCents, &spend.PayoutCount, &spend.ClipperCount)
	if err != nil {
		err := fmt.Errorf("could not sum payouts: %w", err)
		log.Error(err)
		return ActualSpend{}, err
	}
	return spend, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
