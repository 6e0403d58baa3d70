package budget

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/clipperhq/growthcore/internal/rest"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type CycleDTO struct {
	Id                       int        `json:"id"`
	WeekStart                string     `json:"weekStart"`
	WeekEnd                  string     `json:"weekEnd"`
	Status                   string     `json:"status"`
	WeeklyLimitCents         *int64     `json:"weeklyLimitCents"`
	MonthlyLimitCents        *int64     `json:"monthlyLimitCents"`
	EmergencyReserveCents    *int64     `json:"emergencyReserveCents"`
	PerClipCapCents          *int64     `json:"perClipCapCents"`
	PerClipperWeeklyCapCents *int64     `json:"perClipperWeeklyCapCents"`
	Notes                    string     `json:"notes"`
	ApprovedAt               *time.Time `json:"approvedAt"`
}

type CycleLimitsDTO struct {
	WeeklyLimitCents         *int64  `json:"weeklyLimitCents"`
	MonthlyLimitCents        *int64  `json:"monthlyLimitCents"`
	EmergencyReserveCents    *int64  `json:"emergencyReserveCents"`
	PerClipCapCents          *int64  `json:"perClipCapCents"`
	PerClipperWeeklyCapCents *int64  `json:"perClipperWeeklyCapCents"`
	Notes                    *string `json:"notes"`
}

type StatusDTO struct {
	Status string `json:"status"`
}

type SegmentDTO struct {
	Id                int             `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Rule              json.RawMessage `json:"rule,omitempty"`
	WeeklyLimitCents  *int64          `json:"weeklyLimitCents"`
	MonthlyLimitCents *int64          `json:"monthlyLimitCents"`
	Priority          int             `json:"priority"`
	Throttle          json.RawMessage `json:"throttle,omitempty"`
	IsActive          bool            `json:"isActive"`
}

type SegmentUpdateDTO struct {
	Name              *string         `json:"name"`
	Description       *string         `json:"description"`
	Rule              json.RawMessage `json:"rule"`
	WeeklyLimitCents  *int64          `json:"weeklyLimitCents"`
	MonthlyLimitCents *int64          `json:"monthlyLimitCents"`
	Priority          *int            `json:"priority"`
	Throttle          json.RawMessage `json:"throttle"`
	IsActive          *bool           `json:"isActive"`
}

type SegmentCycleDTO struct {
	Id             int        `json:"id"`
	SegmentId      int        `json:"segmentId"`
	CycleId        int        `json:"cycleId"`
	SpentCents     int64      `json:"spentCents"`
	ProjectedCents int64      `json:"projectedCents"`
	RemainingCents int64      `json:"remainingCents"`
	Status         string     `json:"status"`
	ApprovedAt     *time.Time `json:"approvedAt"`
}

type MemberDTO struct {
	Id          int       `json:"id"`
	UserId      string    `json:"userId"`
	SegmentId   int       `json:"segmentId"`
	DisplayName string    `json:"displayName,omitempty"`
	AssignedAt  time.Time `json:"assignedAt"`
}

type EventDTO struct {
	Id                   int             `json:"id"`
	Action               string          `json:"action"`
	Before               json.RawMessage `json:"before"`
	After                json.RawMessage `json:"after"`
	ImpactedSegmentIds   []int           `json:"impactedSegmentIds"`
	RollbackToken        string          `json:"rollbackToken"`
	EstimatedImpactCents *int64          `json:"estimatedImpactCents"`
	PerformedBy          string          `json:"performedBy"`
	Created              time.Time       `json:"created"`
}

type SimulationRequestDTO struct {
	RPM              float64  `json:"rpm"`
	WeeklyLimitCents *int64   `json:"weeklyLimitCents"`
	BonusRateChange  *float64 `json:"bonusRateChange"`
	SegmentId        *int     `json:"segmentId"`
}

type SegmentProjectionDTO struct {
	SegmentId        int    `json:"segmentId"`
	Name             string `json:"name"`
	Share            string `json:"share"`
	Clips            int64  `json:"clips"`
	SpendCents       int64  `json:"spendCents"`
	WeeklyLimitCents int64  `json:"weeklyLimitCents"`
	Capped           bool   `json:"capped"`
}

type SimulationDTO struct {
	RPM                   string                 `json:"rpm"`
	WeeklyLimitCents      int64                  `json:"weeklyLimitCents"`
	WeeklyLimit           string                 `json:"weeklyLimit"`
	MaxViews              int64                  `json:"maxViews"`
	AvgPayoutPerClipCents int64                  `json:"avgPayoutPerClipCents"`
	TotalClips            int64                  `json:"totalClips"`
	BonusRateChange       *float64               `json:"bonusRateChange"`
	Day7SpendCents        int64                  `json:"day7SpendCents"`
	Day30SpendCents       int64                  `json:"day30SpendCents"`
	WorstCaseCents        int64                  `json:"worstCaseCents"`
	RiskAdjustedCents     int64                  `json:"riskAdjustedCents"`
	SafeLimitCents        int64                  `json:"safeLimitCents"`
	Distribution          []SegmentProjectionDTO `json:"distribution"`
	Actual                *ActualSpendDTO        `json:"actual,omitempty"`
}

type ActualSpendDTO struct {
	WeekStart    string `json:"weekStart"`
	WeekEnd      string `json:"weekEnd"`
	TotalCents   int64  `json:"totalCents"`
	Total        string `json:"total"`
	PayoutCount  int    `json:"payoutCount"`
	ClipperCount int    `json:"clipperCount"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetCurrentCycle godoc
// @Summary Get the current budget cycle
// @Description Returns this week's cycle, creating it in pending approval state if it does not exist yet
// @Tags Budget
// @Produce json
// @Success 200 {object} CycleDTO
// @Router /api/budget/cycle/current [get]
// @Security XUserId
func (h *Handler) GetCurrentCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.service.GetCurrentCycle(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJson(w, http.StatusOK, cycleToDTO(cycle))
}

// UpdateCycleStatus godoc
// @Summary Change the status of the current cycle
// @Tags Budget
// @Accept json
// @Produce json
// @Param status body StatusDTO true "New status"
// @Success 200 {object} CycleDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid status"
// @Router /api/budget/cycle/current/status [put]
// @Security XUserId
func (h *Handler) UpdateCycleStatus(w http.ResponseWriter, r *http.Request) {
	var statusDTO StatusDTO
	if err := json.NewDecoder(r.Body).Decode(&statusDTO); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	cycle, err := h.service.UpdateCycleStatus(r.Context(), Status(statusDTO.Status))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJson(w, http.StatusOK, cycleToDTO(cycle))
}

// UpdateCycleLimits godoc
// @Summary Partially update limits of the current cycle
// @Description Only the provided fields are changed
// @Tags Budget
// @Accept json
// @Produce json
// @Param limits body CycleLimitsDTO true "Limits to change"
// @Success 200 {object} CycleDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/budget/cycle/current/limits [patch]
// @Security XUserId
func (h *Handler) UpdateCycleLimits(w http.ResponseWriter, r *http.Request) {
	var limitsDTO CycleLimitsDTO
	if err := json.NewDecoder(r.Body).Decode(&limitsDTO); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	for _, v := range []*int64{
		limitsDTO.WeeklyLimitCents,
		limitsDTO.MonthlyLimitCents,
		limitsDTO.EmergencyReserveCents,
		limitsDTO.PerClipCapCents,
		limitsDTO.PerClipperWeeklyCapCents,
	} {
		if v != nil && *v < 0 {
			rest.WriteError(w, http.StatusBadRequest, "Limits must not be negative", "")
			return
		}
	}
	cycle, err := h.service.UpdateCycleLimits(r.Context(), CycleLimits{
		WeeklyLimitCents:         limitsDTO.WeeklyLimitCents,
		MonthlyLimitCents:        limitsDTO.MonthlyLimitCents,
		EmergencyReserveCents:    limitsDTO.EmergencyReserveCents,
		PerClipCapCents:          limitsDTO.PerClipCapCents,
		PerClipperWeeklyCapCents: limitsDTO.PerClipperWeeklyCapCents,
		Notes:                    limitsDTO.Notes,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJson(w, http.StatusOK, cycleToDTO(cycle))
}

// ListCurrentSegmentCycles godoc
// @Summary List segment allocations of the current cycle
// @Tags Budget
// @Produce json
// @Success 200 {array} SegmentCycleDTO
// @Router /api/budget/cycle/current/segments [get]
// @Security XUserId
func (h *Handler) ListCurrentSegmentCycles(w http.ResponseWriter, r *http.Request) {
	segmentCycles, err := h.service.ListCurrentSegmentCycles(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	dtos := make([]SegmentCycleDTO, 0, len(segmentCycles))
	for _, sc := range segmentCycles {
		dtos = append(dtos, segmentCycleToDTO(sc))
	}
	writeJson(w, http.StatusOK, dtos)
}

// UpdateSegmentCycleStatus godoc
// @Summary Change the approval status of one segment within the current cycle
// @Tags Budget
// @Accept json
// @Produce json
// @Param id path int true "Segment cycle ID"
// @Param status body StatusDTO true "New status"
// @Success 200 {object} SegmentCycleDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 404 {string} string "Segment cycle not found"
// @Router /api/budget/segment-cycle/{id}/status [put]
// @Security XUserId
func (h *Handler) UpdateSegmentCycleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	var statusDTO StatusDTO
	if err := json.NewDecoder(r.Body).Decode(&statusDTO); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	sc, err := h.service.UpdateSegmentCycleStatus(r.Context(), id, Status(statusDTO.Status))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJson(w, http.StatusOK, segmentCycleToDTO(sc))
}

// ListSegments godoc
// @Summary List all budget segments
// @Tags Budget
// @Produce json
// @Success 200 {array} SegmentDTO
// @Router /api/budget/segment [get]
// @Security XUserId
func (h *Handler) ListSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := h.service.ListSegments(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	dtos := make([]SegmentDTO, 0, len(segments))
	for _, s := range segments {
		dtos = append(dtos, segmentToDTO(s))
	}
	writeJson(w, http.StatusOK, dtos)
}

// CreateSegment godoc
// @Summary Create a budget segment
// @Description Seeds the segment's allocation in the current cycle if one exists
// @Tags Budget
// @Accept json
// @Produce json
// @Param segment body SegmentUpdateDTO true "Segment, active unless isActive is false"
// @Success 201 {object} SegmentDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/budget/segment [post]
// @Security XUserId
func (h *Handler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	var segmentDTO SegmentUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&segmentDTO); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	created, err := h.service.CreateSegment(r.Context(), segmentFromDTO(segmentDTO))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJson(w, http.StatusCreated, segmentToDTO(created))
}

// UpdateSegment godoc
// @Summary Partially update a budget segment
// @Tags Budget
// @Accept json
// @Produce json
// @Param id path int true "Segment ID"
// @Param segment body SegmentUpdateDTO true "Fields to change"
// @Success 200 {object} SegmentDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 404 {string} string "Segment not found"
// @Router /api/budget/segment/{id} [put]
// @Security XUserId
func (h *Handler) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	var updateDTO SegmentUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&updateDTO); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	updated, err := h.service.UpdateSegment(r.Context(), id, SegmentUpdate{
		Name:              updateDTO.Name,
		Description:       updateDTO.Description,
		Rule:              updateDTO.Rule,
		WeeklyLimitCents:  updateDTO.WeeklyLimitCents,
		MonthlyLimitCents: updateDTO.MonthlyLimitCents,
		Priority:          updateDTO.Priority,
		Throttle:          updateDTO.Throttle,
		IsActive:          updateDTO.IsActive,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJson(w, http.StatusOK, segmentToDTO(updated))
}

// DeleteSegment godoc
// @Summary Delete a budget segment
// @Description Also removes the segment's allocations and memberships
// @Tags Budget
// @Param id path int true "Segment ID"
// @Success 204
// @Failure 404 {string} string "Segment not found"
// @Router /api/budget/segment/{id} [delete]
// @Security XUserId
func (h *Handler) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSegment(r.Context(), id); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers godoc
// @Summary List members of a segment
// @Tags Budget
// @Produce json
// @Param id path int true "Segment ID"
// @Success 200 {array} MemberDTO
// @Failure 404 {string} string "Segment not found"
// @Router /api/budget/segment/{id}/member [get]
// @Security XUserId
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	members, err := h.service.ListMembers(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	dtos := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, memberToDTO(m))
	}
	writeJson(w, http.StatusOK, dtos)
}

// AssignMember godoc
// @Summary Assign a user to a segment
// @Description Assigning an already assigned user returns the existing membership
// @Tags Budget
// @Accept json
// @Produce json
// @Param id path int true "Segment ID"
// @Param member body object{userId=string} true "User to assign"
// @Success 200 {object} MemberDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 404 {string} string "Segment not found"
// @Router /api/budget/segment/{id}/member [post]
// @Security XUserId
func (h *Handler) AssignMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	var memberDTO struct {
		UserId string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&memberDTO); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	member, err := h.service.AssignMember(r.Context(), id, memberDTO.UserId)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJson(w, http.StatusOK, memberToDTO(member))
}

// RemoveMember godoc
// @Summary Remove a segment membership
// @Tags Budget
// @Param id path int true "Membership ID"
// @Success 204
// @Failure 404 {string} string "Member not found"
// @Router /api/budget/member/{id} [delete]
// @Security XUserId
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveMember(r.Context(), id); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Simulate godoc
// @Summary Project spend for a hypothetical rate and weekly limit
// @Description Nothing is persisted. Actual payouts of the current week are returned alongside the projection.
// @Tags Budget
// @Accept json
// @Produce json
// @Param params body SimulationRequestDTO true "Simulation parameters"
// @Success 200 {object} SimulationDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/budget/simulate [post]
// @Security XUserId
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var paramsDTO SimulationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&paramsDTO); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	if paramsDTO.RPM < 0 {
		rest.WriteError(w, http.StatusBadRequest, "rpm must not be negative", "")
		return
	}
	result, err := h.service.Simulate(r.Context(), SimulationParams{
		RPM:              paramsDTO.RPM,
		WeeklyLimitCents: paramsDTO.WeeklyLimitCents,
		BonusRateChange:  paramsDTO.BonusRateChange,
		SegmentId:        paramsDTO.SegmentId,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	dto := simulationToDTO(result)

	actual, err := h.service.GetActualSpend(r.Context())
	if err != nil {
		// The projection is still useful without the actual figure.
		log.Warnf("failed to get actual spend for simulation: %v", err)
	} else {
		actualDTO := actualSpendToDTO(actual)
		dto.Actual = &actualDTO
	}
	writeJson(w, http.StatusOK, dto)
}

// GetActualSpend godoc
// @Summary Sum of clipper payouts made in the current week
// @Tags Budget
// @Produce json
// @Success 200 {object} ActualSpendDTO
// @Router /api/budget/spend/actual [get]
// @Security XUserId
func (h *Handler) GetActualSpend(w http.ResponseWriter, r *http.Request) {
	actual, err := h.service.GetActualSpend(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJson(w, http.StatusOK, actualSpendToDTO(actual))
}

// ListEvents godoc
// @Summary List the most recent budget events
// @Tags Budget
// @Produce json
// @Param limit query int false "Maximum number of events (default 50)"
// @Success 200 {array} EventDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid limit"
// @Router /api/budget/event [get]
// @Security XUserId
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitString := r.URL.Query().Get("limit"); limitString != "" {
		parsed, err := strconv.Atoi(limitString)
		if err != nil || parsed < 0 {
			rest.WriteError(w, http.StatusBadRequest, "Invalid limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	events, err := h.service.ListEvents(r.Context(), limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventToDTO(e))
	}
	writeJson(w, http.StatusOK, dtos)
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidSegment):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, ErrCycleNotFound),
		errors.Is(err, ErrSegmentNotFound),
		errors.Is(err, ErrSegmentCycleNotFound),
		errors.Is(err, ErrMemberNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func pathId(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid id", "id must be an integer")
		return 0, false
	}
	return id, true
}

func writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func cycleToDTO(c Cycle) CycleDTO {
	return CycleDTO{
		Id:                       c.Id,
		WeekStart:                c.WeekStart.Format(time.DateOnly),
		WeekEnd:                  c.WeekEnd.Format(time.DateOnly),
		Status:                   string(c.Status),
		WeeklyLimitCents:         c.WeeklyLimitCents,
		MonthlyLimitCents:        c.MonthlyLimitCents,
		EmergencyReserveCents:    c.EmergencyReserveCents,
		PerClipCapCents:          c.PerClipCapCents,
		PerClipperWeeklyCapCents: c.PerClipperWeeklyCapCents,
		Notes:                    c.Notes,
		ApprovedAt:               c.ApprovedAt,
	}
}

func segmentToDTO(s Segment) SegmentDTO {
	return SegmentDTO{
		Id:                s.Id,
		Name:              s.Name,
		Description:       s.Description,
		Rule:              s.Rule,
		WeeklyLimitCents:  s.WeeklyLimitCents,
		MonthlyLimitCents: s.MonthlyLimitCents,
		Priority:          s.Priority,
		Throttle:          s.Throttle,
		IsActive:          s.IsActive,
	}
}

func segmentFromDTO(dto SegmentUpdateDTO) Segment {
	segment := SegmentUpdate{
		Name:              dto.Name,
		Description:       dto.Description,
		Rule:              dto.Rule,
		WeeklyLimitCents:  dto.WeeklyLimitCents,
		MonthlyLimitCents: dto.MonthlyLimitCents,
		Priority:          dto.Priority,
		Throttle:          dto.Throttle,
		IsActive:          dto.IsActive,
	}.apply(Segment{IsActive: true})
	return segment
}

func segmentCycleToDTO(sc SegmentCycle) SegmentCycleDTO {
	return SegmentCycleDTO{
		Id:             sc.Id,
		SegmentId:      sc.SegmentId,
		CycleId:        sc.CycleId,
		SpentCents:     sc.SpentCents,
		ProjectedCents: sc.ProjectedCents,
		RemainingCents: sc.RemainingCents,
		Status:         string(sc.Status),
		ApprovedAt:     sc.ApprovedAt,
	}
}

func memberToDTO(m Member) MemberDTO {
	return MemberDTO{
		Id:          m.Id,
		UserId:      m.UserId,
		SegmentId:   m.SegmentId,
		DisplayName: m.DisplayName,
		AssignedAt:  m.AssignedAt,
	}
}

func eventToDTO(e Event) EventDTO {
	return EventDTO{
		Id:                   e.Id,
		Action:               string(e.Action),
		Before:               e.Before,
		After:                e.After,
		ImpactedSegmentIds:   e.ImpactedSegmentIds,
		RollbackToken:        e.RollbackToken,
		EstimatedImpactCents: e.EstimatedImpactCents,
		PerformedBy:          e.PerformedBy,
		Created:              e.Created,
	}
}

func simulationToDTO(result SimulationResult) SimulationDTO {
	distribution := make([]SegmentProjectionDTO, 0, len(result.Distribution))
	for _, p := range result.Distribution {
		distribution = append(distribution, SegmentProjectionDTO{
			SegmentId:        p.SegmentId,
			Name:             p.Name,
			Share:            p.Share.StringFixed(4),
			Clips:            p.Clips,
			SpendCents:       p.SpendCents,
			WeeklyLimitCents: p.WeeklyLimitCents,
			Capped:           p.Capped,
		})
	}
	return SimulationDTO{
		RPM:                   result.RPM.String(),
		WeeklyLimitCents:      result.WeeklyLimitCents,
		WeeklyLimit:           centsToDollars(result.WeeklyLimitCents),
		MaxViews:              result.MaxViews,
		AvgPayoutPerClipCents: result.AvgPayoutPerClipCents,
		TotalClips:            result.TotalClips,
		BonusRateChange:       result.BonusRateChange,
		Day7SpendCents:        result.Day7SpendCents,
		Day30SpendCents:       result.Day30SpendCents,
		WorstCaseCents:        result.WorstCaseCents,
		RiskAdjustedCents:     result.RiskAdjustedCents,
		SafeLimitCents:        result.SafeLimitCents,
		Distribution:          distribution,
	}
}

func actualSpendToDTO(a ActualSpend) ActualSpendDTO {
	return ActualSpendDTO{
		WeekStart:    a.WeekStart.Format(time.DateOnly),
		WeekEnd:      a.WeekEnd.Format(time.DateOnly),
		TotalCents:   a.TotalCents,
		Total:        centsToDollars(a.TotalCents),
		PayoutCount:  a.PayoutCount,
		ClipperCount: a.ClipperCount,
	}
}

func centsToDollars(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
