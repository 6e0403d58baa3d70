package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/clipperhq/growthcore/internal/rest"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

const defaultAuditLimit = 50

type SendRequestDTO struct {
	To          string            `json:"to"`
	TemplateKey string            `json:"templateKey,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	TrafficType string            `json:"trafficType"`
	MediaUrl    string            `json:"mediaUrl,omitempty"`
}

type SendResponseDTO struct {
	Success  bool   `json:"success"`
	Sid      string `json:"sid"`
	Status   string `json:"status"`
	Lane     string `json:"lane"`
	Template string `json:"template"`
}

type SendErrorDTO struct {
	Success          bool     `json:"success"`
	Error            string   `json:"error"`
	Code             string   `json:"code"`
	DetectedKeywords []string `json:"detectedKeywords,omitempty"`
	Lane             string   `json:"lane,omitempty"`
	Template         string   `json:"template,omitempty"`
}

type AuditRecordDTO struct {
	Id                int       `json:"id"`
	Lane              string    `json:"lane"`
	TemplateKey       string    `json:"templateKey"`
	RoutingIdentity   string    `json:"routingIdentity"`
	To                string    `json:"to"`
	ProviderMessageId string    `json:"providerMessageId,omitempty"`
	Status            string    `json:"status"`
	ErrorMessage      string    `json:"errorMessage,omitempty"`
	VariableKeys      []string  `json:"variableKeys"`
	Domestic          bool      `json:"domestic"`
	HasMedia          bool      `json:"hasMedia"`
	Created           time.Time `json:"created"`
}

type DeliveryRecordDTO struct {
	Id           int       `json:"id"`
	PhoneNumber  string    `json:"phoneNumber"`
	Message      string    `json:"message"`
	MessageSid   string    `json:"messageSid,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Created      time.Time `json:"created"`
}

type TemplateDTO struct {
	Key            string   `json:"key"`
	Lane           string   `json:"lane"`
	Body           string   `json:"body"`
	RequiresStop   bool     `json:"requiresStop"`
	ComplianceTags []string `json:"complianceTags"`
	Variables      []string `json:"variables"`
}

type Sender interface {
	Send(ctx context.Context, req Request) (Result, error)
}

type Handler struct {
	sender Sender
	audit  AuditRepository
}

func NewHandler(sender Sender, audit AuditRepository) *Handler {
	return &Handler{sender: sender, audit: audit}
}

// NewCORS returns the permissive CORS policy of the send endpoint.
func NewCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"authorization", "x-client-info", "apikey", "content-type"},
		OptionsSuccessStatus: http.StatusOK,
	})
}

// Send godoc
// @Summary Send an SMS through its traffic lane
// @Description Validates lane, template and content, then dispatches exactly one message
// @Tags SMS
// @Accept json
// @Produce json
// @Param request body SendRequestDTO true "Message to send"
// @Success 200 {object} SendResponseDTO
// @Failure 400 {object} SendErrorDTO "Invalid request"
// @Failure 403 {object} SendErrorDTO "Lane or compliance violation"
// @Failure 500 {object} SendErrorDTO "Routing not configured"
// @Router /api/sms/send [post]
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var requestDTO SendRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&requestDTO); err != nil {
		writeJson(w, http.StatusBadRequest, SendErrorDTO{
			Error: "Invalid request body format: " + err.Error(),
			Code:  CodeInvalidRequest,
		})
		return
	}

	result, err := h.sender.Send(r.Context(), Request{
		To:          requestDTO.To,
		TemplateKey: requestDTO.TemplateKey,
		Variables:   requestDTO.Variables,
		TrafficType: requestDTO.TrafficType,
		MediaUrl:    requestDTO.MediaUrl,
	})
	if err != nil {
		var routeErr *RouteError
		if !errors.As(err, &routeErr) {
			log.Errorf("sms send failed: %v", err)
			writeJson(w, http.StatusInternalServerError, SendErrorDTO{Error: err.Error(), Code: CodeProviderUnavailable})
			return
		}
		writeJson(w, routeErr.Status, SendErrorDTO{
			Error:            routeErr.Message,
			Code:             routeErr.Code,
			DetectedKeywords: routeErr.DetectedKeywords,
			Lane:             string(routeErr.Lane),
			Template:         routeErr.Template,
		})
		return
	}

	writeJson(w, http.StatusOK, SendResponseDTO{
		Success:  true,
		Sid:      result.Sid,
		Status:   result.Status,
		Lane:     string(result.Lane),
		Template: result.Template,
	})
}

// ListTemplates godoc
// @Summary List the message templates
// @Tags SMS
// @Produce json
// @Success 200 {array} TemplateDTO
// @Router /api/sms/template [get]
// @Security XUserId
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates := Templates()
	dtos := make([]TemplateDTO, 0, len(templates))
	for _, t := range templates {
		tags := t.ComplianceTags
		if tags == nil {
			tags = []string{}
		}
		dtos = append(dtos, TemplateDTO{
			Key:            t.Key,
			Lane:           string(t.Lane),
			Body:           t.Body,
			RequiresStop:   t.RequiresStop,
			ComplianceTags: tags,
			Variables:      Placeholders(t.Body),
		})
	}
	writeJson(w, http.StatusOK, dtos)
}

// ListAuditRecords godoc
// @Summary List the most recent SMS audit records
// @Tags SMS
// @Produce json
// @Param limit query int false "Maximum number of records"
// @Success 200 {array} AuditRecordDTO
// @Router /api/sms/audit [get]
// @Security XUserId
func (h *Handler) ListAuditRecords(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	records, err := h.audit.ListAuditRecords(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	dtos := make([]AuditRecordDTO, 0, len(records))
	for _, a := range records {
		variableKeys := a.Metadata.VariableKeys
		if variableKeys == nil {
			variableKeys = []string{}
		}
		dtos = append(dtos, AuditRecordDTO{
			Id:                a.Id,
			Lane:              string(a.Lane),
			TemplateKey:       a.TemplateKey,
			RoutingIdentity:   a.RoutingIdentity,
			To:                a.To,
			ProviderMessageId: a.ProviderMessageId,
			Status:            a.Status,
			ErrorMessage:      a.ErrorMessage,
			VariableKeys:      variableKeys,
			Domestic:          a.Metadata.Domestic,
			HasMedia:          a.Metadata.HasMedia,
			Created:           a.Created,
		})
	}
	writeJson(w, http.StatusOK, dtos)
}

// ListDeliveryRecords godoc
// @Summary List the most recent SMS delivery records
// @Tags SMS
// @Produce json
// @Param limit query int false "Maximum number of records"
// @Success 200 {array} DeliveryRecordDTO
// @Router /api/sms/delivery [get]
// @Security XUserId
func (h *Handler) ListDeliveryRecords(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	records, err := h.audit.ListDeliveryRecords(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	dtos := make([]DeliveryRecordDTO, 0, len(records))
	for _, d := range records {
		dtos = append(dtos, DeliveryRecordDTO{
			Id:           d.Id,
			PhoneNumber:  d.PhoneNumber,
			Message:      d.Message,
			MessageSid:   d.MessageSid,
			Status:       d.Status,
			ErrorMessage: d.ErrorMessage,
			Created:      d.Created,
		})
	}
	writeJson(w, http.StatusOK, dtos)
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limitParam := r.URL.Query().Get("limit")
	if limitParam == "" {
		return defaultAuditLimit, true
	}
	limit, err := strconv.Atoi(limitParam)
	if err != nil || limit <= 0 {
		rest.WriteError(w, http.StatusBadRequest, "Invalid limit", limitParam)
		return 0, false
	}
	return limit, true
}

func writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}
