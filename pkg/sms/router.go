package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/clipperhq/growthcore/internal/config"
	"github.com/clipperhq/growthcore/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

type Request struct {
	To          string
	TemplateKey string
	Variables   map[string]string
	TrafficType string
	MediaUrl    string
}

type Result struct {
	Sid      string
	Status   string
	Lane     Lane
	Template string
	To       string
}

// Router turns a send request into exactly one compliant provider call, or rejects it
// before anything is sent.
type Router struct {
	provider          Provider
	lanes             config.Lanes
	statusCallbackUrl string
	eventBus          *event_bus.EventBus
}

func NewRouter(provider Provider, cfg config.SMS, eventBus *event_bus.EventBus) *Router {
	return &Router{
		provider:          provider,
		lanes:             cfg.Lanes,
		statusCallbackUrl: cfg.StatusCallbackUrl,
		eventBus:          eventBus,
	}
}

// Send validates, composes and dispatches a message. All rejections are *RouteError.
func (r *Router) Send(ctx context.Context, req Request) (Result, error) {
	lane, ok := ParseLane(req.TrafficType)
	if !ok {
		return Result{}, badRequest(CodeInvalidTrafficType,
			fmt.Sprintf("trafficType must be one of otp, transactional, marketing; got %q", req.TrafficType))
	}

	if strings.TrimSpace(req.To) == "" {
		return Result{}, withLane(badRequest(CodeInvalidPhone, "to is required"), lane, "")
	}
	to, err := NormalizePhone(req.To)
	if err != nil {
		return Result{}, withLane(badRequest(CodeInvalidPhone, fmt.Sprintf("%q is not a valid phone number", req.To)), lane, "")
	}

	templateKey := req.TemplateKey
	if templateKey == "" {
		templateKey = defaultTemplateKey(lane)
	}
	template, ok := LookupTemplate(templateKey)
	if !ok {
		return Result{}, withLane(badRequest(CodeUnknownTemplate, fmt.Sprintf("unknown template %q", templateKey)), lane, templateKey)
	}

	if template.Lane != lane {
		log.Warnf("lane violation: template %s (%s) requested as %s", template.Key, template.Lane, lane)
		return Result{}, &RouteError{
			Status:   http.StatusForbidden,
			Code:     CodeLaneViolation,
			Message:  fmt.Sprintf("LANE VIOLATION: template %q belongs to the %s lane and cannot be sent as %s", template.Key, template.Lane, lane),
			Lane:     lane,
			Template: template.Key,
		}
	}

	body, unresolved := Interpolate(template.Body, req.Variables)
	if len(unresolved) > 0 {
		return Result{}, withLane(badRequest(CodeUnresolvedVariables,
			fmt.Sprintf("missing variables: %s", strings.Join(unresolved, ", "))), lane, template.Key)
	}

	if lane == LaneTransactional {
		if keywords := DetectPromotionalKeywords(body); len(keywords) > 0 {
			log.Warnf("compliance violation on template %s: %v", template.Key, keywords)
			return Result{}, &RouteError{
				Status:           http.StatusForbidden,
				Code:             CodeComplianceViolation,
				Message:          "transactional messages must not contain promotional language; use the marketing lane",
				DetectedKeywords: keywords,
				Lane:             lane,
				Template:         template.Key,
			}
		}
	}

	routingIdentity := r.routingIdentity(lane)
	if routingIdentity == "" {
		log.Errorf("no messaging service configured for the %s lane", lane)
		return Result{}, &RouteError{
			Status:   http.StatusInternalServerError,
			Code:     CodeRoutingNotConfigured,
			Message:  fmt.Sprintf("no sending identity configured for the %s lane", lane),
			Lane:     lane,
			Template: template.Key,
		}
	}

	msg := Message{
		To:                  to,
		MessagingServiceSid: routingIdentity,
		Body:                body,
		StatusCallback:      r.statusCallbackUrl,
	}
	if lane.allowsMedia() {
		msg.MediaUrl = req.MediaUrl
	}

	result, sendErr := r.provider.Send(ctx, msg)
	r.publishAttempt(ctx, msg, lane, template.Key, req.Variables, result, sendErr)

	if sendErr != nil {
		return Result{}, providerRouteError(sendErr, lane, template.Key)
	}
	return Result{
		Sid:      result.Sid,
		Status:   result.Status,
		Lane:     lane,
		Template: template.Key,
		To:       to,
	}, nil
}

func (r *Router) routingIdentity(lane Lane) string {
	switch lane {
	case LaneOtp:
		return r.lanes.Otp
	case LaneTransactional:
		return r.lanes.Transactional
	case LaneMarketing:
		return r.lanes.Marketing
	}
	return ""
}

// publishAttempt hands the attempt to the audit subscribers. Audit failures never change the outcome.
func (r *Router) publishAttempt(
	ctx context.Context,
	msg Message,
	lane Lane,
	templateKey string,
	variables map[string]string,
	result SendResult,
	sendErr error,
) {
	if r.eventBus == nil {
		return
	}
	variableKeys := make([]string, 0, len(variables))
	for k := range variables {
		variableKeys = append(variableKeys, k)
	}
	sort.Strings(variableKeys)

	attempt := event_bus.SmsDeliveryAttempted{
		To:                msg.To,
		Lane:              string(lane),
		TemplateKey:       templateKey,
		RoutingIdentity:   msg.MessagingServiceSid,
		Body:              msg.Body,
		ProviderMessageId: result.Sid,
		Status:            result.Status,
		VariableKeys:      variableKeys,
		Domestic:          IsDomestic(msg.To),
		HasMedia:          msg.MediaUrl != "",
	}
	if sendErr != nil {
		attempt.Status = "failed"
		attempt.ErrorMessage = sendErr.Error()
	}

	// Audit rows are written even if the caller went away mid-request.
	auditCtx := context.WithoutCancel(ctx)
	if err := r.eventBus.Publish(event_bus.NewEvent(auditCtx, event_bus.SmsDeliveryAttemptedType, attempt)); err != nil {
		log.Errorf("failed to audit sms delivery attempt: %v", err)
	}
}

func providerRouteError(err error, lane Lane, templateKey string) *RouteError {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		status := providerErr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		code := CodeProviderUnavailable
		if providerErr.Code != 0 {
			code = strconv.Itoa(providerErr.Code)
		}
		return &RouteError{
			Status:   status,
			Code:     code,
			Message:  providerErr.Message,
			Lane:     lane,
			Template: templateKey,
		}
	}
	return &RouteError{
		Status:   http.StatusInternalServerError,
		Code:     CodeProviderUnavailable,
		Message:  err.Error(),
		Lane:     lane,
		Template: templateKey,
	}
}

func withLane(err *RouteError, lane Lane, templateKey string) *RouteError {
	err.Lane = lane
	err.Template = templateKey
	return err
}
