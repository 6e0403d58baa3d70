package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clipperhq/growthcore/internal/config"
	"github.com/clipperhq/growthcore/internal/event_bus"
	"github.com/clipperhq/growthcore/internal/utils"
	"github.com/clipperhq/growthcore/pkg/budget"
	"github.com/clipperhq/growthcore/pkg/sms"
	"github.com/clipperhq/growthcore/pkg/user"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func setupTestRouter(t *testing.T) (*mux.Router, *sms.ProviderStub) {
	userService := user.NewUserService(user.NewStubUserRepository(
		user.User{Id: 1, Uid: "admin-uid", DisplayName: "Admin", Role: user.RoleAdmin},
		user.User{Id: 2, Uid: "clipper-uid", DisplayName: "Clipper", Role: user.RoleClipper},
	))
	clock := &utils.MockClock{FixedNow: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
	bus := event_bus.NewEventBus()
	audit := sms.NewAuditRepositoryStub()
	sms.RegisterAuditSubscribers(bus, audit)
	provider := sms.NewProviderStub()
	smsRouter := sms.NewRouter(provider, config.SMS{Lanes: config.Lanes{Otp: "MG-otp", Transactional: "MG-tx", Marketing: "MG-mkt"}}, bus)
	budgetService := budget.NewService(budget.NewRepositoryStub(), userService, clock, config.Budget{
		FallbackWeeklyLimitCents: 500000,
		DefaultSegmentLimitCents: 100000,
	})

	deps := &Dependencies{
		EventBus:      bus,
		Clock:         clock,
		UserService:   userService,
		UserHandler:   user.NewHandler(userService),
		BudgetService: budgetService,
		BudgetHandler: budget.NewHandler(budgetService),
		SmsAuditRepo:  audit,
		SmsProvider:   provider,
		SmsRouter:     smsRouter,
		SmsHandler:    sms.NewHandler(smsRouter, audit),
		SmsCORS:       sms.NewCORS(),
	}

	r := mux.NewRouter()
	SetupMiddleware(r, deps)
	RegisterRoutes(r, deps)
	return r, provider
}

func serve(r http.Handler, method, path, uid, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if uid != "" {
		req.Header.Set("X-User-Id", uid)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes_BudgetRequiresAdmin(t *testing.T) {
	r, _ := setupTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/budget/cycle/current", "", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/budget/cycle/current", "unknown-uid", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/budget/cycle/current", "clipper-uid", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/budget/cycle/current", "admin-uid", "").Code)
}

func TestRoutes_BudgetEventsRecordTheAdmin(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := serve(r, http.MethodPut, "/api/budget/cycle/current/status", "admin-uid", `{"status":"approved"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/api/budget/event?limit=1", "admin-uid", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"performedBy":"admin-uid"`)
}

func TestRoutes_SmsSendIsPublic(t *testing.T) {
	r, provider := setupTestRouter(t)

	w := serve(r, http.MethodPost, "/api/sms/send", "", `{"to":"+15551234567","trafficType":"otp","variables":{"message":"123456"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, provider.Calls())
	assert.Equal(t, http.StatusOK, serve(r, http.MethodOptions, "/api/sms/send", "", "").Code)
}

func TestRoutes_SmsLogsRequireAdmin(t *testing.T) {
	r, _ := setupTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/sms/audit", "", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/sms/delivery", "clipper-uid", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/sms/template", "admin-uid", "").Code)
}
