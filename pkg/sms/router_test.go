package sms

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/clipperhq/growthcore/internal/config"
	"github.com/clipperhq/growthcore/internal/event_bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSmsConfig = config.SMS{
	StatusCallbackUrl: "https://hooks.example.com/sms/status",
	Lanes: config.Lanes{
		Otp:           "MG-otp",
		Transactional: "MG-transactional",
		Marketing:     "MG-marketing",
	},
}

func setupRouter(t *testing.T, cfg config.SMS) (*Router, *ProviderStub, *AuditRepositoryStub) {
	provider := NewProviderStub()
	audit := NewAuditRepositoryStub()
	bus := event_bus.NewEventBus()
	RegisterAuditSubscribers(bus, audit)
	return NewRouter(provider, cfg, bus), provider, audit
}

func requireRouteError(t *testing.T, err error) *RouteError {
	t.Helper()
	var routeErr *RouteError
	require.True(t, errors.As(err, &routeErr), "expected *RouteError, got %v", err)
	return routeErr
}

// fillVariables returns a value for every placeholder of the template.
func fillVariables(template Template) map[string]string {
	variables := map[string]string{}
	for _, name := range Placeholders(template.Body) {
		variables[name] = "x"
	}
	return variables
}

func TestRouter_LaneIsolation(t *testing.T) {
	for _, template := range Templates() {
		for _, lane := range Lanes {
			t.Run(template.Key+" as "+string(lane), func(t *testing.T) {
				router, provider, audit := setupRouter(t, testSmsConfig)

				result, err := router.Send(context.Background(), Request{
					To:          "+15551234567",
					TemplateKey: template.Key,
					Variables:   fillVariables(template),
					TrafficType: string(lane),
				})

				if lane == template.Lane {
					require.NoError(t, err)
					assert.Equal(t, lane, result.Lane)
					assert.Equal(t, template.Key, result.Template)
					assert.Equal(t, 1, provider.Calls())
					return
				}
				routeErr := requireRouteError(t, err)
				assert.Equal(t, http.StatusForbidden, routeErr.Status)
				assert.Equal(t, CodeLaneViolation, routeErr.Code)
				assert.True(t, strings.HasPrefix(routeErr.Message, "LANE VIOLATION"))
				assert.Equal(t, 0, provider.Calls())
				records, _ := audit.ListAuditRecords(context.Background(), 10)
				assert.Empty(t, records)
			})
		}
	}
}

func TestRouter_Compliance(t *testing.T) {
	variables := map[string]string{"message": "Get 50% off today"}

	t.Run("should reject promotional language on the transactional lane", func(t *testing.T) {
		router, provider, _ := setupRouter(t, testSmsConfig)

		_, err := router.Send(context.Background(), Request{
			To:          "+15551234567",
			TemplateKey: "custom-transactional",
			Variables:   variables,
			TrafficType: "transactional",
		})

		routeErr := requireRouteError(t, err)
		assert.Equal(t, http.StatusForbidden, routeErr.Status)
		assert.Equal(t, CodeComplianceViolation, routeErr.Code)
		assert.Contains(t, routeErr.DetectedKeywords, "% off")
		assert.Equal(t, LaneTransactional, routeErr.Lane)
		assert.Equal(t, 0, provider.Calls())
	})

	t.Run("should allow the same text on marketing and otp", func(t *testing.T) {
		for _, lane := range []Lane{LaneMarketing, LaneOtp} {
			router, provider, _ := setupRouter(t, testSmsConfig)

			_, err := router.Send(context.Background(), Request{
				To:          "+15551234567",
				Variables:   variables,
				TrafficType: string(lane),
			})

			require.NoError(t, err, string(lane))
			assert.Equal(t, 1, provider.Calls())
		}
	})
}

func TestRouter_Send(t *testing.T) {
	t.Run("should send a drop announcement through the marketing identity", func(t *testing.T) {
		// given
		router, provider, audit := setupRouter(t, testSmsConfig)

		// when
		result, err := router.Send(context.Background(), Request{
			To:          "(555) 123-4567",
			TemplateKey: "drop-live",
			Variables:   map[string]string{"productName": "Gratitude Journal", "dropLink": "https://shop.example.com/d/1"},
			TrafficType: "marketing",
			MediaUrl:    "https://cdn.example.com/drop.jpg",
		})

		// then
		require.NoError(t, err)
		assert.Equal(t, LaneMarketing, result.Lane)
		assert.Equal(t, "drop-live", result.Template)
		assert.Equal(t, "+15551234567", result.To)
		assert.Equal(t, "queued", result.Status)
		assert.NotEmpty(t, result.Sid)

		messages := provider.Messages()
		require.Len(t, messages, 1)
		msg := messages[0]
		assert.Equal(t, "+15551234567", msg.To)
		assert.Equal(t, "MG-marketing", msg.MessagingServiceSid)
		assert.Equal(t, "https://hooks.example.com/sms/status", msg.StatusCallback)
		assert.Equal(t, "https://cdn.example.com/drop.jpg", msg.MediaUrl)
		assert.Contains(t, msg.Body, "Gratitude Journal")
		assert.Contains(t, msg.Body, "https://shop.example.com/d/1")
		assert.Contains(t, msg.Body, stopLanguage)

		audits, _ := audit.ListAuditRecords(context.Background(), 10)
		require.Len(t, audits, 1)
		assert.Equal(t, LaneMarketing, audits[0].Lane)
		assert.Equal(t, "drop-live", audits[0].TemplateKey)
		assert.Equal(t, "MG-marketing", audits[0].RoutingIdentity)
		assert.Equal(t, result.Sid, audits[0].ProviderMessageId)
		assert.Equal(t, []string{"dropLink", "productName"}, audits[0].Metadata.VariableKeys)
		assert.True(t, audits[0].Metadata.Domestic)
		assert.True(t, audits[0].Metadata.HasMedia)

		deliveries, _ := audit.ListDeliveryRecords(context.Background(), 10)
		require.Len(t, deliveries, 1)
		assert.Equal(t, msg.Body, deliveries[0].Message)
		assert.Equal(t, result.Sid, deliveries[0].MessageSid)
	})

	t.Run("should default to the lane's custom template", func(t *testing.T) {
		router, provider, _ := setupRouter(t, testSmsConfig)

		result, err := router.Send(context.Background(), Request{
			To:          "+15551234567",
			Variables:   map[string]string{"message": "Your code is 123456"},
			TrafficType: "otp",
		})

		require.NoError(t, err)
		assert.Equal(t, "custom-otp", result.Template)
		assert.Equal(t, "Your code is 123456", provider.Messages()[0].Body)
		assert.Equal(t, "MG-otp", provider.Messages()[0].MessagingServiceSid)
	})

	t.Run("should never attach media to otp messages", func(t *testing.T) {
		router, provider, _ := setupRouter(t, testSmsConfig)

		_, err := router.Send(context.Background(), Request{
			To:          "+15551234567",
			TemplateKey: "otp-code",
			Variables:   map[string]string{"code": "123456", "minutes": "10"},
			TrafficType: "otp",
			MediaUrl:    "https://cdn.example.com/logo.png",
		})

		require.NoError(t, err)
		assert.Empty(t, provider.Messages()[0].MediaUrl)
	})

	t.Run("should reject unresolved variables", func(t *testing.T) {
		router, provider, _ := setupRouter(t, testSmsConfig)

		_, err := router.Send(context.Background(), Request{
			To:          "+15551234567",
			TemplateKey: "otp-code",
			Variables:   map[string]string{"code": "123456"},
			TrafficType: "otp",
		})

		routeErr := requireRouteError(t, err)
		assert.Equal(t, http.StatusBadRequest, routeErr.Status)
		assert.Equal(t, CodeUnresolvedVariables, routeErr.Code)
		assert.Contains(t, routeErr.Message, "minutes")
		assert.Equal(t, 0, provider.Calls())
	})

	t.Run("should reject invalid input with 400", func(t *testing.T) {
		cases := map[string]struct {
			req  Request
			code string
		}{
			"unknown traffic type": {Request{To: "+15551234567", TrafficType: "promo"}, CodeInvalidTrafficType},
			"missing traffic type": {Request{To: "+15551234567"}, CodeInvalidTrafficType},
			"missing phone":        {Request{TrafficType: "otp"}, CodeInvalidPhone},
			"invalid phone":        {Request{To: "12345", TrafficType: "otp"}, CodeInvalidPhone},
			"unknown template":     {Request{To: "+15551234567", TemplateKey: "nope", TrafficType: "otp"}, CodeUnknownTemplate},
		}
		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				router, provider, _ := setupRouter(t, testSmsConfig)

				_, err := router.Send(context.Background(), tc.req)

				routeErr := requireRouteError(t, err)
				assert.Equal(t, http.StatusBadRequest, routeErr.Status)
				assert.Equal(t, tc.code, routeErr.Code)
				assert.Equal(t, 0, provider.Calls())
			})
		}
	})

	t.Run("should fail with 500 when the lane has no sending identity", func(t *testing.T) {
		cfg := testSmsConfig
		cfg.Lanes.Marketing = ""
		router, provider, _ := setupRouter(t, cfg)

		_, err := router.Send(context.Background(), Request{
			To:          "+15551234567",
			Variables:   map[string]string{"message": "hello"},
			TrafficType: "marketing",
		})

		routeErr := requireRouteError(t, err)
		assert.Equal(t, http.StatusInternalServerError, routeErr.Status)
		assert.Equal(t, CodeRoutingNotConfigured, routeErr.Code)
		assert.Equal(t, 0, provider.Calls())
	})
}

func TestRouter_ProviderFailure(t *testing.T) {
	t.Run("should pass through provider errors and still audit the attempt", func(t *testing.T) {
		// given
		router, provider, audit := setupRouter(t, testSmsConfig)
		provider.SetSendError(&ProviderError{StatusCode: 400, Code: 21211, Message: "The 'To' number is not a valid phone number."})

		// when
		_, err := router.Send(context.Background(), Request{
			To:          "+15551234567",
			TemplateKey: "payout-sent",
			Variables:   map[string]string{"amount": "42.00", "days": "3"},
			TrafficType: "transactional",
		})

		// then
		routeErr := requireRouteError(t, err)
		assert.Equal(t, http.StatusBadRequest, routeErr.Status)
		assert.Equal(t, "21211", routeErr.Code)
		assert.Equal(t, LaneTransactional, routeErr.Lane)
		assert.Equal(t, "payout-sent", routeErr.Template)

		audits, _ := audit.ListAuditRecords(context.Background(), 10)
		require.Len(t, audits, 1)
		assert.Equal(t, "failed", audits[0].Status)
		assert.Contains(t, audits[0].ErrorMessage, "not a valid phone number")
		assert.Empty(t, audits[0].ProviderMessageId)

		deliveries, _ := audit.ListDeliveryRecords(context.Background(), 10)
		require.Len(t, deliveries, 1)
		assert.Equal(t, "failed", deliveries[0].Status)
	})

	t.Run("should map transport failures to 500", func(t *testing.T) {
		router, provider, _ := setupRouter(t, testSmsConfig)
		provider.SetSendError(errors.New("connection refused"))

		_, err := router.Send(context.Background(), Request{
			To:          "+15551234567",
			Variables:   map[string]string{"message": "hello"},
			TrafficType: "transactional",
		})

		routeErr := requireRouteError(t, err)
		assert.Equal(t, http.StatusInternalServerError, routeErr.Status)
		assert.Equal(t, CodeProviderUnavailable, routeErr.Code)
	})

	t.Run("should succeed even if the audit store fails", func(t *testing.T) {
		router, provider, audit := setupRouter(t, testSmsConfig)
		audit.SetStoreError(errors.New("audit store unavailable"))

		result, err := router.Send(context.Background(), Request{
			To:          "+15551234567",
			Variables:   map[string]string{"message": "hello"},
			TrafficType: "transactional",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, result.Sid)
		assert.Equal(t, 1, provider.Calls())
	})

	t.Run("should audit even when the request context is cancelled", func(t *testing.T) {
		router, _, audit := setupRouter(t, testSmsConfig)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := router.Send(ctx, Request{
			To:          "+15551234567",
			Variables:   map[string]string{"message": "hello"},
			TrafficType: "transactional",
		})

		require.NoError(t, err)
		audits, _ := audit.ListAuditRecords(context.Background(), 10)
		assert.Len(t, audits, 1)
	})
}
