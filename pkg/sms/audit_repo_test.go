package sms

import (
	"context"
	"os"
	"testing"

	"github.com/clipperhq/growthcore/internal/event_bus"
	"github.com/clipperhq/growthcore/internal/test_utils"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var pgContainer *postgres.PostgresContainer
var openDb func() *pgxpool.Pool

func TestMain(m *testing.M) {
	pgContainer, openDb = test_utils.TestWithDB()
	defer func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			log.Errorf("failed to terminate container: %s", err)
		}
	}()
	code := m.Run()
	os.Exit(code)
}

func setupAuditRepository(t *testing.T) (context.Context, *AuditRepositoryImpl) {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		err := pgContainer.Restore(ctx)
		require.NoError(t, err)
	})
	return ctx, NewAuditRepository(db)
}

func TestAuditRepositoryImpl(t *testing.T) {
	t.Run("should store and list an audit record", func(t *testing.T) {
		// given
		ctx, repo := setupAuditRepository(t)
		record := AuditRecord{
			Lane:              LaneMarketing,
			TemplateKey:       "drop-live",
			RoutingIdentity:   "MG-marketing",
			To:                "+15551234567",
			ProviderMessageId: "SM1",
			Status:            "queued",
			Metadata:          AuditMetadata{VariableKeys: []string{"dropLink", "productName"}, Domestic: true, HasMedia: true},
		}

		// when
		stored, err := repo.StoreAuditRecord(ctx, record)
		require.NoError(t, err)

		// then
		assert.NotZero(t, stored.Id)
		assert.False(t, stored.Created.IsZero())
		records, err := repo.ListAuditRecords(ctx, 10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, LaneMarketing, records[0].Lane)
		assert.Equal(t, "SM1", records[0].ProviderMessageId)
		assert.Empty(t, records[0].ErrorMessage)
		assert.Equal(t, record.Metadata, records[0].Metadata)
	})

	t.Run("should store a failed attempt without a message id", func(t *testing.T) {
		ctx, repo := setupAuditRepository(t)

		stored, err := repo.StoreAuditRecord(ctx, AuditRecord{
			Lane:            LaneOtp,
			TemplateKey:     "otp-code",
			RoutingIdentity: "MG-otp",
			To:              "+442079460958",
			Status:          "failed",
			ErrorMessage:    "provider returned 400",
		})

		require.NoError(t, err)
		assert.Empty(t, stored.ProviderMessageId)
		assert.Equal(t, "provider returned 400", stored.ErrorMessage)
		assert.Empty(t, stored.Metadata.VariableKeys)
	})

	t.Run("should store and list delivery records newest first", func(t *testing.T) {
		ctx, repo := setupAuditRepository(t)
		_, err := repo.StoreDeliveryRecord(ctx, DeliveryRecord{PhoneNumber: "+15551234567", Message: "first", MessageSid: "SM1", Status: "queued"})
		require.NoError(t, err)
		_, err = repo.StoreDeliveryRecord(ctx, DeliveryRecord{PhoneNumber: "+15551234567", Message: "second", Status: "failed", ErrorMessage: "boom"})
		require.NoError(t, err)

		records, err := repo.ListDeliveryRecords(ctx, 10)

		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "second", records[0].Message)
		assert.Empty(t, records[0].MessageSid)
		assert.Equal(t, "boom", records[0].ErrorMessage)
		assert.Equal(t, "SM1", records[1].MessageSid)
	})

	t.Run("should write both logs for a routed message", func(t *testing.T) {
		// given
		ctx, repo := setupAuditRepository(t)
		bus := event_bus.NewEventBus()
		RegisterAuditSubscribers(bus, repo)
		router := NewRouter(NewProviderStub(), testSmsConfig, bus)

		// when
		result, err := router.Send(ctx, Request{
			To:          "555-123-4567",
			TemplateKey: "payout-sent",
			Variables:   map[string]string{"amount": "42.00", "days": "3"},
			TrafficType: "transactional",
		})
		require.NoError(t, err)

		// then
		audits, err := repo.ListAuditRecords(ctx, 10)
		require.NoError(t, err)
		require.Len(t, audits, 1)
		assert.Equal(t, LaneTransactional, audits[0].Lane)
		assert.Equal(t, "MG-transactional", audits[0].RoutingIdentity)
		assert.Equal(t, result.Sid, audits[0].ProviderMessageId)
		assert.Equal(t, []string{"amount", "days"}, audits[0].Metadata.VariableKeys)

		deliveries, err := repo.ListDeliveryRecords(ctx, 10)
		require.NoError(t, err)
		require.Len(t, deliveries, 1)
		assert.Equal(t, "+15551234567", deliveries[0].PhoneNumber)
		assert.Contains(t, deliveries[0].Message, "$42.00")
	})
}
