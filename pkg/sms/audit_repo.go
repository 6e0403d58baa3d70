package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clipperhq/growthcore/internal/event_bus"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// AuditRecord is a row of the per-lane compliance audit log.
type AuditRecord struct {
	Id                int
	Lane              Lane
	TemplateKey       string
	RoutingIdentity   string
	To                string
	ProviderMessageId string
	Status            string
	ErrorMessage      string
	Metadata          AuditMetadata
	Created           time.Time
}

type AuditMetadata struct {
	VariableKeys []string `json:"variableKeys"`
	Domestic     bool     `json:"domestic"`
	HasMedia     bool     `json:"hasMedia"`
}

// DeliveryRecord is a row of the operational delivery log.
type DeliveryRecord struct {
	Id           int
	PhoneNumber  string
	Message      string
	MessageSid   string
	Status       string
	ErrorMessage string
	Created      time.Time
}

type AuditRepository interface {
	StoreAuditRecord(ctx context.Context, record AuditRecord) (AuditRecord, error)
	StoreDeliveryRecord(ctx context.Context, record DeliveryRecord) (DeliveryRecord, error)
	ListAuditRecords(ctx context.Context, limit int) ([]AuditRecord, error)
	ListDeliveryRecords(ctx context.Context, limit int) ([]DeliveryRecord, error)
}

type AuditRepositoryImpl struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepositoryImpl {
	return &AuditRepositoryImpl{db: db}
}

const auditColumns = `id, lane, template_key, routing_identity, to_number, provider_message_id, status, error_message, metadata, created`

func scanAuditRecord(row pgx.Row) (AuditRecord, error) {
	var a AuditRecord
	var lane string
	var providerMessageId, errorMessage *string
	var metadata []byte
	err := row.Scan(&a.Id, &lane, &a.TemplateKey, &a.RoutingIdentity, &a.To, &providerMessageId, &a.Status, &errorMessage, &metadata, &a.Created)
	if err != nil {
		return AuditRecord{}, err
	}
	a.Lane = Lane(lane)
	a.ProviderMessageId = deref(providerMessageId)
	a.ErrorMessage = deref(errorMessage)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return AuditRecord{}, fmt.Errorf("could not decode audit metadata: %w", err)
		}
	}
	return a, nil
}

func (r *AuditRepositoryImpl) StoreAuditRecord(ctx context.Context, record AuditRecord) (AuditRecord, error) {
	if record.Metadata.VariableKeys == nil {
		record.Metadata.VariableKeys = []string{}
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return AuditRecord{}, fmt.Errorf("could not encode audit metadata: %w", err)
	}
	query := `INSERT INTO sms_audit_log (lane, template_key, routing_identity, to_number, provider_message_id, status, error_message, metadata)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING ` + auditColumns
	stored, err := scanAuditRecord(r.db.QueryRow(ctx, query,
		string(record.Lane),
		record.TemplateKey,
		record.RoutingIdentity,
		record.To,
		nullable(record.ProviderMessageId),
		record.Status,
		nullable(record.ErrorMessage),
		metadata,
	))
	if err != nil {
		err := fmt.Errorf("could not store sms audit record: %w", err)
		log.Error(err)
		return AuditRecord{}, err
	}
	return stored, nil
}

func (r *AuditRepositoryImpl) ListAuditRecords(ctx context.Context, limit int) ([]AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM sms_audit_log ORDER BY created DESC, id DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list sms audit records: %w", err)
	}
	defer rows.Close()

	records := make([]AuditRecord, 0)
	for rows.Next() {
		a, err := scanAuditRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

const deliveryColumns = `id, phone_number, message, message_sid, status, error_message, created`

func scanDeliveryRecord(row pgx.Row) (DeliveryRecord, error) {
	var d DeliveryRecord
	var messageSid, errorMessage *string
	err := row.Scan(&d.Id, &d.PhoneNumber, &d.Message, &messageSid, &d.Status, &errorMessage, &d.Created)
	if err != nil {
		return DeliveryRecord{}, err
	}
	d.MessageSid = deref(messageSid)
	d.ErrorMessage = deref(errorMessage)
	return d, nil
}

func (r *AuditRepositoryImpl) StoreDeliveryRecord(ctx context.Context, record DeliveryRecord) (DeliveryRecord, error) {
	query := `INSERT INTO sms_delivery_log (phone_number, message, message_sid, status, error_message)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING ` + deliveryColumns
	stored, err := scanDeliveryRecord(r.db.QueryRow(ctx, query,
		record.PhoneNumber,
		record.Message,
		nullable(record.MessageSid),
		record.Status,
		nullable(record.ErrorMessage),
	))
	if err != nil {
		err := fmt.Errorf("could not store sms delivery record: %w", err)
		log.Error(err)
		return DeliveryRecord{}, err
	}
	return stored, nil
}

func (r *AuditRepositoryImpl) ListDeliveryRecords(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	query := `SELECT ` + deliveryColumns + ` FROM sms_delivery_log ORDER BY created DESC, id DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list sms delivery records: %w", err)
	}
	defer rows.Close()

	records := make([]DeliveryRecord, 0)
	for rows.Next() {
		d, err := scanDeliveryRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, d)
	}
	return records, rows.Err()
}

// RegisterAuditSubscribers writes every delivery attempt to both logs.
func RegisterAuditSubscribers(eventBus *event_bus.EventBus, repo AuditRepository) {
	event_bus.SubscribeTyped(eventBus, event_bus.SmsDeliveryAttemptedType,
		func(e event_bus.EventT[event_bus.SmsDeliveryAttempted]) error {
			_, err := repo.StoreAuditRecord(e.Context(), AuditRecord{
				Lane:              Lane(e.Data.Lane),
				TemplateKey:       e.Data.TemplateKey,
				RoutingIdentity:   e.Data.RoutingIdentity,
				To:                e.Data.To,
				ProviderMessageId: e.Data.ProviderMessageId,
				Status:            e.Data.Status,
				ErrorMessage:      e.Data.ErrorMessage,
				Metadata: AuditMetadata{
					VariableKeys: e.Data.VariableKeys,
					Domestic:     e.Data.Domestic,
					HasMedia:     e.Data.HasMedia,
				},
			})
			return err
		})

	event_bus.SubscribeTyped(eventBus, event_bus.SmsDeliveryAttemptedType,
		func(e event_bus.EventT[event_bus.SmsDeliveryAttempted]) error {
			_, err := repo.StoreDeliveryRecord(e.Context(), DeliveryRecord{
				PhoneNumber:  e.Data.To,
				Message:      e.Data.Body,
				MessageSid:   e.Data.ProviderMessageId,
				Status:       e.Data.Status,
				ErrorMessage: e.Data.ErrorMessage,
			})
			return err
		})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
