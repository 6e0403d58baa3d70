package sms

import (
	"context"
	"sync"
	"time"
)

type AuditRepositoryStub struct {
	mu         sync.Mutex
	audits     []AuditRecord
	deliveries []DeliveryRecord
	storeErr   error
}

func NewAuditRepositoryStub() *AuditRepositoryStub {
	return &AuditRepositoryStub{}
}

func (s *AuditRepositoryStub) StoreAuditRecord(ctx context.Context, record AuditRecord) (AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return AuditRecord{}, s.storeErr
	}
	record.Id = len(s.audits) + 1
	record.Created = time.Now()
	s.audits = append(s.audits, record)
	return record, nil
}

func (s *AuditRepositoryStub) StoreDeliveryRecord(ctx context.Context, record DeliveryRecord) (DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return DeliveryRecord{}, s.storeErr
	}
	record.Id = len(s.deliveries) + 1
	record.Created = time.Now()
	s.deliveries = append(s.deliveries, record)
	return record, nil
}

func (s *AuditRepositoryStub) ListAuditRecords(ctx context.Context, limit int) ([]AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(s.audits, limit), nil
}

func (s *AuditRepositoryStub) ListDeliveryRecords(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(s.deliveries, limit), nil
}

func (s *AuditRepositoryStub) SetStoreError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeErr = err
}

func newestFirst[T any](records []T, limit int) []T {
	result := make([]T, 0, len(records))
	for i := len(records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, records[i])
	}
	return result
}
