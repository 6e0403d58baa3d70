package sms

import (
	"context"
	"fmt"
	"sync"
)

type ProviderStub struct {
	mu       sync.Mutex
	messages []Message
	sendErr  error
}

func NewProviderStub() *ProviderStub {
	return &ProviderStub{}
}

func (p *ProviderStub) Send(ctx context.Context, msg Message) (SendResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	if p.sendErr != nil {
		return SendResult{}, p.sendErr
	}
	return SendResult{Sid: fmt.Sprintf("SM%032d", len(p.messages)), Status: "queued"}, nil
}

// Helper method to make every send fail (for testing provider errors)
func (p *ProviderStub) SetSendError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendErr = err
}

func (p *ProviderStub) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func (p *ProviderStub) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

func (p *ProviderStub) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = nil
	p.sendErr = nil
}
