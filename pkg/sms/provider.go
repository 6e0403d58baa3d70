package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clipperhq/growthcore/internal/config"
	log "github.com/sirupsen/logrus"
)

// Message is one outbound SMS as handed to the provider.
type Message struct {
	To string
	// MessagingServiceSid is the lane's sending identity.
	MessagingServiceSid string
	Body                string
	StatusCallback      string
	MediaUrl            string
}

type SendResult struct {
	Sid    string
	Status string
}

type Provider interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
}

type TwilioClient struct {
	httpClient *http.Client
	baseUrl    string
	accountSid string
	authToken  string
}

func NewTwilioClient(cfg config.Twilio) *TwilioClient {
	return &TwilioClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseUrl:    strings.TrimSuffix(cfg.BaseUrl, "/"),
		accountSid: cfg.AccountSid,
		authToken:  cfg.AuthToken,
	}
}

// Send creates a message with the Twilio Messages API.
func (c *TwilioClient) Send(ctx context.Context, msg Message) (SendResult, error) {
	if c.accountSid == "" || c.authToken == "" {
		return SendResult{}, errors.New("twilio credentials are not configured")
	}

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("MessagingServiceSid", msg.MessagingServiceSid)
	form.Set("Body", msg.Body)
	if msg.StatusCallback != "" {
		form.Set("StatusCallback", msg.StatusCallback)
	}
	if msg.MediaUrl != "" {
		form.Set("MediaUrl", msg.MediaUrl)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseUrl, url.PathEscape(c.accountSid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		log.Errorf("Failed to create request: %v", err)
		return SendResult{}, err
	}
	req.SetBasicAuth(c.accountSid, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Errorf("Failed to execute request: %v", err)
		return SendResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  int    `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			log.Debugf("Failed to decode provider error body: %v", err)
		}
		providerErr := &ProviderError{StatusCode: resp.StatusCode, Code: body.Code, Message: body.Message}
		if providerErr.Message == "" {
			providerErr.Message = http.StatusText(resp.StatusCode)
		}
		return SendResult{}, providerErr
	}

	var response struct {
		Sid    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		log.Errorf("Failed to decode response: %v", err)
		return SendResult{}, err
	}
	return SendResult{Sid: response.Sid, Status: response.Status}, nil
}
