package sms

import "sort"

type Template struct {
	Key  string
	Lane Lane
	// Body may contain {{name}} placeholders.
	Body           string
	RequiresStop   bool
	ComplianceTags []string
}

const stopLanguage = "Reply STOP to unsubscribe."

var registry = map[string]Template{}

func register(templates ...Template) {
	for _, t := range templates {
		if _, exists := registry[t.Key]; exists {
			panic("duplicate sms template " + t.Key)
		}
		registry[t.Key] = t
	}
}

func init() {
	register(
		Template{
			Key:            "custom-otp",
			Lane:           LaneOtp,
			Body:           "{{message}}",
			ComplianceTags: []string{"2fa"},
		},
		Template{
			Key:            "otp-code",
			Lane:           LaneOtp,
			Body:           "Your verification code is {{code}}. It expires in {{minutes}} minutes. Never share this code.",
			ComplianceTags: []string{"2fa"},
		},
		Template{
			Key:            "custom-transactional",
			Lane:           LaneTransactional,
			Body:           "{{message}}",
			ComplianceTags: []string{"account-notice"},
		},
		Template{
			Key:            "payout-sent",
			Lane:           LaneTransactional,
			Body:           "Your clipper payout of ${{amount}} was sent and should arrive within {{days}} business days.",
			ComplianceTags: []string{"account-notice", "payout"},
		},
		Template{
			Key:            "challenge-reminder",
			Lane:           LaneTransactional,
			Body:           "Hi {{name}}, day {{day}} of your gratitude challenge is ready. Log today's entry here: {{link}}",
			ComplianceTags: []string{"account-notice"},
		},
		Template{
			Key:            "order-confirmation",
			Lane:           LaneTransactional,
			Body:           "Thanks for your order #{{orderNumber}}. We'll text you again when it ships.",
			ComplianceTags: []string{"account-notice", "order"},
		},
		Template{
			Key:            "custom-marketing",
			Lane:           LaneMarketing,
			Body:           "{{message}} " + stopLanguage,
			RequiresStop:   true,
			ComplianceTags: []string{"promotional", "tcpa"},
		},
		Template{
			Key:            "drop-live",
			Lane:           LaneMarketing,
			Body:           "🔥 {{productName}} is live! Shop now: {{dropLink}} " + stopLanguage,
			RequiresStop:   true,
			ComplianceTags: []string{"promotional", "tcpa"},
		},
		Template{
			Key:            "flash-sale",
			Lane:           LaneMarketing,
			Body:           "Flash sale: {{discount}}% off until {{endsAt}}. {{link}} " + stopLanguage,
			RequiresStop:   true,
			ComplianceTags: []string{"promotional", "tcpa"},
		},
		Template{
			Key:            "referral-invite",
			Lane:           LaneMarketing,
			Body:           "{{referrerName}} invited you to start clipping. Claim your signup bonus: {{link}} " + stopLanguage,
			RequiresStop:   true,
			ComplianceTags: []string{"promotional", "tcpa", "referral"},
		},
	)
}

func LookupTemplate(key string) (Template, bool) {
	t, ok := registry[key]
	return t, ok
}

// Templates returns all registered templates ordered by key.
func Templates() []Template {
	result := make([]Template, 0, len(registry))
	for _, t := range registry {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

func defaultTemplateKey(lane Lane) string {
	return "custom-" + string(lane)
}
