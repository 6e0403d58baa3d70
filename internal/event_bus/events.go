package event_bus

const SmsDeliveryAttemptedType EventType = "sms.delivery.attempted"

// SmsDeliveryAttempted is published once per provider dispatch, whether it succeeded or not.
type SmsDeliveryAttempted struct {
	To                string
	Lane              string
	TemplateKey       string
	RoutingIdentity   string
	Body              string
	ProviderMessageId string
	Status            string
	ErrorMessage      string
	// VariableKeys holds the names of the interpolated variables, never their values.
	VariableKeys []string
	Domestic     bool
	HasMedia     bool
}
