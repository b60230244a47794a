package automation

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvFallback holds the small set of environment-variable credential
// fallbacks the engine honors when a tenant has no integration row. Only
// Twilio (SMS, WhatsApp, voice) and generic webhook signing carry env
// fallbacks; every other provider is strictly tenant-configured.
type EnvFallback struct {
	TwilioAccountSID string `mapstructure:"twilio_account_sid"`
	TwilioAuthToken  string `mapstructure:"twilio_auth_token"`
	TwilioFromNumber string `mapstructure:"twilio_from_number"`
	WebhookSecret    string `mapstructure:"webhook_secret"`
}

// LoadEnvFallback reads fallback credentials from the environment
// (TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER,
// WEBHOOK_SECRET).
func LoadEnvFallback() (EnvFallback, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface unset keys through Unmarshal,
	// so bind each key explicitly.
	for _, key := range []string{
		"twilio_account_sid",
		"twilio_auth_token",
		"twilio_from_number",
		"webhook_secret",
	} {
		if err := v.BindEnv(key); err != nil {
			return EnvFallback{}, err
		}
	}

	var fb EnvFallback
	if err := v.Unmarshal(&fb); err != nil {
		return EnvFallback{}, err
	}
	return fb, nil
}
