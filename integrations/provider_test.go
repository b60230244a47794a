package integrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/automation"
	"github.com/relaycrm/automation/store"
)

func TestStoreProvider_TenantRowWins(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutIntegration(&automation.IntegrationCredential{
		TenantID: "tenant-1", Provider: ProviderTwilio, IsActive: true,
		Credentials: map[string]string{
			"account_sid": "AC_tenant",
			"auth_token":  "tok_tenant",
			"from_number": "+15550001111",
		},
	})

	p := NewStoreProvider(st, automation.EnvFallback{TwilioAccountSID: "AC_env", TwilioAuthToken: "tok_env"})
	creds, err := p.Twilio(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "AC_tenant", creds.AccountSID)
	assert.Equal(t, "+15550001111", creds.FromNumber)
}

func TestStoreProvider_TwilioEnvFallback(t *testing.T) {
	p := NewStoreProvider(store.NewMemoryStore(), automation.EnvFallback{
		TwilioAccountSID: "AC_env",
		TwilioAuthToken:  "tok_env",
		TwilioFromNumber: "+15559998888",
	})

	creds, err := p.Twilio(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "AC_env", creds.AccountSID)
	assert.Equal(t, "tok_env", creds.AuthToken)
	assert.Equal(t, "+15559998888", creds.FromNumber)
}

func TestStoreProvider_NotConfigured(t *testing.T) {
	p := NewStoreProvider(store.NewMemoryStore(), automation.EnvFallback{})

	_, err := p.Slack(context.Background(), "tenant-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConfigured)

	// A partial env fallback (missing auth token) does not apply.
	partial := NewStoreProvider(store.NewMemoryStore(), automation.EnvFallback{TwilioAccountSID: "AC_env"})
	_, err = partial.Twilio(context.Background(), "tenant-1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStoreProvider_InactiveRowIsNotConfigured(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutIntegration(&automation.IntegrationCredential{
		TenantID: "tenant-1", Provider: ProviderSlack, IsActive: false,
		Credentials: map[string]string{"webhook_url": "https://hooks.slack.test/T1"},
	})

	p := NewStoreProvider(st, automation.EnvFallback{})
	_, err := p.Slack(context.Background(), "tenant-1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStoreProvider_WebhookEnvFallback(t *testing.T) {
	p := NewStoreProvider(store.NewMemoryStore(), automation.EnvFallback{WebhookSecret: "env-secret"})

	creds, err := p.Webhook(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "env-secret", creds.Secret)
}
