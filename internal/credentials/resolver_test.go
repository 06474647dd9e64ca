package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosimani/rua-api-sub001/internal/common/errors"
)

// ==========================
// Mock Implementations
// ==========================

type mockSettings struct {
	values map[string]string
	calls  []string
}

func (m *mockSettings) Get(_ context.Context, clave string) (string, bool, error) {
	m.calls = append(m.calls, clave)
	val, ok := m.values[clave]
	return val, ok, nil
}

// ==========================
// Resolution Tests
// ==========================

func TestResolver_Resolve_SettingsTakePrecedence(t *testing.T) {
	t.Setenv("WHATSAPP_TOKEN", "env-token")

	settings := &mockSettings{values: map[string]string{"WHATSAPP_TOKEN": "db-token"}}
	r := NewResolver(settings)

	val, err := r.Resolve(context.Background(), "WHATSAPP_TOKEN", "WHATSAPP_TOKEN", "WHATSAPP_ACCESS_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "db-token", val)
}

func TestResolver_Resolve_FallsBackToPrimaryEnv(t *testing.T) {
	t.Setenv("PHONE_NUMBER_ID", "12345")

	r := NewResolver(&mockSettings{values: map[string]string{}})

	val, err := r.Resolve(context.Background(), "PHONE_NUMBER_ID", "PHONE_NUMBER_ID", "WHATSAPP_PHONE_NUMBER_ID")
	require.NoError(t, err)
	assert.Equal(t, "12345", val)
}

func TestResolver_Resolve_FallsBackToAliasEnv(t *testing.T) {
	t.Setenv("PHONE_NUMBER_ID", "")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "67890")

	r := NewResolver(&mockSettings{values: map[string]string{}})

	val, err := r.Resolve(context.Background(), "PHONE_NUMBER_ID", "PHONE_NUMBER_ID", "WHATSAPP_PHONE_NUMBER_ID")
	require.NoError(t, err)
	assert.Equal(t, "67890", val)
}

func TestResolver_Resolve_AllSourcesEmpty(t *testing.T) {
	t.Setenv("WABA_ID", "")

	r := NewResolver(&mockSettings{values: map[string]string{}})

	_, err := r.Resolve(context.Background(), "WABA_ID", "WABA_ID", "")
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "CREDENTIAL_MISSING")
}

// ==========================
// Bundle Tests
// ==========================

func TestResolver_WhatsApp_FullBundle(t *testing.T) {
	settings := &mockSettings{values: map[string]string{
		"VERIFY_TOKEN":    "verify",
		"WHATSAPP_TOKEN":  "token",
		"PHONE_NUMBER_ID": "111",
		"WABA_ID":         "222",
	}}
	r := NewResolver(settings)

	creds, err := r.WhatsApp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "verify", creds.VerifyToken)
	assert.Equal(t, "token", creds.Token)
	assert.Equal(t, "111", creds.PhoneNumberID)
	assert.Equal(t, "222", creds.WabaID)
}

func TestResolver_WhatsApp_MissingCredentialNamesKey(t *testing.T) {
	t.Setenv("VERIFY_TOKEN", "verify")
	t.Setenv("WHATSAPP_TOKEN", "token")
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "")
	t.Setenv("PHONE_NUMBER_ID", "")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "")
	t.Setenv("WABA_ID", "333")

	r := NewResolver(&mockSettings{values: map[string]string{}})

	_, err := r.WhatsApp(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREDENTIAL_MISSING")
}

func TestResolver_Resolve_FreshPerCall(t *testing.T) {
	// No caching: two calls hit the settings store twice, so edits apply
	// without a restart.
	settings := &mockSettings{values: map[string]string{"WABA_ID": "before"}}
	r := NewResolver(settings)

	val, err := r.Resolve(context.Background(), "WABA_ID", "WABA_ID", "")
	require.NoError(t, err)
	assert.Equal(t, "before", val)

	settings.values["WABA_ID"] = "after"
	val, err = r.Resolve(context.Background(), "WABA_ID", "WABA_ID", "")
	require.NoError(t, err)
	assert.Equal(t, "after", val)

	assert.Len(t, settings.calls, 2)
}
