// Package credentials resolves per-deployment outbound channel credentials.
// Resolution order is settings store, then a primary environment variable,
// then an optional alias. The resolver holds no cache: every operation
// resolves fresh so settings edits take effect without a restart.
package credentials

import (
	"context"
	"os"

	"github.com/cosimani/rua-api-sub001/internal/common/errors"
	"github.com/cosimani/rua-api-sub001/internal/models"
)

// SettingsGetter is the settings-store boundary.
type SettingsGetter interface {
	Get(ctx context.Context, clave string) (string, bool, error)
}

type Resolver struct {
	settings SettingsGetter
}

func NewResolver(settings SettingsGetter) *Resolver {
	return &Resolver{settings: settings}
}

// Resolve looks up key in the settings store, then envName, then aliasEnv.
// aliasEnv may be empty. A configuration error names the missing key.
func (r *Resolver) Resolve(ctx context.Context, key, envName, aliasEnv string) (string, error) {
	if r.settings != nil {
		val, found, err := r.settings.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if found {
			return val, nil
		}
	}

	if val := os.Getenv(envName); val != "" {
		return val, nil
	}
	if aliasEnv != "" {
		if val := os.Getenv(aliasEnv); val != "" {
			return val, nil
		}
	}

	return "", errors.NewCredentialMissingError(key)
}

// WhatsApp resolves the full Cloud API credential bundle.
func (r *Resolver) WhatsApp(ctx context.Context) (*models.WhatsAppCredentials, error) {
	verify, err := r.Resolve(ctx, "VERIFY_TOKEN", "VERIFY_TOKEN", "")
	if err != nil {
		return nil, err
	}
	token, err := r.Resolve(ctx, "WHATSAPP_TOKEN", "WHATSAPP_TOKEN", "WHATSAPP_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}
	phoneID, err := r.Resolve(ctx, "PHONE_NUMBER_ID", "PHONE_NUMBER_ID", "WHATSAPP_PHONE_NUMBER_ID")
	if err != nil {
		return nil, err
	}
	wabaID, err := r.Resolve(ctx, "WABA_ID", "WABA_ID", "")
	if err != nil {
		return nil, err
	}

	return &models.WhatsAppCredentials{
		VerifyToken:   verify,
		Token:         token,
		PhoneNumberID: phoneID,
		WabaID:        wabaID,
	}, nil
}
