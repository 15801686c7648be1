package domain

import (
	"fmt"
	"strings"
)

// StateRecord binds an anti-forgery token to one (user, org) authorization
// attempt. It is persisted under StateKey while the attempt is pending.
type StateRecord struct {
	State  string `json:"state"`
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`

	// CodeVerifier is the PKCE verifier for providers that require it.
	// It stays server-side and is never part of the transported state.
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// CallbackResult is the outcome of a verified OAuth callback.
type CallbackResult struct {
	UserID       string
	OrgID        string
	Code         string
	CodeVerifier string
}

// StateKey is the store key of the pending state for (provider, org, user).
func StateKey(provider ProviderType, orgID, userID string) string {
	return strings.Join([]string{"state", string(provider), orgID, userID}, keySeparator)
}

// CredentialKey is the store key of exchanged credentials for (provider, org, user).
func CredentialKey(provider ProviderType, orgID, userID string) string {
	return strings.Join([]string{"cred", string(provider), orgID, userID}, keySeparator)
}

// keySeparator joins the parts of a store key.
const keySeparator = ":"

// ValidateIdentity checks the (user, org) pair that scopes store keys.
// Both are required and neither may contain the key separator, otherwise
// distinct pairs could share a key.
func ValidateIdentity(userID, orgID string) error {
	if userID == "" || orgID == "" {
		return fmt.Errorf("%w: user_id and org_id are required", ErrInvalidInput)
	}
	if strings.Contains(userID, keySeparator) || strings.Contains(orgID, keySeparator) {
		return fmt.Errorf("%w: user_id and org_id must not contain %q", ErrInvalidInput, keySeparator)
	}
	return nil
}
