package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CredentialRecord is the token bundle returned by a provider's token
// endpoint. It is kept verbatim; only access_token is interpreted.
type CredentialRecord map[string]any

// AccessToken returns the access_token field, or "" if absent.
func (c CredentialRecord) AccessToken() string {
	token, _ := c["access_token"].(string)
	return token
}

// RefreshToken returns the refresh_token field, or "" if absent.
func (c CredentialRecord) RefreshToken() string {
	token, _ := c["refresh_token"].(string)
	return token
}

// DecodeCredentialRecord parses a serialized credential record.
// A JSON string holding an encoded object is unwrapped once.
func DecodeCredentialRecord(data []byte) (CredentialRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("%w: decode credentials: %v", ErrInvalidInput, err)
		}
		data = []byte(inner)
	}

	var record CredentialRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: decode credentials: %v", ErrInvalidInput, err)
	}
	return record, nil
}

// CoerceCredentialRecord accepts either an already-parsed record or its
// serialized form.
func CoerceCredentialRecord(v any) (CredentialRecord, error) {
	switch c := v.(type) {
	case nil:
		return CredentialRecord{}, nil
	case CredentialRecord:
		return c, nil
	case map[string]any:
		return CredentialRecord(c), nil
	case json.RawMessage:
		if len(bytes.TrimSpace(c)) == 0 || string(bytes.TrimSpace(c)) == "null" {
			return CredentialRecord{}, nil
		}
		return DecodeCredentialRecord(c)
	case []byte:
		return DecodeCredentialRecord(c)
	case string:
		return DecodeCredentialRecord([]byte(c))
	default:
		return nil, fmt.Errorf("%w: unsupported credentials type %T", ErrInvalidInput, v)
	}
}
