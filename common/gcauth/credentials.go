// Package gcauth implements service-account authentication against cloud
// OAuth2 token endpoints: repairing the credential blob delivered through
// environment configuration and exchanging a signed assertion for a
// short-lived bearer token.
package gcauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	pemBeginMarker  = "-----BEGIN "
	pemEndMarker    = "-----END "
	defaultTokenURI = "https://oauth2.googleapis.com/token"
)

// NormalizationError reports a credential blob that could not be repaired
// into a usable service-account key. The message carries only length and a
// short printable prefix, never key material.
type NormalizationError struct {
	Reason string
}

func (e *NormalizationError) Error() string {
	return "credential normalization failed: " + e.Reason
}

// Credential is the subset of a service-account key the token exchange needs.
type Credential struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccount parses a raw credential blob into a Credential.
//
// Deployment tooling mangles the secret in predictable ways: base64-wrapped
// JSON, one layer of surrounding quotes, backslash-escaped quotes, and
// private keys whose newlines arrive as literal \n or \\n sequences. All of
// those variants normalize to the same credential. When the private key
// cannot be repaired into text with intact PEM markers, parsing fails rather
// than returning a partially repaired key.
func ParseServiceAccount(raw string) (*Credential, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &NormalizationError{Reason: "empty credential"}
	}

	text := decodeOuter(raw)

	var cred Credential
	if err := json.Unmarshal([]byte(text), &cred); err != nil {
		// Secrets pasted through shells sometimes arrive with every quote
		// escaped; undo one escaping layer and retry.
		text = unescapeJSON(text)
		if err := json.Unmarshal([]byte(text), &cred); err != nil {
			return nil, &NormalizationError{
				Reason: fmt.Sprintf("not valid JSON (length %d, prefix %q)", len(raw), safePrefix(raw)),
			}
		}
	}

	key, err := normalizePrivateKey(cred.PrivateKey)
	if err != nil {
		return nil, err
	}
	cred.PrivateKey = key

	if cred.ClientEmail == "" {
		return nil, &NormalizationError{Reason: "client_email missing"}
	}
	if cred.TokenURI == "" {
		cred.TokenURI = defaultTokenURI
	}

	return &cred, nil
}

// decodeOuter undoes the outermost encoding layer: base64-of-JSON when the
// decoded text starts with '{', otherwise one layer of surrounding quotes.
func decodeOuter(raw string) string {
	s := strings.TrimSpace(raw)

	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		if d := strings.TrimSpace(string(decoded)); strings.HasPrefix(d, "{") {
			return d
		}
	}

	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			s = s[1 : len(s)-1]
		}
	}

	return s
}

func unescapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\n`, `\n`)
	return s
}

// normalizePrivateKey turns leftover escape sequences in the key field into
// real newlines and verifies the PEM markers survived. It never returns a
// key without both markers.
func normalizePrivateKey(key string) (string, error) {
	k := strings.TrimSpace(key)
	k = strings.Trim(k, `"'`)

	k = strings.ReplaceAll(k, `\\n`, "\n")
	k = strings.ReplaceAll(k, `\n`, "\n")
	k = strings.ReplaceAll(k, `\r`, "")
	k = strings.ReplaceAll(k, "\r\n", "\n")
	k = strings.ReplaceAll(k, "\r", "\n")

	if !strings.Contains(k, pemBeginMarker) || !strings.Contains(k, pemEndMarker) {
		return "", &NormalizationError{
			Reason: fmt.Sprintf("private key missing PEM markers (length %d)", len(key)),
		}
	}

	if !strings.HasSuffix(k, "\n") {
		k += "\n"
	}

	return k, nil
}

// safePrefix returns up to 12 printable characters from the start of s, for
// diagnostics that must not leak secret material.
func safePrefix(s string) string {
	const n = 12
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > n {
		trimmed = trimmed[:n]
	}
	var b strings.Builder
	for _, r := range trimmed {
		if r < 32 || r > 126 {
			b.WriteRune('.')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
