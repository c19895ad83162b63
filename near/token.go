package near

import (
	"encoding/base64"
	"encoding/json"

	"github.com/goliatone/go-errors"
)

// AuthToken is the decoded wire envelope a wallet submits after signing the
// sign-in message. It travels base64 encoded over the API as an opaque
// string.
type AuthToken struct {
	AccountID   string `json:"account_id"`
	PublicKey   string `json:"public_key"`
	Signature   string `json:"signature"`
	Message     string `json:"message"`
	Recipient   string `json:"recipient"`
	Nonce       string `json:"nonce"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// EncodeAuthToken serializes the envelope into the opaque wire string.
func EncodeAuthToken(token *AuthToken) (string, error) {
	raw, err := json.Marshal(token)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to encode auth token")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeAuthToken parses the opaque wire string back into the envelope.
func DecodeAuthToken(encoded string) (*AuthToken, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "auth token is not valid base64")
	}

	token := new(AuthToken)
	if err := json.Unmarshal(raw, token); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "auth token is not valid JSON")
	}

	return token, nil
}
