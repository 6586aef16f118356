// Package auth verifies the host chat platform's signed init data and
// mints the session tokens the API accepts.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MaxInitDataAge bounds how old a signed init-data payload may be.
const MaxInitDataAge = 24 * time.Hour

// InitDataUser is the user object embedded in verified init data.
type InitDataUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// VerifyInitData checks the signature on a platform init-data query string
// and returns the embedded user. The scheme: the data-check string is the
// sorted key=value pairs (hash excluded) joined by newlines, the secret key
// is HMAC-SHA256("WebAppData", botToken), and the expected hash is
// HMAC-SHA256(secretKey, dataCheckString) hex-encoded.
func VerifyInitData(initData, botToken string, now time.Time) (*InitDataUser, error) {
	if initData == "" {
		return nil, fmt.Errorf("init data is empty")
	}
	if botToken == "" {
		return nil, fmt.Errorf("bot token is not configured")
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("parse init data: %w", err)
	}

	receivedHash := values.Get("hash")
	if receivedHash == "" {
		return nil, fmt.Errorf("init data has no hash")
	}
	values.Del("hash")

	if authDate := values.Get("auth_date"); authDate != "" {
		ts, err := strconv.ParseInt(authDate, 10, 64)
		if err == nil && ts > 0 && now.Sub(time.Unix(ts, 0)) > MaxInitDataAge {
			return nil, fmt.Errorf("init data is stale")
		}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	checkString := strings.Join(pairs, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(receivedHash)) {
		return nil, fmt.Errorf("init data signature mismatch")
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return nil, fmt.Errorf("init data has no user")
	}
	var u InitDataUser
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
		return nil, fmt.Errorf("parse init data user: %w", err)
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("init data user has no id")
	}
	return &u, nil
}
