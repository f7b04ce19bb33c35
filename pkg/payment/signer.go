package payment

import (
	"encoding/base64"
	"regexp"
	"strings"
	"time"
)

// Daraja expects timestamps in Kenyan local time, not UTC.
var nairobi = func() *time.Location {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}()

var subscriberPattern = regexp.MustCompile(`^254[17]\d{8}$`)

// Timestamp formats t as the 14-digit YYYYMMDDHHmmss string the gateway
// signs against. Regenerate per request: it is an input to Password and must
// match the gateway's clock within its tolerance window.
func Timestamp(t time.Time) string {
	return t.In(nairobi).Format("20060102150405")
}

// Password derives the STK push password: base64(shortCode + passKey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// NormalizePhoneNumber canonicalizes raw into 254XXXXXXXXX form. It strips
// non-digits, maps a leading 0 to the 254 country prefix, and prepends 254
// when no recognized prefix is present. The result must match 254, then 1 or
// 7, then 8 digits; anything else is ErrInvalidPhoneNumber.
//
// The UI and the initiator each validate independently; both go through this
// function so they agree on which numbers may reach the gateway.
func NormalizePhoneNumber(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	switch {
	case strings.HasPrefix(cleaned, "0"):
		cleaned = "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "254"):
		// already prefixed (covers +254 input, the + is stripped above)
	default:
		cleaned = "254" + cleaned
	}

	if !subscriberPattern.MatchString(cleaned) {
		return "", ErrInvalidPhoneNumber
	}
	return cleaned, nil
}
