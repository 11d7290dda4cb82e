package tokenstore

import (
	"strings"
	"time"
	"unicode"
)

// Source tags where a stored refresh token came from.
type Source string

const (
	// SourceConfig marks a token imported from the configuration on first use.
	SourceConfig Source = "config"
	// SourceAuthorization marks a token obtained through the authorization-code flow.
	SourceAuthorization Source = "authorization"
	// SourceRotation marks a token the vendor issued while refreshing an access token.
	SourceRotation Source = "rotation"
	// SourceImport marks a token imported manually through the CLI.
	SourceImport Source = "import"
)

// Record is the persisted state for one vehicle.
type Record struct {
	RefreshToken string    `json:"refreshToken"`
	VIN          string    `json:"vin"`
	UpdatedAt    time.Time `json:"updatedAt"` // RFC 3339
	Source       Source    `json:"source"`
}

const keyPrefix = "refresh-token-"

// Key derives the storage key for a VIN. VINs are case-insensitive and anything that
// is not a letter or digit is dropped, so the key is safe as a file name.
func Key(vin string) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	for _, r := range strings.ToUpper(vin) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
