package helper

import (
	"regexp"
	"strings"
)

var nonDigit = regexp.MustCompile(`[^\d]`)

// NormalizeRecipient menerima chat id dalam bentuk JID penuh maupun nomor
// telepon polos. Nomor polos dibersihkan dan dikonversi ke JID user:
//
//	"0812-3456-7890" -> "6281234567890@s.whatsapp.net"
//	"628123456789"   -> "628123456789@s.whatsapp.net"
//	"xxx@g.us"       -> apa adanya
func NormalizeRecipient(chatID string) string {
	if strings.Contains(chatID, "@") {
		return chatID
	}

	cleaned := nonDigit.ReplaceAllString(chatID, "")
	if cleaned == "" {
		return chatID
	}

	// Auto-convert 0xxx → 62xxx
	if strings.HasPrefix(cleaned, "0") {
		cleaned = "62" + cleaned[1:]
	}

	return cleaned + "@s.whatsapp.net"
}
