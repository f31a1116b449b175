package helper

import "strings"

// JIDLocalPart ambil bagian sebelum @ dan buang device suffix.
// "6285148107612:43@s.whatsapp.net" -> "6285148107612"
func JIDLocalPart(jid string) string {
	atSplit := strings.SplitN(jid, "@", 2)
	if len(atSplit) == 0 {
		return jid
	}
	beforeAt := atSplit[0]
	colonSplit := strings.SplitN(beforeAt, ":", 2)
	return colonSplit[0]
}

// IsLinkedJID deteksi identifier @lid (alias privacy-preserving).
// Identifier jenis ini tidak stabil untuk dipakai sebagai chat key.
func IsLinkedJID(jid string) bool {
	return strings.HasSuffix(jid, "@lid")
}

// IsGroupJID deteksi JID group.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@g.us")
}
