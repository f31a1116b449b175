package service

import (
	"strings"

	"gowa-gateway/internal/helper"
)

// bareNumericThreshold: kandidat nama yang cuma angka (boleh ber-strip) dan
// lebih panjang dari ini dianggap nomor telepon nyasar, bukan nama.
const bareNumericThreshold = 5

// identityBook menyatukan identifier chat yang tidak konsisten ke satu
// canonical key, plus nama tampilan terbaik per chat.
// Dimiliki satu Session; akses dari luar callback stream lewat mutex Session.
type identityBook struct {
	// aliases: raw alternate id (@lid) -> canonical id (@s.whatsapp.net)
	aliases map[string]string
	// names: canonical chat id -> nama tampilan terbaik
	names map[string]string
}

func newIdentityBook() *identityBook {
	return &identityBook{
		aliases: make(map[string]string),
		names:   make(map[string]string),
	}
}

// Canonical resolve canonical chat id. Kalau rawChatID berjenis linked (@lid)
// dan ada alternate yang resolvable, mapping-nya direkam dulu — pesan lama
// dan baru jadi konvergen di key yang sama.
func (b *identityBook) Canonical(rawChatID, altID string) string {
	if helper.IsLinkedJID(rawChatID) && altID != "" {
		b.aliases[rawChatID] = altID
	}
	if canonical, ok := b.aliases[rawChatID]; ok {
		return canonical
	}
	return rawChatID
}

// ObserveName evaluasi kandidat nama untuk chat ini dan return nama terbaik
// saat ini. Kandidat garbage tidak pernah menimpa nama yang sudah diterima;
// pesan self-sent hanya boleh mengisi kalau nama tersimpan masih garbage.
func (b *identityBook) ObserveName(canonicalID, candidate string, fromMe bool) string {
	current := b.names[canonicalID]
	if !isGarbageName(candidate) && (!fromMe || isGarbageName(current)) {
		b.names[canonicalID] = candidate
		return candidate
	}
	if current != "" {
		return current
	}
	// fallback: local part dari canonical id
	return helper.JIDLocalPart(canonicalID)
}

// Name nama tersimpan untuk chat, dengan fallback local part.
func (b *identityBook) Name(canonicalID string) string {
	if name, ok := b.names[canonicalID]; ok && name != "" {
		return name
	}
	return helper.JIDLocalPart(canonicalID)
}

// adoptName pindahkan nama tersimpan alias ke key canonical. Nama non-garbage
// yang sudah ada di canonical tidak ditimpa.
func (b *identityBook) adoptName(raw, canonical string) {
	name, ok := b.names[raw]
	if !ok {
		return
	}
	delete(b.names, raw)
	if isGarbageName(b.names[canonical]) && !isGarbageName(name) {
		b.names[canonical] = name
	}
}

func (b *identityBook) snapshotNames() map[string]string {
	out := make(map[string]string, len(b.names))
	for k, v := range b.names {
		out[k] = v
	}
	return out
}

// isGarbageName: kosong, mengandung separator identifier, atau string numerik
// polos (boleh ber-strip) yang kelewat panjang untuk sebuah nama.
func isGarbageName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return true
	}
	if strings.ContainsRune(trimmed, '@') {
		return true
	}
	bare := strings.ReplaceAll(trimmed, "-", "")
	if len(bare) > bareNumericThreshold && isAllDigits(bare) {
		return true
	}
	return false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
