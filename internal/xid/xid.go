package xid

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier such as "cash-6f1c...".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

const saleAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// SaleCode returns the short upper-case token printed on receipts and
// promissory notes.
func SaleCode() string {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
	}
	for i, b := range buf {
		buf[i] = saleAlphabet[int(b)%len(saleAlphabet)]
	}
	return string(buf)
}
