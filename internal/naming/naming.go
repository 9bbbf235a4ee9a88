// Package naming derives archive-safe file names for receipt attachments.
package naming

import (
	"fmt"
	"regexp"
	"strings"

	"caixa/internal/apperror"
	"caixa/internal/model"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

const maxClientPart = 40

// acceptedExtensions are the receipt types the register stores: images and PDF.
var acceptedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
	"heic": true,
	"pdf":  true,
}

var (
	unsafeChars = regexp.MustCompile(`[^a-z0-9_-]+`)
	repeatedSep = regexp.MustCompile(`[_-]{2,}`)
)

// NormalizeExtension lower-cases ext, drops a leading dot and checks it
// against the accepted receipt types.
func NormalizeExtension(ext string) (string, error) {
	e := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if !acceptedExtensions[e] {
		return "", &apperror.InvalidExtensionError{Ext: ext}
	}
	return e, nil
}

// SanitizeClient folds a client name into [a-z0-9_-]. Accented letters are
// transliterated first so "João" becomes "joao" rather than "jo_o".
func SanitizeClient(name string) string {
	s := slug.Make(name)
	s = unsafeChars.ReplaceAllString(strings.ToLower(s), "_")
	s = repeatedSep.ReplaceAllStringFunc(s, func(m string) string { return m[:1] })
	s = strings.Trim(s, "_-")
	if len(s) > maxClientPart {
		s = strings.TrimRight(s[:maxClientPart], "_-")
	}
	if s == "" {
		return "client"
	}
	return s
}

// ReceiptName builds {id}_{day}_{method}_{client}_{amount}.{ext}. The zero
// padded id prefix keeps names unique when two payments share client, method
// and amount on the same day.
func ReceiptName(id int64, day string, client string, method model.Method, amount decimal.Decimal, ext string) (string, error) {
	e, err := NormalizeExtension(ext)
	if err != nil {
		return "", err
	}
	amt := strings.ReplaceAll(amount.StringFixed(2), ".", "-")
	return fmt.Sprintf("%06d_%s_%s_%s_%s.%s",
		id, day, strings.ToLower(string(method)), SanitizeClient(client), amt, e), nil
}

// ForPayment is ReceiptName applied to a stored payment. Payments without a
// receipt have no name.
func ForPayment(p *model.Payment) (string, error) {
	if !p.HasReceipt() {
		return "", nil
	}
	return ReceiptName(p.ID, p.Day, p.ClientName, p.Method, p.Amount, *p.ReceiptExt)
}
