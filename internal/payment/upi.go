package payment

import (
	"net/url"
	"strconv"
	"strings"
)

// UPI renders upi://pay links. The engine stores and relays the result
// without parsing it back.
type UPI struct {
	PayeeName string
	Currency  string
}

func (u UPI) RenderPayout(payee string, amount int64, paymentID string) string {
	name := u.PayeeName
	if name == "" {
		name = "Premium Access"
	}
	currency := u.Currency
	if currency == "" {
		currency = "INR"
	}
	params := [][2]string{
		{"pa", payee},
		{"pn", name},
		{"am", strconv.FormatInt(amount, 10)},
		{"cu", currency},
		{"tn", "Premium-" + paymentID},
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p[0]+"="+escape(p[1]))
	}
	return "upi://pay?" + strings.Join(parts, "&")
}

var unescapeUPI = strings.NewReplacer("+", "%20", "%40", "@")

func escape(v string) string {
	return unescapeUPI.Replace(url.QueryEscape(v))
}
