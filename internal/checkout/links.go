package checkout

import (
	"net/url"
	"strings"

	"studioops/backend/internal/domain"
)

// PeerHandles are the shop's receiving accounts for peer-payment apps.
type PeerHandles struct {
	CashApp string
	Venmo   string
}

// PeerLink is a payment request the operator opens on a device. Opening it
// records nothing.
type PeerLink struct {
	Method      domain.PaymentMethod `json:"method"`
	Amount      domain.Money         `json:"amount"`
	URL         string               `json:"url"`
	FallbackURL string               `json:"fallback_url,omitempty"`
}

func cashAppLink(handle string, amount domain.Money, note string) PeerLink {
	if !strings.HasPrefix(handle, "$") {
		handle = "$" + handle
	}
	u := url.URL{
		Scheme:   "https",
		Host:     "cash.app",
		Path:     "/" + handle + "/" + amount.String(),
		RawQuery: url.Values{"note": {note}}.Encode(),
	}
	return PeerLink{Method: domain.MethodCashApp, Amount: amount, URL: u.String()}
}

// venmoLink deep-links into the app and falls back to the web profile.
func venmoLink(handle string, amount domain.Money, note string) PeerLink {
	handle = strings.TrimPrefix(handle, "@")

	app := url.URL{
		Scheme: "venmo",
		Host:   "paycharge",
		RawQuery: encodeOrdered(
			"txn", "pay",
			"recipients", handle,
			"amount", amount.String(),
			"note", note,
		),
	}
	web := url.URL{
		Scheme: "https",
		Host:   "venmo.com",
		Path:   "/" + handle,
		RawQuery: encodeOrdered(
			"txn", "pay",
			"amount", amount.String(),
			"note", note,
		),
	}
	return PeerLink{Method: domain.MethodVenmo, Amount: amount, URL: app.String(), FallbackURL: web.String()}
}

// encodeOrdered keeps parameters in the order given; url.Values sorts them.
func encodeOrdered(kv ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[i]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[i+1]))
	}
	return b.String()
}
