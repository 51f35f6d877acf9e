package paystack

import "strings"

// bankCodes maps free-text bank names (as hosts type them) to Paystack bank
// codes. Lookup is case-insensitive on the trimmed name.
var bankCodes = map[string]string{
	"kcb":                      "068",
	"kcb bank":                 "068",
	"kenya commercial bank":    "068",
	"equity":                   "247",
	"equity bank":              "247",
	"co-operative bank":        "070",
	"cooperative bank":         "070",
	"co-op bank":               "070",
	"absa":                     "031",
	"absa bank kenya":          "031",
	"standard chartered":       "002",
	"stanbic":                  "072",
	"stanbic bank":             "072",
	"ncba":                     "007",
	"ncba bank":                "007",
	"dtb":                      "049",
	"diamond trust bank":       "049",
	"family bank":              "074",
	"i&m bank":                 "057",
	"national bank":            "012",
	"national bank of kenya":   "012",
	"mpesa":                    "MPESA",
	"m-pesa":                   "MPESA",
	"safaricom m-pesa":         "MPESA",
}

// BankCode resolves a free-text bank name to a gateway bank code. Unmapped
// names pass through verbatim (lowercased, trimmed) rather than failing; the
// gateway rejects codes it does not know.
func BankCode(bankName string) string {
	key := strings.ToLower(strings.TrimSpace(bankName))
	if code, ok := bankCodes[key]; ok {
		return code
	}
	return key
}
