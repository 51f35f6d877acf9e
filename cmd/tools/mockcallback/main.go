// mockcallback sends a signed Paystack webhook or a Daraja STK callback to a
// local server, for testing the confirmation endpoints without real gateways.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

func main() {
	mode := flag.String("mode", "paystack", "paystack | mpesa")
	url := flag.String("url", "", "Target URL (defaults per mode)")
	secret := flag.String("secret", os.Getenv("PAYSTACK_SECRET_KEY"), "Paystack secret key for the signature")
	event := flag.String("event", "transfer.success", "Paystack event type")
	reference := flag.String("reference", "po_"+randomHex(8), "Transfer/checkout reference")
	transferCode := flag.String("transfer-code", "TRF_"+randomHex(6), "Paystack transfer code")
	amount := flag.Int64("amount", 1500, "Amount in whole KES")
	resultCode := flag.Int("result-code", 0, "Daraja ResultCode (0 = success)")
	receipt := flag.String("receipt", "QGH7XYZ12", "M-Pesa receipt number")
	dryRun := flag.Bool("dry-run", false, "Print the request without sending")

	flag.Parse()

	var body []byte
	var target string
	headers := map[string]string{"Content-Type": "application/json"}

	switch *mode {
	case "paystack":
		if *secret == "" {
			fmt.Fprintln(os.Stderr, "Error: secret not provided and PAYSTACK_SECRET_KEY not set")
			os.Exit(1)
		}
		target = defaultStr(*url, "http://localhost:8080/webhooks/paystack")
		payload := map[string]any{
			"event": *event,
			"data": map[string]any{
				"reference":     *reference,
				"transfer_code": *transferCode,
				"status":        statusFor(*event),
				"amount":        *amount * 100,
				"reason":        "",
			},
		}
		body, _ = json.Marshal(payload)
		mac := hmac.New(sha512.New, []byte(*secret))
		mac.Write(body)
		headers["x-paystack-signature"] = hex.EncodeToString(mac.Sum(nil))

	case "mpesa":
		target = defaultStr(*url, "http://localhost:8080/api/payments/mpesa/callback")
		cb := map[string]any{
			"MerchantRequestID": "mr_" + randomHex(6),
			"CheckoutRequestID": *reference,
			"ResultCode":        *resultCode,
			"ResultDesc":        descFor(*resultCode),
		}
		if *resultCode == 0 {
			cb["CallbackMetadata"] = map[string]any{
				"Item": []map[string]any{
					{"Name": "Amount", "Value": *amount},
					{"Name": "MpesaReceiptNumber", "Value": *receipt},
				},
			}
		}
		payload := map[string]any{"Body": map[string]any{"stkCallback": cb}}
		body, _ = json.Marshal(payload)

	default:
		fmt.Fprintf(os.Stderr, "Unknown mode %q\n", *mode)
		os.Exit(1)
	}

	fmt.Printf("Body: %s\n", string(body))
	for k, v := range headers {
		if k != "Content-Type" {
			fmt.Printf("%s: %s\n", k, v)
		}
	}

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", target)
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating request: %v\n", err)
		os.Exit(1)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(respBody))

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

func statusFor(event string) string {
	switch event {
	case "transfer.success":
		return "success"
	case "transfer.failed":
		return "failed"
	case "transfer.reversed":
		return "reversed"
	}
	return "pending"
}

func descFor(code int) string {
	if code == 0 {
		return "The service request is processed successfully."
	}
	return "Request cancelled by user"
}

func defaultStr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
