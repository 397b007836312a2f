package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Priya8975/signalcore-billing/internal/billing"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

var requestCount atomic.Int64

func main() {
	var (
		serve  bool
		port   string
		target string
		secret string
		email  string
		name   string
		amount int64
		evType string
	)

	flagSet := pflag.NewFlagSet("mock-provider", pflag.ContinueOnError)
	flagSet.BoolVar(&serve, "serve", false, "run fake identity and mail APIs instead of sending an event")
	flagSet.StringVar(&port, "port", "9090", "listen port for --serve")
	flagSet.StringVar(&target, "url", "http://localhost:8080/api/webhooks/stripe", "webhook endpoint to post to")
	flagSet.StringVar(&secret, "secret", os.Getenv("STRIPE_WEBHOOK_SECRET"), "webhook signing secret")
	flagSet.StringVar(&email, "email", "owner@example.com", "customer email")
	flagSet.StringVar(&name, "name", "Example Roofing", "customer name")
	flagSet.Int64Var(&amount, "amount", 250000, "amount in cents")
	flagSet.StringVar(&evType, "type", billing.TypeCheckoutCompleted, "provider event type")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatalf("error: %v", err)
	}

	if serve {
		runFakeAPIs(port)
		return
	}

	if secret == "" {
		log.Fatal("error: --secret or STRIPE_WEBHOOK_SECRET is required")
	}

	body, err := json.Marshal(sampleEvent(evType, email, name, amount))
	if err != nil {
		log.Fatalf("encoding event: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", billing.SignPayload(body, secret, time.Now()))

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("posting event: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	fmt.Printf("%s %s -> %d %s\n", evType, email, resp.StatusCode, strings.TrimSpace(string(respBody)))
}

// sampleEvent builds a minimal provider event of the requested type.
func sampleEvent(evType, email, name string, amount int64) map[string]any {
	object := map[string]any{}
	switch evType {
	case billing.TypeCheckoutCompleted:
		object["customer_details"] = map[string]any{
			"email": email,
			"name":  name,
			"phone": "+15555550100",
		}
		object["amount_total"] = amount
	case billing.TypeInvoicePaymentSucceeded, billing.TypeInvoicePaid:
		object["customer_email"] = email
		object["customer_name"] = name
		object["amount_paid"] = amount
	default:
		object["customer_email"] = email
	}

	return map[string]any{
		"id":      "evt_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		"type":    evType,
		"created": time.Now().Unix(),
		"data":    map[string]any{"object": object},
	}
}

// runFakeAPIs serves stand-ins for the identity admin API and the mail API
// so the server can run end to end without external accounts.
func runFakeAPIs(port string) {
	var (
		mu    sync.Mutex
		users = map[string]string{}
	)

	http.HandleFunc("/auth/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)

		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
			logRequest(r, count, http.StatusBadRequest)
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "email is required"})
			return
		}

		mu.Lock()
		_, exists := users[req.Email]
		id := uuid.NewString()
		if !exists {
			users[req.Email] = id
		}
		mu.Unlock()

		if exists {
			logRequest(r, count, http.StatusUnprocessableEntity)
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error_code": "email_exists",
				"msg":        "A user with this email address has already been registered",
			})
			return
		}

		logRequest(r, count, http.StatusOK)
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "email": req.Email})
	})

	http.HandleFunc("/emails", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)

		var msg struct {
			To      []string `json:"to"`
			Subject string   `json:"subject"`
		}
		_ = json.NewDecoder(r.Body).Decode(&msg)
		logRequest(r, count, http.StatusOK)
		fmt.Printf("      to=%s subject=%q\n", strings.Join(msg.To, ","), msg.Subject)

		writeJSON(w, http.StatusOK, map[string]string{"id": uuid.NewString()})
	})

	// Stats endpoint shows request count
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n := len(users)
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]int64{
			"total_requests": requestCount.Load(),
			"users":          int64(n),
		})
	})

	log.Printf("Mock provider APIs starting on :%s", port)
	log.Printf("  POST /auth/v1/admin/users  -> create user (422 if email exists)")
	log.Printf("  POST /emails               -> accept email")
	log.Printf("  GET  /stats                -> request count")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func logRequest(r *http.Request, count int64, status int) {
	fmt.Printf("[#%d] %s %s -> %d | auth=%s\n",
		count,
		r.Method,
		r.URL.Path,
		status,
		truncate(r.Header.Get("Authorization"), 12),
	)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
