//go:build integration
// +build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	httpapi "github.com/lancehub/lancehub/internal/api/http"
	"github.com/lancehub/lancehub/internal/application/auth"
	"github.com/lancehub/lancehub/internal/application/dispatch"
	"github.com/lancehub/lancehub/internal/application/negotiation"
	appProject "github.com/lancehub/lancehub/internal/application/project"
	"github.com/lancehub/lancehub/internal/infrastructure/postgres"
	"github.com/lancehub/lancehub/internal/infrastructure/sse"
)

const testPassword = "S3cure!Passw0rd"

func TestNegotiationFlowIntegration(t *testing.T) {
	server, cleanup := newTestServer(t)
	defer cleanup()

	clientUser := registerAndLogin(t, server.URL, "CLIENT")
	freelancer := registerAndLogin(t, server.URL, "FREELANCER")

	var proj map[string]interface{}
	postJSON(t, clientUser, server.URL+"/v1/projects", map[string]string{
		"title":  "Landing page redesign",
		"budget": "1000",
	}, &proj)
	projectID := proj["projectId"].(string)

	var b map[string]interface{}
	postJSON(t, freelancer, server.URL+"/v1/bids", map[string]interface{}{
		"projectId":        projectID,
		"amount":           "500",
		"deliveryTimeDays": 14,
		"proposalText":     "I can deliver this in two weeks.",
	}, &b)
	bidID := b["bidId"].(string)
	if b["status"] != "PENDING" {
		t.Fatalf("expected PENDING, got %v", b["status"])
	}

	var countered map[string]interface{}
	postJSON(t, clientUser, server.URL+"/v1/bids/"+bidID+"/counter", map[string]interface{}{
		"version":          int64(1),
		"amount":           "400",
		"deliveryTimeDays": 10,
		"message":          "Can you do it for less, faster?",
	}, &countered)
	if countered["status"] != "COUNTERED" {
		t.Fatalf("expected COUNTERED, got %v", countered["status"])
	}

	// A retry against the consumed version must be rejected.
	staleBody, _ := json.Marshal(map[string]interface{}{
		"version":          int64(1),
		"amount":           "450",
		"deliveryTimeDays": 12,
		"message":          "retry",
	})
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/v1/bids/"+bidID+"/counter", bytes.NewReader(staleBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err := clientUser.Do(req)
	if err != nil {
		t.Fatalf("stale counter: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for stale version, got %d", resp.StatusCode)
	}

	var accepted map[string]interface{}
	postJSON(t, freelancer, server.URL+"/v1/bids/"+bidID+"/accept-counter", map[string]interface{}{
		"version": int64(2),
	}, &accepted)
	if accepted["status"] != "ACCEPTED" {
		t.Fatalf("expected ACCEPTED, got %v", accepted["status"])
	}
	if accepted["amount"] != "400" {
		t.Fatalf("accepted bid should carry counter terms, got amount %v", accepted["amount"])
	}

	// The accepted bid moves the project to IN_PROGRESS.
	deadline := time.Now().Add(5 * time.Second)
	for {
		var p map[string]interface{}
		getJSON(t, clientUser, server.URL+"/v1/projects/"+projectID, &p)
		if p["status"] == "IN_PROGRESS" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("project never reached IN_PROGRESS, status %v", p["status"])
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func TestSSEDeliveryIntegration(t *testing.T) {
	server, cleanup := newTestServer(t)
	defer cleanup()

	clientUser := registerAndLogin(t, server.URL, "CLIENT")
	freelancer := registerAndLogin(t, server.URL, "FREELANCER")

	var proj map[string]interface{}
	postJSON(t, clientUser, server.URL+"/v1/projects", map[string]string{
		"title": "API backend",
	}, &proj)
	projectID := proj["projectId"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/v1/stream", nil)
	if err != nil {
		t.Fatalf("sse request: %v", err)
	}
	resp, err := clientUser.Do(req)
	if err != nil {
		t.Fatalf("sse connect: %v", err)
	}
	defer resp.Body.Close()

	msgCh := make(chan map[string]interface{}, 1)
	go func() {
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data: ") {
				payload := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
				var msg map[string]interface{}
				if err := json.Unmarshal([]byte(payload), &msg); err == nil {
					msgCh <- msg
					return
				}
			}
		}
	}()

	var b map[string]interface{}
	postJSON(t, freelancer, server.URL+"/v1/bids", map[string]interface{}{
		"projectId":        projectID,
		"amount":           "750",
		"deliveryTimeDays": 21,
		"proposalText":     "Three weeks, fixed price.",
	}, &b)

	select {
	case msg := <-msgCh:
		if msg["event"] != "bid.changed" {
			t.Fatalf("unexpected event: %v", msg["event"])
		}
		data, ok := msg["data"].(map[string]interface{})
		if !ok || data["bidId"] != b["bidId"] {
			t.Fatalf("unexpected SSE payload: %v", msg["data"])
		}
		if data["newStatus"] != "PENDING" {
			t.Fatalf("expected PENDING in payload, got %v", data["newStatus"])
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("SSE message not received")
	}
}

func registerAndLogin(t *testing.T, baseURL, role string) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{Timeout: 10 * time.Second, Jar: jar}

	username := strings.ToLower(gofakeit.Username())
	if len(username) < 4 {
		username = username + "user"
	}
	postJSON(t, client, baseURL+"/v1/auth/register", map[string]string{
		"username": username,
		"password": testPassword,
		"role":     role,
	}, nil)
	var out map[string]interface{}
	postJSON(t, client, baseURL+"/v1/auth/login", map[string]string{
		"username": username,
		"password": testPassword,
	}, &out)
	return client
}

func newTestServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()
	dsn := testDatabaseURL(t)

	ctx, cancel := context.WithCancel(context.Background())
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		cancel()
		t.Fatalf("db pool: %v", err)
	}

	if err := postgres.RunMigrations(dsn); err != nil {
		pool.Close()
		cancel()
		t.Fatalf("migrations: %v", err)
	}
	if err := resetDatabase(ctx, pool); err != nil {
		pool.Close()
		cancel()
		t.Fatalf("reset db: %v", err)
	}

	logger := zerolog.Nop()
	bidRepo := postgres.NewBidRepository(pool)
	projectRepo := postgres.NewProjectRepository(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	filterRepo := postgres.NewFilterRepository(pool)

	sseHub := sse.NewHub()
	dispatcher := dispatch.New(sseHub, filterRepo, 256, logger)
	go dispatcher.Run(ctx)

	negotiationSvc := negotiation.NewService(bidRepo, projectRepo, dispatcher, logger)
	projectSvc := appProject.NewService(projectRepo, logger)
	authSvc := auth.NewService(accountRepo, sessionRepo, 24*time.Hour, logger)

	apiServer := httpapi.NewServer(negotiationSvc, projectSvc, authSvc, filterRepo, sseHub, "lancehub_session", false)
	server := httptest.NewServer(apiServer.Router())

	cleanup := func() {
		server.Close()
		cancel()
		sseHub.Stop()
		pool.Close()
	}

	return server, cleanup
}

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	t.Skip("TEST_DATABASE_URL not set; skipping integration tests")
	return ""
}

func resetDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		TRUNCATE TABLE
			notification_filters,
			bids,
			projects,
			sessions,
			accounts
		RESTART IDENTITY CASCADE
	`)
	return err
}

func postJSON(t *testing.T, client *http.Client, url string, body interface{}, out interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("post %s status %d: %s", url, resp.StatusCode, string(bodyBytes))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func getJSON(t *testing.T, client *http.Client, url string, out interface{}) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("get %s status %d: %s", url, resp.StatusCode, string(bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
