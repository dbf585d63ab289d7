//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/darigo/apiserver/config"
	"github.com/darigo/apiserver/internal/db"
	"github.com/darigo/apiserver/internal/server"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

const (
	serverPort    = 18080
	adminEmail    = "ops@darigo.test"
	adminPassword = "admin-pass-123"
)

var (
	baseURL = fmt.Sprintf("http://localhost:%d", serverPort)
	testCfg config.Config
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("darigo_e2e"),
		postgres.WithUsername("darigo"),
		postgres.WithPassword("darigo"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
		os.Exit(1)
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	testCfg, err = buildConfig(ctx, container)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve postgres address: %v\n", err)
		terminate()
		os.Exit(1)
	}

	if err := db.MigrateUp(db.PostgresURL(testCfg.Database)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		terminate()
		os.Exit(1)
	}

	logger := zap.NewNop()
	if _, _, err := server.ProvisionAdmin(ctx, testCfg, logger, "Operator", adminEmail, adminPassword); err != nil {
		fmt.Fprintf(os.Stderr, "failed to provision admin: %v\n", err)
		terminate()
		os.Exit(1)
	}

	srv, err := server.New(ctx, testCfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		terminate()
		os.Exit(1)
	}
	go func() {
		_ = srv.Start()
	}()

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		terminate()
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	terminate()
	os.Exit(code)
}

func buildConfig(ctx context.Context, container *postgres.PostgresContainer) (config.Config, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return config.Config{}, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return config.Config{}, err
	}
	return config.Config{
		Env:            config.EnvDev,
		ServerPort:     serverPort,
		RequestTimeout: 10 * time.Second,
		BcryptCost:     4,
		JWT: config.JWTConfig{
			Secret: "e2e-secret-0123456789abcdef0123456789",
			TTL:    time.Hour,
		},
		DBDriver: "postgres",
		Database: config.DatabaseConfig{
			Host:     host,
			Port:     port.Int(),
			User:     "darigo",
			Password: "darigo",
			DBName:   "darigo_e2e",
		},
		RateLimit: config.RateLimitConfig{
			Window:       time.Minute,
			APIRequests:  1000,
			AuthFailures: 50,
		},
	}, nil
}

func TestPropertyModerationLifecycle(t *testing.T) {
	email := fmt.Sprintf("owner_%d@example.com", time.Now().UnixNano())
	ownerToken := registerUser(t, email)
	adminToken := login(t, adminEmail, adminPassword)

	var created propertyResponse
	status := doJSON(t, http.MethodPost, "/api/properties", ownerToken, map[string]any{
		"title":       "Villa near the river",
		"type":        "sale",
		"category":    "villa",
		"price":       420000,
		"area":        600,
		"location":    map[string]any{"city": "Erbil", "district": "Ankawa"},
		"status":      "approved",
		"isPublished": true,
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create property status %d", status)
	}
	if created.Status != "pending" || created.IsPublished {
		t.Fatalf("new listing must be pending and unpublished, got %q/%v", created.Status, created.IsPublished)
	}

	if status := doJSON(t, http.MethodGet, "/api/properties/"+created.ID, "", nil, nil); status != http.StatusNotFound {
		t.Fatalf("pending listing visible to anonymous: %d", status)
	}

	var moderated propertyResponse
	status = doJSON(t, http.MethodPatch, "/api/admin/properties/"+created.ID+"/status", adminToken,
		map[string]any{"status": "approved"}, &moderated)
	if status != http.StatusOK {
		t.Fatalf("approve status %d", status)
	}
	if !moderated.IsPublished {
		t.Fatalf("approved listing must be published")
	}

	var list struct {
		Items []propertyResponse `json:"items"`
		Total int                `json:"total"`
	}
	if status := doJSON(t, http.MethodGet, "/api/properties?city=Erbil", "", nil, &list); status != http.StatusOK {
		t.Fatalf("list status %d", status)
	}
	if !containsProperty(list.Items, created.ID) {
		t.Fatalf("approved listing missing from public list")
	}

	if status := doJSON(t, http.MethodDelete, "/api/properties/"+created.ID, adminToken, nil, nil); status != http.StatusNotFound {
		t.Fatalf("owner route let a non-owner delete: %d", status)
	}
	if status := doJSON(t, http.MethodDelete, "/api/properties/"+created.ID, ownerToken, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete status %d", status)
	}
	if status := doJSON(t, http.MethodGet, "/api/properties/"+created.ID, "", nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

type propertyResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	IsPublished bool   `json:"isPublished"`
}

type authResponse struct {
	Token string `json:"token"`
}

func containsProperty(items []propertyResponse, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func registerUser(t *testing.T, email string) string {
	t.Helper()

	var parsed authResponse
	status := doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":            "E2E Owner",
		"email":           email,
		"phone":           "07701234567",
		"password":        "owner-pass-123",
		"confirmPassword": "owner-pass-123",
	}, &parsed)
	if status != http.StatusCreated {
		t.Fatalf("register status %d", status)
	}
	if parsed.Token == "" {
		t.Fatalf("missing token in register response")
	}
	return parsed.Token
}

func login(t *testing.T, email, password string) string {
	t.Helper()

	var parsed authResponse
	status := doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &parsed)
	if status != http.StatusOK {
		t.Fatalf("login status %d", status)
	}
	return parsed.Token
}

// doJSON sends body as JSON and decodes a 2xx response into out.
func doJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	} else if resp.StatusCode >= 500 {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp.StatusCode
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			err = fmt.Errorf("status %s", strconv.Itoa(resp.StatusCode))
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for health: %w", err)
		case <-time.After(500 * time.Millisecond):
		}
	}
}
