package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"game-records-api/handlers"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

func newApp(opts Options) *fiber.App {
	opts.Logger = log.New(io.Discard)
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(opts.Logger)})
	Setup(app, opts)
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })
	return app
}

func TestRecoverAnswersOnce(t *testing.T) {
	app := newApp(Options{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "boom" {
		t.Fatalf("body = %v", body)
	}
}

func TestRateLimit(t *testing.T) {
	app := newApp(Options{RateLimitMax: 2, RateLimitWindow: time.Minute})
	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestAccessLogCommonFormat(t *testing.T) {
	var buf bytes.Buffer
	app := newApp(Options{AccessLog: &buf})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok?x=1", nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	line := buf.String()
	if !strings.Contains(line, `"GET /ok?x=1 HTTP/1.1" 200 2`) {
		t.Fatalf("access log line = %q", line)
	}
}

func TestCORSDefaultsToAnyOrigin(t *testing.T) {
	app := newApp(Options{})
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Origin", "https://example.org")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin = %q", got)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing request id")
	}
}
