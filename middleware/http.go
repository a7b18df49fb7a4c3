// middleware/http.go
package middleware

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// commonLogFormat matches the access log lines the service has always written.
const commonLogFormat = "${ip} - - [${time}] \"${method} ${url} ${httpVersion}\" ${status} ${bytesSent}\n"

// Options configures the middleware chain installed by Setup.
type Options struct {
	AllowedOrigins  []string
	RateLimitMax    int
	RateLimitWindow time.Duration
	AccessLog       io.Writer // nil disables the access log
	Logger          *log.Logger
}

// Setup installs, in order: panic recovery, request ids, the access log,
// CORS, and the rate limiter.
func Setup(app *fiber.App, opts Options) {
	app.Use(Recover(opts.Logger))
	app.Use(requestid.New())
	if opts.AccessLog != nil {
		app.Use(AccessLog(opts.AccessLog))
	}
	app.Use(CORS(opts.AllowedOrigins))
	if opts.RateLimitMax > 0 {
		app.Use(RateLimit(opts.RateLimitMax, opts.RateLimitWindow))
	}
}

// Recover turns a panic in a handler into an error for the app's
// ErrorHandler, so the client still gets one JSON response.
func Recover(l *log.Logger) fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			l.Error("panic in handler", "method", c.Method(), "path", c.Path(), "panic", fmt.Sprint(e))
		},
	})
}

func AccessLog(w io.Writer) fiber.Handler {
	return logger.New(logger.Config{
		Format:     commonLogFormat,
		TimeFormat: "02/Jan/2006:15:04:05 -0700",
		Output:     w,
		CustomTags: map[string]logger.LogFunc{
			// ${protocol} is the scheme in fiber; the access log wants HTTP/1.1.
			"httpVersion": func(output logger.Buffer, c *fiber.Ctx, _ *logger.Data, _ string) (int, error) {
				return output.Write(c.Context().Request.Header.Protocol())
			},
		},
	})
}

func CORS(origins []string) fiber.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Requested-With, X-Request-ID",
		MaxAge:       86400,
	})
}

// RateLimit allows max requests per client IP in each window.
func RateLimit(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later.")
		},
	})
}
