package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch    = errors.New("csrf token mismatch")
	ErrTokenMissing     = errors.New("csrf token missing")
	ErrTokenExpired     = errors.New("csrf token expired")
	ErrSecureKeyMissing = errors.New("csrf secure key required")
)

// DefaultTokenLength is the nonce length in bytes for minted tokens
const DefaultTokenLength = 32

// DefaultContextKey is the default key for storing tokens in context
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the default name for the token form field
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the default header name for tokens
const DefaultHeaderName = "X-CSRF-Token"

// Config defines the configuration for CSRF middleware. Tokens are
// stateless: an HMAC over a timestamp, a nonce and the requester identity,
// verified with SecureKey on every unsafe request.
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// TokenLength defines the nonce length of the generated token
	TokenLength int

	// ContextKey defines the key for storing the token in context
	ContextKey string

	// FormFieldName defines the name of the form field containing the token
	FormFieldName string

	// HeaderName defines the header name for the token
	HeaderName string

	// TokenLookup defines where to look for the token
	// Format: "form:_token,header:X-CSRF-Token"
	TokenLookup string

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler

	// SuccessHandler defines the success handler
	SuccessHandler router.HandlerFunc

	// SafeMethods defines HTTP methods that don't require validation
	SafeMethods []string

	// Expiration defines how long minted tokens stay valid
	Expiration time.Duration

	// SecureKey signs tokens. Must be at least 32 bytes.
	SecureKey []byte
}

// TokenExtractor defines a function to extract a token from the request
type TokenExtractor func(router.Context) (string, error)

// New creates the CSRF middleware. Every request gets a fresh token minted
// into the context locals so handlers can render it into forms; unsafe
// methods must additionally present a valid token to pass.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := configDefault(config...)

		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			token, err := mintToken(ctx, cfg)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
			ctx.Locals(cfg.ContextKey+"_header", cfg.HeaderName)

			method := strings.ToUpper(ctx.Method())
			if slices.Contains(cfg.SafeMethods, method) {
				return cfg.SuccessHandler(ctx)
			}

			if err := validateToken(ctx, cfg); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// TokenFromContext returns the token minted for the current request, or the
// empty string when the middleware did not run.
func TokenFromContext(ctx router.Context, contextKey string) string {
	if contextKey == "" {
		contextKey = DefaultContextKey
	}

	if val := ctx.Locals(contextKey); val != nil {
		if token, ok := val.(string); ok {
			return token
		}
	}

	return ""
}

// FieldHTML renders the hidden input carrying the current request token, for
// embedding into server rendered forms.
func FieldHTML(ctx router.Context, contextKey string) string {
	if contextKey == "" {
		contextKey = DefaultContextKey
	}

	token := TokenFromContext(ctx, contextKey)

	fieldName := DefaultFormFieldName
	if raw := ctx.Locals(contextKey + "_field"); raw != nil {
		if val, ok := raw.(string); ok && val != "" {
			fieldName = val
		}
	}

	return `<input type="hidden" name="` + fieldName + `" value="` + token + `">`
}

func mintToken(ctx router.Context, cfg Config) (string, error) {
	if len(cfg.SecureKey) == 0 {
		return "", ErrSecureKeyMissing
	}

	nonce := make([]byte, cfg.TokenLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	timestamp := time.Now().UTC().Unix()
	payload := fmt.Sprintf("%d:%s:%s", timestamp, hex.EncodeToString(nonce), requesterKey(ctx))

	mac := hmac.New(sha256.New, cfg.SecureKey)
	mac.Write([]byte(payload))
	signature := mac.Sum(nil)

	token := fmt.Sprintf("%s:%s", payload, hex.EncodeToString(signature))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func validateToken(ctx router.Context, cfg Config) error {
	received, err := extractToken(ctx, cfg)
	if err != nil {
		return err
	}

	if received == "" {
		return ErrTokenMissing
	}

	if len(cfg.SecureKey) == 0 {
		return ErrSecureKeyMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(received)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return ErrTokenMismatch
	}

	timestampStr, nonceHex, requesterFromToken, signatureHex := parts[0], parts[1], parts[2], parts[3]

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	if _, err := hex.DecodeString(nonceHex); err != nil {
		return ErrTokenMismatch
	}

	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return ErrTokenMismatch
	}

	payload := strings.Join(parts[:3], ":")
	mac := hmac.New(sha256.New, cfg.SecureKey)
	mac.Write([]byte(payload))
	expectedSignature := mac.Sum(nil)

	if !hmac.Equal(signature, expectedSignature) {
		return ErrTokenMismatch
	}

	if subtle.ConstantTimeCompare([]byte(requesterFromToken), []byte(requesterKey(ctx))) != 1 {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 {
		expiresAt := time.Unix(timestamp, 0).Add(cfg.Expiration)
		if time.Now().UTC().After(expiresAt) {
			return ErrTokenExpired
		}
	}

	return nil
}

func extractToken(ctx router.Context, cfg Config) (string, error) {
	extractors := getExtractors(cfg.TokenLookup, cfg.FormFieldName, cfg.HeaderName)

	for _, extractor := range extractors {
		token, err := extractor(ctx)
		if token != "" && err == nil {
			return token, nil
		}
	}

	return "", nil
}

// requesterKey binds a token to the visitor it was minted for. Password
// reset visitors are anonymous, so the fallback is address based.
func requesterKey(ctx router.Context) string {
	if userID := ctx.Locals("user_id"); userID != nil {
		if id, ok := userID.(string); ok && id != "" {
			return "csrf_user_" + id
		}
	}

	return "csrf_ip_" + ctx.IP()
}

// getExtractors returns token extractors based on configuration
func getExtractors(tokenLookup, formField, header string) []TokenExtractor {
	var extractors []TokenExtractor

	if tokenLookup == "" {
		extractors = append(extractors,
			extractorFromForm(formField),
			extractorFromHeader(header),
		)
		return extractors
	}

	// Parse tokenLookup: "form:_token,header:X-CSRF-Token"
	parts := strings.Split(tokenLookup, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "form:") {
			field := strings.TrimPrefix(part, "form:")
			extractors = append(extractors, extractorFromForm(field))
		} else if strings.HasPrefix(part, "header:") {
			headerName := strings.TrimPrefix(part, "header:")
			extractors = append(extractors, extractorFromHeader(headerName))
		}
	}

	return extractors
}

// extractorFromForm extracts a token from form data
func extractorFromForm(fieldName string) TokenExtractor {
	return func(ctx router.Context) (string, error) {
		return ctx.FormValue(fieldName), nil
	}
}

// extractorFromHeader extracts a token from a request header
func extractorFromHeader(headerName string) TokenExtractor {
	return func(ctx router.Context) (string, error) {
		return ctx.GetString(headerName, ""), nil
	}
}

// configDefault returns a default config
func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}

	if cfg.Expiration == 0 {
		cfg.Expiration = 24 * time.Hour
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	cfg.SecureKey = initializeSecureKey(cfg.SecureKey)

	return cfg
}

// defaultErrorHandler answers with the same JSON envelope the routes it
// guards use for their own failures.
func defaultErrorHandler(ctx router.Context, err error) error {
	status := router.StatusForbidden
	message := "Invalid request token"

	switch err {
	case ErrTokenMissing:
		status = router.StatusBadRequest
		message = "Missing request token"
	case ErrTokenExpired:
		message = "Request token expired"
	case ErrTokenMismatch:
	default:
		status = router.StatusInternalServerError
		message = "Internal Server Error"
	}

	return ctx.JSON(status, map[string]any{
		"success": false,
		"message": message,
	})
}

func initializeSecureKey(current []byte) []byte {
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
