package accounts

import (
	"crypto/sha256"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-accounts/middleware/csrf"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
)

// HTTPAuthenticator is the surface the controller needs from the route glue.
type HTTPAuthenticator interface {
	Login(ctx router.Context, username, password string) (string, error)
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
	MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error
}

// RegisterAccountRoutes wires the account lifecycle routes. The JSON API
// lives under /users/api; the two GET routes are the email link landings and
// render pages instead of JSON.
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountsControllerOption) {

	controller := NewAccountsController(opts...)

	protected := controller.Auther.ProtectedRoute(
		controller.Config,
		controller.Auther.MakeClientRouteAuthErrorHandler(false),
	)

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("accounts.register")

	app.Get(fmt.Sprintf("%s/:verificationToken", controller.Routes.VerifyNow), controller.VerifyNow).
		SetName("accounts.verify")

	app.Post(controller.Routes.Authenticate, controller.AuthenticatePost).
		SetName("accounts.authenticate")

	app.Get(controller.Routes.Authenticate, controller.ProfileShow, protected).
		SetName("accounts.profile")

	app.Put(controller.Routes.ResetPassword, controller.ResetPasswordRequest).
		SetName("accounts.pwd-reset.request")

	app.Get(fmt.Sprintf("%s/:resetToken", controller.Routes.ResetPasswordNow), controller.ResetPasswordForm, controller.CSRF).
		SetName("accounts.pwd-reset.form")

	app.Post(controller.Routes.ResetPasswordExec, controller.ResetPasswordExecute, controller.CSRF).
		SetName("accounts.pwd-reset.exec")
}

type AccountsControllerRoutes struct {
	Register          string
	VerifyNow         string
	Authenticate      string
	ResetPassword     string
	ResetPasswordNow  string
	ResetPasswordExec string
}

type AccountsControllerViews struct {
	VerifyResult  string
	ResetPassword string
	Error         string
}

type AccountsController struct {
	Debug     bool
	Logger    Logger
	Repo      RepositoryManager
	Config    Config
	Auther    HTTPAuthenticator
	Mailer    Mailer
	BaseURL   string
	UseHashid bool
	// CSRF guards the reset password form flow. Defaults to the stateless
	// middleware keyed off the signing key when not set.
	CSRF   router.MiddlewareFunc
	Routes *AccountsControllerRoutes
	Views  *AccountsControllerViews
}

type AccountsControllerOption func(*AccountsController) *AccountsController

func NewAccountsController(opts ...AccountsControllerOption) *AccountsController {
	c := &AccountsController{
		Logger: defLogger{},
		Mailer: NoopMailer{},
		Routes: &AccountsControllerRoutes{
			Register:          "/users/api/register",
			VerifyNow:         "/users/verify-now",
			Authenticate:      "/users/api/authenticate",
			ResetPassword:     "/users/api/reset-password",
			ResetPasswordNow:  "/users/reset-password-now",
			ResetPasswordExec: "/users/api/reset-password-now",
		},
		Views: &AccountsControllerViews{
			VerifyResult:  "verify_result",
			ResetPassword: "reset_password",
			Error:         "errors/error",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in accounts controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in accounts controller...")
	}

	if c.Config == nil {
		panic("Missing Config in accounts controller...")
	}

	if c.CSRF == nil {
		key := sha256.Sum256([]byte(c.Config.GetSigningKey()))
		c.CSRF = csrf.New(csrf.Config{
			SecureKey: key[:],
		})
	}

	return c
}

func (a *AccountsController) WithLogger(logger Logger) *AccountsController {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// RegisterPayload is the registration request body.
type RegisterPayload struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Name     string `form:"name" json:"name"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.Username, validation.Length(1, 200)),
		validation.Field(&r.Name, validation.Length(1, 200)),
	)
}

func (a *AccountsController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register validate payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"success":    false,
			"message":    "Invalid registration payload",
			"validation": err,
		})
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	var res *RegisterAccountResponse
	msg := RegisterAccountMessage{
		Username:    payload.Username,
		Email:       payload.Email,
		DisplayName: payload.Name,
		Password:    payload.Password,
		UseHashid:   a.UseHashid,
		OnResponse: func(resp *RegisterAccountResponse) {
			res = resp
		},
	}

	register := NewRegisterAccountHandler(a.Repo).
		WithMailer(a.Mailer).
		WithLogger(a.Logger).
		WithBaseURL(a.BaseURL)

	if err := register.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("register execute error: ", "error", err)
		return RespondWithError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "A verification email has been sent to " + res.Account.Email,
	})
}

// VerifyNow is the verification email link landing. It renders a page, the
// visitor arrives from a mail client, not an API consumer.
func (a *AccountsController) VerifyNow(ctx router.Context) error {
	token := ctx.Param("verificationToken", "")

	var res *VerifyAccountResponse
	msg := VerifyAccountMessage{
		Token: token,
		OnResponse: func(resp *VerifyAccountResponse) {
			res = resp
		},
	}

	verify := NewVerifyAccountHandler(a.Repo).WithLogger(a.Logger)

	if err := verify.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("verify execute error: ", "error", err)
		return ctx.Status(StatusForError(err)).Render(a.Views.Error, router.ViewContext{
			"message": "Verification link is invalid or was already used.",
		})
	}

	return ctx.Render(a.Views.VerifyResult, router.ViewContext{
		"username": res.Account.Username,
	})
}

// LoginPayload is the credential authentication request body.
type LoginPayload struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountsController) AuthenticatePost(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("authenticate parse payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"success":    false,
			"message":    "Invalid login payload",
			"validation": err,
		})
	}

	token, err := a.Auther.Login(ctx, payload.Username, payload.Password)
	if err != nil {
		return RespondWithError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"token":   token,
	})
}

// ProfileShow serves the authenticated profile from the validated token
// claims. No store lookup involved.
func (a *AccountsController) ProfileShow(ctx router.Context) error {
	claims, err := GetRouterProfile(ctx, a.Config.GetContextKey())
	if err != nil {
		a.Logger.Error("profile claims error: ", "error", err)
		return RespondWithError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"profile": map[string]any{
			"id":         claims.AccountID(),
			"username":   claims.Username(),
			"email":      claims.Email(),
			"name":       claims.DisplayName(),
			"issued_at":  claims.IssuedAt(),
			"expires_at": claims.Expires(),
		},
	})
}

// ResetRequestPayload is the password reset request body.
type ResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r ResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AccountsController) ResetPasswordRequest(ctx router.Context) error {
	payload := new(ResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("reset request parse payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"success":    false,
			"message":    "Invalid reset request payload",
			"validation": err,
		})
	}

	var res *InitializePasswordResetResponse
	msg := InitializePasswordResetMessage{
		Email: payload.Email,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			res = resp
		},
	}

	initReset := NewInitializePasswordResetHandler(a.Repo).
		WithMailer(a.Mailer).
		WithLogger(a.Logger).
		WithBaseURL(a.BaseURL)

	if err := initReset.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("reset request execute error: ", "error", err)
		return RespondWithError(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= PASSWORD RESET ======")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("=============================")
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "A reset email has been sent to " + res.Account.Email,
	})
}

// ResetPasswordForm is the reset email link landing: it renders the change
// password form when the token still matches an open window, and an error
// page otherwise. A store fault is not an invalid link; it renders as a
// generic failure instead.
func (a *AccountsController) ResetPasswordForm(ctx router.Context) error {
	token := ctx.Param("resetToken", "")

	if _, err := a.Repo.Accounts().GetByResetToken(ctx.Context(), token, time.Now()); err != nil {
		a.Logger.Error("reset form token lookup: ", "error", err)

		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return ctx.Status(StatusForError(ErrInvalidOrExpiredResetToken)).Render(a.Views.Error, router.ViewContext{
				"message": "Password reset link is invalid or has expired.",
			})
		}

		return ctx.Status(StatusForError(err)).Render(a.Views.Error, router.ViewContext{
			"message": "Something went wrong. Please try again later.",
		})
	}

	return ctx.Render(a.Views.ResetPassword, router.ViewContext{
		"token":      token,
		"csrf_field": csrf.FieldHTML(ctx, csrf.DefaultContextKey),
	})
}

// ResetExecutePayload is the reset finalization request body.
type ResetExecutePayload struct {
	Token    string `form:"token" json:"token"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r ResetExecutePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func (a *AccountsController) ResetPasswordExecute(ctx router.Context) error {
	payload := new(ResetExecutePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("reset exec parse payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"success":    false,
			"message":    "Invalid reset payload",
			"validation": err,
		})
	}

	msg := FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}

	finalize := NewFinalizePasswordResetHandler(a.Repo).
		WithMailer(a.Mailer).
		WithLogger(a.Logger)

	if err := finalize.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("reset exec execute error: ", "error", err)
		return RespondWithError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "Password updated",
	})
}
