// Package accounts implements a user-account service core: registration
// with email verification, credential authentication issuing JWT session
// tokens, and a token-based password reset flow.
//
// The package exposes the account lifecycle through command handlers
// (RegisterAccountHandler, VerifyAccountHandler, InitializePasswordResetHandler,
// FinalizePasswordResetHandler) and an Authenticator for credential login and
// session verification. Persistence goes through RepositoryManager, email
// delivery through the Mailer interface, and HTTP transport through the
// controller in http_controller.go.
package accounts
