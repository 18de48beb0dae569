package accounts

import (
	"fmt"
	"strings"
)

// Email content for the three lifecycle notifications. The core renders the
// full message; the Mailer only moves bytes.

func buildVerificationEmail(baseURL string, account *Account, token string) (subject, text, html string) {
	subject = "Verify Your Account"
	text = "Please verify your account."
	html = fmt.Sprintf(`<div>
	<h1>Hello, %s</h1>
	<p>Please click the following link to verify your account.</p>
	<a href="%s/users/verify-now/%s">Verify Now</a>
</div>`, account.Username, trimBaseURL(baseURL), token)
	return subject, text, html
}

func buildResetEmail(baseURL string, account *Account, token string) (subject, text, html string) {
	subject = "Reset Password"
	text = "Please reset your password."
	html = fmt.Sprintf(`<div>
	<h1>Hello, %s</h1>
	<p>Please click the following link to reset your password.</p>
	<p>If this password reset request was not created by you, you can ignore this email.</p>
	<a href="%s/users/reset-password-now/%s">Reset Now</a>
</div>`, account.Username, trimBaseURL(baseURL), token)
	return subject, text, html
}

func buildResetConfirmationEmail(account *Account) (subject, text, html string) {
	subject = "Reset Password Successful"
	text = "Your password was changed."
	html = fmt.Sprintf(`<div>
	<h1>Hello, %s</h1>
	<p>Your password was reset successfully.</p>
	<p>If this reset was not done by you, please contact our team.</p>
</div>`, account.Username)
	return subject, text, html
}

func trimBaseURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}
