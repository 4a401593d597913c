// Package auth provides the credential and session subsystem for the
// resource-management API: bcrypt password hashing, stateless JWT session
// tokens, a request-authentication gate, role-based route restriction, and
// the password lifecycle flows (change, forgotten-password reset).
//
// Sessions are stateless:
//   - Tokens carry only a subject (user id) and issued-at timestamp plus an
//     expiry derived from Config.TokenTTL. Nothing is persisted per session.
//   - A password change stamps User.PasswordChangedAt; the SessionGate
//     rejects any token issued before that moment, which implicitly revokes
//     every outstanding session without server-side bookkeeping.
//
// The package depends on two injected capabilities: a UserStore (the bun
// backed UsersStore or any fake) and a Mailer (the goemail backed SMTPMailer
// or any fake). Everything else is process-wide immutable Config constructed
// once at startup.
package auth
