// Package gate implements the authentication flows of the credential
// file: login, registration, forgot/reset password, profile updates and
// logout.
//
// The gate never renders anything. It hands out an opaque session token
// on a successful login and answers "who is this token" for every later
// request; what to do with an unauthenticated caller is the embedding
// server's problem.
//
// A session token is a signed JWT bounded by the cookie expiry from the
// credential file, and it must also still be present in the TokenStore.
// Logout removes it from the store, so a logged-out token stops working
// even though its signature would still verify.
//
// Passwords are stored as bcrypt hashes. The plaintext only ever lives in
// a PlainText buffer which callers are expected to Zero once the gate is
// done with it.
package gate
