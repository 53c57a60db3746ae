// Package link issues and verifies the signed tokens embedded in one-click
// registration verification links.
//
// A token is an HS256 JWT binding a registration session, its tenant and
// the code that was sent with it. Verifying the link is equivalent to
// submitting that code, so a token stops working as soon as the code is
// rotated or the session ends.
package link
