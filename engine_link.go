package goSignup

import (
	"context"
)

// SubmitLink verifies a token from a one-click verification link and
// submits the code it carries. The session's tenant is taken from the
// token, not from ctx. Tokens that fail verification return ErrLinkInvalid;
// every other result is exactly what SubmitCode would return.
func (e *Engine) SubmitLink(ctx context.Context, token string) (VerifyResult, error) {
	if e == nil || e.links == nil {
		return VerifyResult{}, ErrLinkDisabled
	}

	claims, err := e.links.Parse(token)
	if err != nil {
		e.emitAudit(ctx, auditEventRegistrationVerify, false, "", "", "", ErrLinkInvalid, func() map[string]string {
			return map[string]string{
				"reason": "link_invalid",
			}
		})
		return VerifyResult{}, ErrLinkInvalid
	}

	if claims.TenantID != "" {
		ctx = WithTenantID(ctx, claims.TenantID)
	}
	return e.SubmitCode(ctx, claims.SessionID, claims.Code)
}
