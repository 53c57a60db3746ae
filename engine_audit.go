package goSignup

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSignup/internal/dispatch"
)

const (
	auditEventRegistrationStarted    = "registration_started"
	auditEventRegistrationVerify     = "registration_verify"
	auditEventRegistrationResend     = "registration_resend"
	auditEventRegistrationReconcile  = "registration_reconcile"
	auditEventRateLimitTriggered     = "rate_limit_triggered"
	auditEventNotificationDelivered  = "notification_delivered"
	auditEventNotificationFailed     = "notification_failed"
	auditEventNotificationEnqueueErr = "notification_enqueue_failed"
)

// AuditErrorCode is the stable, low-cardinality error label attached to
// audit events.
type AuditErrorCode string

const (
	auditErrInvalidRequest       AuditErrorCode = "invalid_request"
	auditErrRateLimited          AuditErrorCode = "rate_limited"
	auditErrSessionNotFound      AuditErrorCode = "session_not_found"
	auditErrPasswordPolicy       AuditErrorCode = "password_policy"
	auditErrReconcileUnsupported AuditErrorCode = "reconcile_unsupported"
	auditErrLinkInvalid          AuditErrorCode = "link_invalid"
	auditErrDuplicate            AuditErrorCode = "duplicate"
	auditErrEngineNotReady       AuditErrorCode = "engine_not_ready"
	auditErrDeliveryFailed       AuditErrorCode = "delivery_failed"
	auditErrUnavailable          AuditErrorCode = "backend_unavailable"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	tenantID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	if tenantID == "" {
		tenantID = tenantIDFromContext(ctx)
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		TenantID:  tenantID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	tenantID string,
	metadataBuilder func() map[string]string,
) {
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", tenantID, "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRegistrationInvalid):
		return auditErrInvalidRequest
	case errors.Is(err, ErrRegistrationRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRegistrationNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrReconcileUnsupported):
		return auditErrReconcileUnsupported
	case errors.Is(err, ErrLinkInvalid),
		errors.Is(err, ErrLinkDisabled):
		return auditErrLinkInvalid
	case errors.Is(err, ErrAccountConflict):
		return auditErrDuplicate
	case errors.Is(err, ErrEngineNotReady):
		return auditErrEngineNotReady
	case errors.Is(err, ErrRegistrationUnavailable),
		errors.Is(err, dispatch.ErrQueueFull),
		errors.Is(err, dispatch.ErrClosed):
		return auditErrUnavailable
	case errors.Is(err, errDeliveryFailed):
		return auditErrDeliveryFailed
	default:
		return auditErrInternal
	}
}
