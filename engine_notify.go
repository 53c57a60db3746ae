package goSignup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/MrEthical07/goSignup/internal/dispatch"
	internalflows "github.com/MrEthical07/goSignup/internal/flows"
	"github.com/MrEthical07/goSignup/notify"
)

var errDeliveryFailed = errors.New("notification delivery failed")

// notifyRegistration renders the code message for every enabled channel and
// queues it. It never waits for delivery.
func (e *Engine) notifyRegistration(ctx context.Context, notice internalflows.RegistrationNotice) error {
	content := notify.OTPContent{
		Code: notice.Code,
		TTL:  notice.TTL,
		Link: e.verificationLink(notice),
	}

	msg, err := notify.OTPMessage(notify.ChannelEmail, notice.Email, content)
	if err != nil {
		return err
	}
	errs := []error{e.submitNotification(ctx, notice, msg)}

	if e.config.Notification.SMSEnabled && notice.Phone != "" {
		// links are for email only
		content.Link = ""
		sms, err := notify.OTPMessage(notify.ChannelSMS, notice.Phone, content)
		if err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, e.submitNotification(ctx, notice, sms))
		}
	}

	return errors.Join(errs...)
}

func (e *Engine) submitNotification(ctx context.Context, notice internalflows.RegistrationNotice, msg notify.Message) error {
	_, err := e.dispatcher.Submit(ctx, dispatch.Job{
		Message:   msg,
		SessionID: notice.SessionID,
		TenantID:  notice.TenantID,
	})
	if err != nil {
		e.emitAudit(ctx, auditEventNotificationEnqueueErr, false, "", notice.TenantID, notice.SessionID, err, func() map[string]string {
			return map[string]string{
				"channel": string(msg.Channel),
				"resend":  strconv.FormatBool(notice.Resend),
			}
		})
		return fmt.Errorf("enqueue %s notification: %w", msg.Channel, err)
	}
	return nil
}

// verificationLink returns "" when links are not configured or the token
// cannot be issued. The code in the message still works without it.
func (e *Engine) verificationLink(notice internalflows.RegistrationNotice) string {
	base := e.config.Notification.LinkBaseURL
	if e.links == nil || base == "" {
		return ""
	}

	token, err := e.links.Issue(notice.TenantID, notice.SessionID, notice.Code, notice.TTL)
	if err != nil {
		e.logger.Warn("verification link not issued",
			slog.String("session_id", notice.SessionID),
			slog.Any("error", err),
		)
		return ""
	}

	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// deliveryObserver turns dispatcher outcomes into logs, metrics and audit
// events. It runs on dispatcher workers.
type deliveryObserver struct {
	engine *Engine
}

func (o deliveryObserver) Delivered(handle dispatch.JobHandle, job dispatch.Job, attempts int) {
	e := o.engine
	e.metricInc(MetricNotificationDelivered)
	e.emitAudit(context.Background(), auditEventNotificationDelivered, true, "", job.TenantID, job.SessionID, nil, func() map[string]string {
		return map[string]string{
			"channel":  string(job.Message.Channel),
			"job":      string(handle),
			"attempts": strconv.Itoa(attempts),
		}
	})
}

func (o deliveryObserver) Failed(f dispatch.Failure) {
	e := o.engine
	e.metricInc(MetricNotificationFailed)
	e.logger.Warn("notification delivery failed",
		slog.String("job", string(f.Handle)),
		slog.String("session_id", f.Job.SessionID),
		slog.String("channel", string(f.Job.Message.Channel)),
		slog.Int("attempts", f.Attempts),
		slog.Bool("permanent", notify.IsPermanent(f.Err)),
		slog.Any("error", f.Err),
	)
	e.emitAudit(context.Background(), auditEventNotificationFailed, false, "", f.Job.TenantID, f.Job.SessionID, errDeliveryFailed, func() map[string]string {
		return map[string]string{
			"channel":  string(f.Job.Message.Channel),
			"job":      string(f.Handle),
			"attempts": strconv.Itoa(f.Attempts),
		}
	})
}
