package flows

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSignup/internal/stores"
)

var (
	errTestNotReady    = errors.New("not ready")
	errTestInvalid     = errors.New("invalid")
	errTestUnavailable = errors.New("unavailable")
	errTestNotFound    = errors.New("not found")
	errTestUnsupported = errors.New("unsupported")
	errTestConflict    = errors.New("duplicate account")
)

type flowFixture struct {
	mr      *miniredis.Miniredis
	store   *stores.RegistrationStore
	code    string
	notices []RegistrationNotice
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return &flowFixture{
		mr:    mr,
		store: stores.NewRegistrationStore(rdb, "sgr", stores.AtomicLua),
		code:  "123456",
	}
}

func (f *flowFixture) deps(materialize func(context.Context, RegistrationAccount) (string, error)) RegistrationDeps {
	ids := 0
	return RegistrationDeps{
		OTPTTL:             5 * time.Minute,
		MaxAttempts:        5,
		ResendCooldown:     time.Minute,
		CodeLength:         6,
		MaterializeTimeout: 50 * time.Millisecond,
		AllowedRoles:       []string{"developer", "mentor"},
		Store:              f.store,
		HashCredential:     func(p string) (string, error) { return "hashed:" + p, nil },
		NewSessionID: func() (string, error) {
			ids++
			return "session-" + string(rune('a'+ids)), nil
		},
		NewCode:     func(int, string) (string, error) { return f.code, nil },
		HashCode:    func(sid, code string) [32]byte { return sha256.Sum256([]byte(sid + ":" + code)) },
		Materialize: materialize,
		IsConflict:  func(err error) bool { return errors.Is(err, errTestConflict) },
		Notify: func(_ context.Context, n RegistrationNotice) error {
			f.notices = append(f.notices, n)
			return nil
		},
		Errors: RegistrationErrors{
			EngineNotReady:       errTestNotReady,
			Invalid:              errTestInvalid,
			Unavailable:          errTestUnavailable,
			NotFound:             errTestNotFound,
			ReconcileUnsupported: errTestUnsupported,
		},
	}
}

func validFields() RegistrationFields {
	return RegistrationFields{
		Email:    "  A@B.com ",
		Username: "Alice",
		Phone:    "+15551234567",
		FullName: "Alice Example",
		Role:     "Developer",
		Password: "correct horse battery",
	}
}

func (f *flowFixture) start(t *testing.T, deps RegistrationDeps) string {
	t.Helper()
	res, err := RunStartRegistration(context.Background(), validFields(), deps)
	if err != nil {
		t.Fatalf("RunStartRegistration failed: %v", err)
	}
	return res.SessionID
}

func TestRunStartRegistrationNormalizesAndNotifies(t *testing.T) {
	f := newFlowFixture(t)
	var got RegistrationAccount
	deps := f.deps(func(_ context.Context, a RegistrationAccount) (string, error) {
		got = a
		return "acc-1", nil
	})

	sid := f.start(t, deps)
	if len(f.notices) != 1 || f.notices[0].Email != "a@b.com" || f.notices[0].Code != "123456" {
		t.Fatalf("unexpected notices %+v", f.notices)
	}

	res, err := RunSubmitRegistrationCode(context.Background(), sid, "123456", deps)
	if err != nil {
		t.Fatalf("RunSubmitRegistrationCode failed: %v", err)
	}
	if res.Outcome != RegistrationSuccess || res.AccountID != "acc-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got.Email != "a@b.com" || got.Username != "alice" || got.Role != "developer" {
		t.Fatalf("fields not normalized: %+v", got)
	}
	if got.CredentialHash != "hashed:correct horse battery" || !got.EmailVerified {
		t.Fatalf("unexpected account %+v", got)
	}
}

func TestRunStartRegistrationRejectsInvalidInput(t *testing.T) {
	f := newFlowFixture(t)
	deps := f.deps(nil)

	cases := map[string]func(*RegistrationFields){
		"no email":     func(r *RegistrationFields) { r.Email = "" },
		"bad email":    func(r *RegistrationFields) { r.Email = "nope" },
		"no password":  func(r *RegistrationFields) { r.Password = "" },
		"unknown role": func(r *RegistrationFields) { r.Role = "admin" },
	}
	for name, mutate := range cases {
		fields := validFields()
		mutate(&fields)
		if _, err := RunStartRegistration(context.Background(), fields, deps); !errors.Is(err, errTestInvalid) {
			t.Fatalf("%s: expected invalid, got %v", name, err)
		}
	}
	if keys := f.mr.Keys(); len(keys) != 0 {
		t.Fatalf("invalid input must not touch the store, found %v", keys)
	}
}

func TestRunStartRegistrationSurvivesEnqueueFailure(t *testing.T) {
	f := newFlowFixture(t)
	deps := f.deps(nil)
	deps.Notify = func(context.Context, RegistrationNotice) error { return errors.New("queue full") }

	sid := f.start(t, deps)
	if !f.mr.Exists("sgr:0:" + sid) {
		t.Fatal("session must exist even when enqueue fails")
	}
}

func TestRunSubmitRegistrationCodeConflictDeletesSession(t *testing.T) {
	f := newFlowFixture(t)
	deps := f.deps(func(context.Context, RegistrationAccount) (string, error) {
		return "", errTestConflict
	})
	sid := f.start(t, deps)

	res, err := RunSubmitRegistrationCode(context.Background(), sid, "123456", deps)
	if err != nil || res.Outcome != RegistrationConflict {
		t.Fatalf("expected conflict, got %+v %v", res, err)
	}
	if f.mr.Exists("sgr:0:" + sid) {
		t.Fatal("conflict must delete the session")
	}
}

func TestRunSubmitRegistrationCodeTransientFailureReleases(t *testing.T) {
	f := newFlowFixture(t)
	calls := 0
	deps := f.deps(func(context.Context, RegistrationAccount) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("connection reset")
		}
		return "acc-2", nil
	})
	sid := f.start(t, deps)

	res, err := RunSubmitRegistrationCode(context.Background(), sid, "123456", deps)
	if err != nil || res.Outcome != RegistrationRetryLater {
		t.Fatalf("expected retry later, got %+v %v", res, err)
	}

	res, err = RunSubmitRegistrationCode(context.Background(), sid, "123456", deps)
	if err != nil || res.Outcome != RegistrationSuccess || res.AccountID != "acc-2" {
		t.Fatalf("expected success after release, got %+v %v", res, err)
	}
}

func TestRunSubmitRegistrationCodeTimeoutIsUncertainAndReconciles(t *testing.T) {
	f := newFlowFixture(t)
	deps := f.deps(func(ctx context.Context, _ RegistrationAccount) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	sid := f.start(t, deps)

	res, err := RunSubmitRegistrationCode(context.Background(), sid, "123456", deps)
	if err != nil || res.Outcome != RegistrationUncertain {
		t.Fatalf("expected uncertain, got %+v %v", res, err)
	}

	again, err := RunSubmitRegistrationCode(context.Background(), sid, "123456", deps)
	if err != nil || again.Outcome != RegistrationExpired {
		t.Fatalf("claimed session must look expired, got %+v %v", again, err)
	}

	if _, err := RunReconcileRegistration(context.Background(), sid, deps); !errors.Is(err, errTestUnsupported) {
		t.Fatalf("expected unsupported without FindAccount, got %v", err)
	}

	deps.FindAccount = func(_ context.Context, a RegistrationAccount) (string, bool, error) {
		if a.Username != "alice" {
			t.Errorf("unexpected lookup %+v", a)
		}
		return "acc-3", true, nil
	}
	rec, err := RunReconcileRegistration(context.Background(), sid, deps)
	if err != nil || rec.Outcome != RegistrationSuccess || rec.AccountID != "acc-3" {
		t.Fatalf("expected reconciled success, got %+v %v", rec, err)
	}
	if f.mr.Exists("sgr:0:" + sid) {
		t.Fatal("reconciled session must be deleted")
	}

	rec, err = RunReconcileRegistration(context.Background(), sid, deps)
	if err != nil || rec.Outcome != RegistrationExpired {
		t.Fatalf("expected expired after reconcile, got %+v %v", rec, err)
	}
}

func TestRunReconcileRegistrationNotFoundReleases(t *testing.T) {
	f := newFlowFixture(t)
	deps := f.deps(func(ctx context.Context, _ RegistrationAccount) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	deps.FindAccount = func(context.Context, RegistrationAccount) (string, bool, error) {
		return "", false, nil
	}
	sid := f.start(t, deps)

	if res, _ := RunSubmitRegistrationCode(context.Background(), sid, "123456", deps); res.Outcome != RegistrationUncertain {
		t.Fatalf("expected uncertain, got %+v", res)
	}

	rec, err := RunReconcileRegistration(context.Background(), sid, deps)
	if err != nil || rec.Outcome != RegistrationRetryLater {
		t.Fatalf("expected retry later, got %+v %v", rec, err)
	}

	record, err := f.store.Get(context.Background(), "0", sid)
	if err != nil || record.State != stores.StateActive {
		t.Fatalf("expected session released to active, got %+v %v", record, err)
	}
}

func TestRunRegistrationStatus(t *testing.T) {
	f := newFlowFixture(t)
	deps := f.deps(nil)
	deps.MaxResends = 3
	sid := f.start(t, deps)

	if _, err := RunSubmitRegistrationCode(context.Background(), sid, "000000", deps); err == nil {
		t.Fatal("expected engine-not-ready without a materializer")
	}

	deps.Materialize = func(context.Context, RegistrationAccount) (string, error) { return "x", nil }
	if res, err := RunSubmitRegistrationCode(context.Background(), sid, "000000", deps); err != nil || res.RemainingAttempts != 4 {
		t.Fatalf("expected 4 remaining, got %+v %v", res, err)
	}
	if res, err := RunResendRegistrationCode(context.Background(), sid, deps); err != nil || res.Outcome != ResendSent {
		t.Fatalf("expected resend, got %+v %v", res, err)
	}

	status, err := RunRegistrationStatus(context.Background(), sid, deps)
	if err != nil {
		t.Fatalf("RunRegistrationStatus failed: %v", err)
	}
	if status.AttemptsLeft != 5 || status.ResendsLeft != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.RemainingTTL <= 0 || status.CooldownRemaining <= 0 {
		t.Fatalf("expected ttl and cooldown, got %+v", status)
	}

	if _, err := RunRegistrationStatus(context.Background(), "missing", deps); !errors.Is(err, errTestNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunResendRegistrationCodeCooldownRetryAfter(t *testing.T) {
	f := newFlowFixture(t)
	deps := f.deps(nil)
	sid := f.start(t, deps)

	if res, err := RunResendRegistrationCode(context.Background(), sid, deps); err != nil || res.Outcome != ResendSent {
		t.Fatalf("expected resend, got %+v %v", res, err)
	}
	f.mr.FastForward(20 * time.Second)

	res, err := RunResendRegistrationCode(context.Background(), sid, deps)
	if err != nil || res.Outcome != ResendCooldown {
		t.Fatalf("expected cooldown, got %+v %v", res, err)
	}
	if res.RetryAfter != 40*time.Second {
		t.Fatalf("expected 40s retry-after, got %v", res.RetryAfter)
	}
	if len(f.notices) != 2 || !f.notices[1].Resend {
		t.Fatalf("expected one resend notice, got %+v", f.notices)
	}
}
