// Command signup-loadtest drives concurrent code submissions against the
// registration engine and checks the attempt cap and single-winner
// guarantees under contention.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goSignup "github.com/MrEthical07/goSignup"
	"github.com/MrEthical07/goSignup/accounts/memory"
	"github.com/MrEthical07/goSignup/notify"
)

var codeLine = regexp.MustCompile(`(?m)^([0-9]{6})$`)

// codeBook records the last code delivered to each address.
type codeBook struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeBook) Deliver(_ context.Context, msg notify.Message) error {
	m := codeLine.FindStringSubmatch(msg.Body)
	if m == nil {
		return notify.Permanent(errors.New("no code in message"))
	}
	b.mu.Lock()
	b.codes[msg.To] = m[1]
	b.mu.Unlock()
	return nil
}

func (b *codeBook) wait(to string, timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		code, ok := b.codes[to]
		b.mu.Unlock()
		if ok {
			return code, true
		}
		time.Sleep(time.Millisecond)
	}
	return "", false
}

// plainHasher skips Argon2 so the run measures the session store.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "plain$" + p, nil }

type registration struct {
	sid  string
	code string
}

func main() {
	var (
		sessions    = flag.Int("sessions", 2000, "registrations per phase")
		contenders  = flag.Int("contenders", 16, "concurrent submissions per registration")
		concurrency = flag.Int("concurrency", 128, "registrations in flight")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, SIGNUP_REDIS_ADDR env or miniredis is used")
		mode        = flag.String("mode", "lua", "atomic mode: lua or watch")
	)
	flag.Parse()

	if *sessions <= 0 || *contenders <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, contenders, and concurrency must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("SIGNUP_REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	cfg := goSignup.DefaultConfig()
	cfg.Store.AtomicMode = goSignup.AtomicMode(*mode)
	cfg.Limiter.EnableIdentifierThrottle = false
	cfg.Limiter.EnableIPThrottle = false
	cfg.Dispatch.Workers = 32
	cfg.Dispatch.QueueSize = *sessions * 2
	cfg.Dispatch.RatePerSecond = 0
	cfg.Metrics.Enabled = true

	book := &codeBook{codes: make(map[string]string)}
	accounts := memory.New()
	engine, err := goSignup.New().
		WithConfig(cfg).
		WithRedis(client).
		WithMaterializer(accounts).
		WithHasher(plainHasher{}).
		WithDeliverer(book).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close(context.Background())

	ctx := context.Background()

	wrong := seed(ctx, engine, book, "wrong", *sessions)
	wrongStats, wrongViolations := runWrongCodePhase(ctx, engine, wrong, *contenders, *concurrency, cfg.Registration.MaxAttempts)

	right := seed(ctx, engine, book, "right", *sessions)
	rightStats, rightViolations := runCorrectCodePhase(ctx, engine, right, *contenders, *concurrency)

	fmt.Println("---- results ----")
	printStats("wrong-code", wrongStats)
	printStats("correct-code", rightStats)
	fmt.Printf("accounts created: %d (expected %d)\n", accounts.Len(), len(right))

	if wrongViolations+rightViolations > 0 || accounts.Len() != len(right) {
		fmt.Fprintf(os.Stderr, "invariant violations: attempt cap=%d single winner=%d\n", wrongViolations, rightViolations)
		os.Exit(1)
	}
}

func seed(ctx context.Context, engine *goSignup.Engine, book *codeBook, phase string, n int) []registration {
	fmt.Printf("seeding %d %s registrations...\n", n, phase)
	start := time.Now()
	out := make([]registration, 0, n)
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("%s-%d@load.test", phase, i)
		res, err := engine.StartRegistration(ctx, goSignup.RegistrationRequest{
			Email:    email,
			Username: fmt.Sprintf("%s_%d", phase, i),
			Phone:    "+14155550100",
			FullName: "Load Test",
			Role:     "developer",
			Password: "load-test-password",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "start failed: %v\n", err)
			os.Exit(1)
		}
		code, ok := book.wait(email, 5*time.Second)
		if !ok {
			fmt.Fprintf(os.Stderr, "no code delivered to %s\n", email)
			os.Exit(1)
		}
		out = append(out, registration{sid: res.SessionID, code: code})
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return out
}

// runWrongCodePhase fires contenders wrong codes at every session. Each
// session must report maxAttempts-1 invalid codes and one
// attempts_exceeded; everything after that is expired.
func runWrongCodePhase(ctx context.Context, engine *goSignup.Engine, regs []registration, contenders, concurrency, maxAttempts int) (phaseStats, int) {
	var violations int64
	stats := runPhase(ctx, engine, regs, contenders, concurrency, func(r registration, submit func(string) goSignup.VerifyOutcome) {
		counts := make(map[goSignup.VerifyOutcome]int)
		var mu sync.Mutex
		var wg sync.WaitGroup
		for c := 0; c < contenders; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out := submit(wrongCode(r.code))
				mu.Lock()
				counts[out]++
				mu.Unlock()
			}()
		}
		wg.Wait()

		wantInvalid := min(contenders, maxAttempts-1)
		wantExceeded := 0
		if contenders >= maxAttempts {
			wantExceeded = 1
		}
		if counts[goSignup.OutcomeInvalidCode] != wantInvalid || counts[goSignup.OutcomeAttemptsExceeded] != wantExceeded {
			atomic.AddInt64(&violations, 1)
		}
	})
	return stats, int(violations)
}

// runCorrectCodePhase submits the right code from every contender. Exactly
// one must succeed.
func runCorrectCodePhase(ctx context.Context, engine *goSignup.Engine, regs []registration, contenders, concurrency int) (phaseStats, int) {
	var violations int64
	stats := runPhase(ctx, engine, regs, contenders, concurrency, func(r registration, submit func(string) goSignup.VerifyOutcome) {
		var wins int64
		var wg sync.WaitGroup
		for c := 0; c < contenders; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if submit(r.code) == goSignup.OutcomeSuccess {
					atomic.AddInt64(&wins, 1)
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			atomic.AddInt64(&violations, 1)
		}
	})
	return stats, int(violations)
}

func runPhase(
	ctx context.Context,
	engine *goSignup.Engine,
	regs []registration,
	contenders, concurrency int,
	each func(r registration, submit func(string) goSignup.VerifyOutcome),
) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(regs)*contenders)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(regs) {
					return
				}
				r := regs[i]
				each(r, func(code string) goSignup.VerifyOutcome {
					t0 := time.Now()
					res, err := engine.SubmitCode(ctx, r.sid, code)
					d := time.Since(t0)
					if err != nil {
						atomic.AddInt64(&failures, 1)
					}
					mu.Lock()
					latencies = append(latencies, d)
					mu.Unlock()
					return res.Outcome
				})
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func wrongCode(code string) string {
	b := []byte(code)
	b[0] = '0' + (b[0]-'0'+1)%10
	return string(b)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
