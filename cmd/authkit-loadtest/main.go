package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	"github.com/stdozor/authkit"
)

type seededUser struct {
	id    string
	email string
}

func main() {
	var (
		users       = flag.Int("users", 10000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (login + second-factor)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := authkit.DefaultConfig()
	// Light argon2 parameters keep a verify cheap enough that the run
	// measures store and engine throughput rather than KDF throughput.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.MinLength = 12
	cfg.TrustedDevice.Secret = []byte("loadtest-trusted-device-secret-0")
	cfg.BreachCheck.Enabled = false

	provider := newMemoryProvider()
	engine, err := authkit.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(provider).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "authkit-loadtest", AccountName: "shared"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "totp secret generation failed: %v\n", err)
		os.Exit(1)
	}
	totpSecret := key.Secret()

	// All accounts share one hash; hashing per account would dominate
	// seeding time without changing what the phases measure.
	const password = "load-test-password-1"
	hashOnce, err := hashPassword(cfg, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed hash failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	plain := make([]seededUser, 0, *users/2)
	withTOTP := make([]seededUser, 0, *users/2)
	for i := 0; i < *users; i++ {
		id := "u" + strconv.Itoa(i)
		email := fmt.Sprintf("user%d@load.test", i)
		secret := ""
		if i%2 == 1 {
			secret = totpSecret
		}
		provider.seed(&authkit.UserRecord{
			ID:           id,
			Email:        email,
			DisplayName:  "Load Tester",
			PasswordHash: hashOnce,
			Roles:        []authkit.Role{authkit.RoleUser},
			Verified:     true,
			TOTPSecret:   secret,
		})
		if secret == "" {
			plain = append(plain, seededUser{id: id, email: email})
		} else {
			withTOTP = append(withTOTP, seededUser{id: id, email: email})
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loginStats := runLoginPhase(ctx, engine, plain, password, *ops, *concurrency)
	secondFactorStats := runSecondFactorPhase(ctx, engine, withTOTP, password, totpSecret, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("second-factor", secondFactorStats)
}

func runLoginPhase(ctx context.Context, engine *authkit.Engine, users []seededUser, password string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				user := users[r.Intn(len(users))]
				t0 := time.Now()
				result, err := engine.Login(ctx, user.email, password, authkit.LoginOptions{})
				d := time.Since(t0)
				if err != nil || result.Status != authkit.LoginStatusFullySignedIn {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runSecondFactorPhase(ctx context.Context, engine *authkit.Engine, users []seededUser, password, totpSecret string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				user := users[r.Intn(len(users))]
				t0 := time.Now()
				ok := completeSecondFactorLogin(ctx, engine, user, password, totpSecret)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func completeSecondFactorLogin(ctx context.Context, engine *authkit.Engine, user seededUser, password, totpSecret string) bool {
	result, err := engine.Login(ctx, user.email, password, authkit.LoginOptions{})
	if err != nil || result.Status != authkit.LoginStatusSecondFactorRequired {
		return false
	}
	code, err := totp.GenerateCodeCustom(totpSecret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	final, err := engine.VerifySecondFactor(ctx, result.PendingLoginID, code, authkit.SecondFactorOptions{})
	return err == nil && final.Status == authkit.LoginStatusFullySignedIn
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
		s.p50,
		s.p95,
		s.p99,
	)
}
