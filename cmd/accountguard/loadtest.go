package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	mathrand "math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/accountguard"
	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/audit"
	"github.com/MrEthical07/accountguard/password"
)

const loadtestPassword = "Loadtest!Pass1"

type loadtestOptions struct {
	accounts    int
	concurrency int
	ops         int
	bcryptCost  int
}

// NewLoadtestCmd creates the loadtest subcommand.
func NewLoadtestCmd() *cobra.Command {
	opts := loadtestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure login and token validation throughput in-process",
		Long: `Seed in-memory accounts, then run a login phase and an access-token
validation phase against a local engine and report latency percentiles.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadtest(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.accounts, "accounts", 200, "number of accounts to seed")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 5000, "operations per phase")
	cmd.Flags().IntVar(&opts.bcryptCost, "bcrypt-cost", password.DefaultBcryptCost, "bcrypt cost for seeded hashes")

	return cmd
}

func runLoadtest(ctx context.Context, opts loadtestOptions, out io.Writer) error {
	if opts.accounts <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return fmt.Errorf("accounts, concurrency and ops must be > 0")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}

	cfg := accountguard.DefaultConfig()
	cfg.JWT.Secret = hex.EncodeToString(secret)
	cfg.Password.Hashing.BcryptCost = opts.bcryptCost
	cfg.RateLimit.Enabled = false
	cfg.Audit.Async = false

	repo := account.NewMemoryRepository()
	engine, err := accountguard.New().
		WithConfig(cfg).
		WithRepository(repo).
		WithAuditSink(audit.NoOpSink{}).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	hasher, err := password.New(cfg.Password.Hashing)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(loadtestPassword)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "seeding %d accounts...\n", opts.accounts)
	startSeed := time.Now()
	usernames := make([]string, opts.accounts)
	for i := range usernames {
		usernames[i] = fmt.Sprintf("load-%d", i)
		a := &account.Account{
			Username:     usernames[i],
			Email:        usernames[i] + "@loadtest.invalid",
			PasswordHash: hash,
			IsActive:     true,
		}
		if err := repo.Create(ctx, a); err != nil {
			return fmt.Errorf("seed account: %w", err)
		}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	tokens := make([]string, opts.accounts)
	var tokensMu sync.Mutex

	loginStats := runPhase(opts.ops, opts.concurrency, func(r *mathrand.Rand) error {
		idx := r.Intn(len(usernames))
		res, err := engine.Login(ctx, usernames[idx], loadtestPassword, false)
		if err != nil {
			return err
		}
		tokensMu.Lock()
		tokens[idx] = res.AccessToken.Value
		tokensMu.Unlock()
		return nil
	})

	issued := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok != "" {
			issued = append(issued, tok)
		}
	}
	if len(issued) == 0 {
		return fmt.Errorf("login phase issued no tokens (%d failures)", loginStats.failures)
	}

	authStats := runPhase(opts.ops, opts.concurrency, func(r *mathrand.Rand) error {
		_, err := engine.Authenticate(ctx, issued[r.Intn(len(issued))])
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "login", loginStats)
	printStats(out, "authenticate", authStats)
	return nil
}

// runPhase calls op ops times across concurrency workers.
func runPhase(ops, concurrency int, op func(r *mathrand.Rand) error) phaseStats {
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
			r := mathrand.New(mathrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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
		return phaseStats{total: total, failures: failures}
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

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
