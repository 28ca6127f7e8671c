// Command credits administers accounts and the credit ledger.
//
//	credits open -email a@b.c [-tier unlimited]
//	credits grant -user <id> -amount 500 [-reason "Support credit"]
//	credits tier -user <id> -tier unlimited
//	credits reconcile -user <id>
//	credits history -user <id> [-limit 50]
//	credits requeue -job <id>
//	credits set-key -name gemini [-key ...]
//	credits revoke-key -name gemini
//	credits queue
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"promptfusion/internal/bootstrap"
	"promptfusion/internal/domain"
	"promptfusion/internal/infra"
	"promptfusion/internal/infra/credentials"
)

func main() {
	if len(os.Args) < 2 {
		exitWithError(errors.New("usage: credits <open|grant|tier|reconcile|history|requeue|set-key|revoke-key|queue> [flags]"))
	}
	cmd, args := os.Args[1], os.Args[2:]

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "credits").Str("sub", cmd).Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		exitWithError(fmt.Errorf("failed to open backend: %w", err))
	}
	defer backend.Close()

	switch cmd {
	case "open":
		err = openAccount(ctx, backend, args)
	case "grant":
		err = grant(ctx, backend, args)
	case "tier":
		err = setTier(ctx, backend, args)
	case "reconcile":
		err = reconcile(ctx, backend, args)
	case "history":
		err = history(ctx, backend, args)
	case "requeue":
		err = requeue(ctx, backend, args)
	case "set-key":
		err = setKey(ctx, backend, args)
	case "revoke-key":
		err = revokeKey(ctx, backend, args)
	case "queue":
		err = queueDepth(ctx, backend)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		backend.Close()
		exitWithError(err)
	}
}

func openAccount(ctx context.Context, b *bootstrap.Backend, args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	tier := fs.String("tier", string(domain.TierStandard), "standard or unlimited")
	_ = fs.Parse(args)

	t, err := parseTier(*tier)
	if err != nil {
		return err
	}
	user, err := b.Credits.OpenAccount(ctx, *email, t)
	if err != nil {
		return err
	}
	fmt.Printf("User %s (%s) opened on tier %s with %d credits\n", user.ID, user.Email, user.Tier, user.CreditsBalance)
	return nil
}

func grant(ctx context.Context, b *bootstrap.Backend, args []string) error {
	fs := flag.NewFlagSet("grant", flag.ExitOnError)
	user := fs.String("user", "", "user ID")
	amount := fs.Int("amount", 0, "credits to add")
	reason := fs.String("reason", "Manual grant", "ledger reason")
	_ = fs.Parse(args)

	if *amount <= 0 {
		return errors.New("-amount must be positive")
	}
	balance, err := b.Credits.Grant(ctx, requireFlag("user", *user), *amount, *reason)
	if err != nil {
		return err
	}
	fmt.Printf("Granted %d credits to %s, balance=%d\n", *amount, *user, balance)
	return nil
}

func setTier(ctx context.Context, b *bootstrap.Backend, args []string) error {
	fs := flag.NewFlagSet("tier", flag.ExitOnError)
	user := fs.String("user", "", "user ID")
	tier := fs.String("tier", "", "standard or unlimited")
	_ = fs.Parse(args)

	t, err := parseTier(*tier)
	if err != nil {
		return err
	}
	if err := b.Store.Users.SetTier(ctx, requireFlag("user", *user), t); err != nil {
		return err
	}
	fmt.Printf("User %s updated to tier %s\n", *user, t)
	return nil
}

func reconcile(ctx context.Context, b *bootstrap.Backend, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	user := fs.String("user", "", "user ID")
	_ = fs.Parse(args)

	r, err := b.Credits.Reconcile(ctx, requireFlag("user", *user))
	if err != nil {
		return err
	}
	fmt.Printf("balance=%d ledger_sum=%d\n", r.Balance, r.Sum)
	if !r.OK() {
		return fmt.Errorf("ledger mismatch for %s: off by %d", r.UserID, r.Balance-r.Sum)
	}
	return nil
}

func history(ctx context.Context, b *bootstrap.Backend, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	user := fs.String("user", "", "user ID")
	limit := fs.Int("limit", 50, "events to show")
	_ = fs.Parse(args)

	events, err := b.Credits.History(ctx, requireFlag("user", *user), *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tTYPE\tAMOUNT\tJOB\tREASON")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", ev.CreatedAt.Format(time.RFC3339), ev.Type, ev.Amount, ev.JobID, ev.Reason)
	}
	return tw.Flush()
}

func requeue(ctx context.Context, b *bootstrap.Backend, args []string) error {
	fs := flag.NewFlagSet("requeue", flag.ExitOnError)
	job := fs.String("job", "", "job ID")
	_ = fs.Parse(args)

	if err := b.Jobs().Requeue(ctx, requireFlag("job", *job)); err != nil {
		return err
	}
	fmt.Printf("Job %s enqueued\n", *job)
	return nil
}

func setKey(ctx context.Context, b *bootstrap.Backend, args []string) error {
	fs := flag.NewFlagSet("set-key", flag.ExitOnError)
	name := fs.String("name", "", "anthropic, openai, gemini, flux or ideogram")
	key := fs.String("key", "", "API key (falls back to the provider's environment variable)")
	_ = fs.Parse(args)

	envs := map[string]string{
		credentials.Anthropic: "ANTHROPIC_API_KEY",
		credentials.OpenAI:    "OPENAI_API_KEY",
		credentials.Gemini:    "GEMINI_API_KEY",
		credentials.Flux:      "FLUX_API_KEY",
		credentials.Ideogram:  "IDEOGRAM_API_KEY",
	}
	n := strings.ToLower(strings.TrimSpace(*name))
	env, ok := envs[n]
	if !ok {
		return fmt.Errorf("unsupported key name %q", *name)
	}
	if b.Creds == nil {
		return errors.New("set-key needs STORE_DRIVER=postgres")
	}
	value := strings.TrimSpace(*key)
	if value == "" {
		value = strings.TrimSpace(os.Getenv(env))
	}
	if value == "" {
		return fmt.Errorf("%s key is required via -key or %s", n, env)
	}
	if err := b.Creds.Set(ctx, n, value); err != nil {
		return err
	}
	fmt.Printf("%s key stored\n", n)
	return nil
}

func revokeKey(ctx context.Context, b *bootstrap.Backend, args []string) error {
	fs := flag.NewFlagSet("revoke-key", flag.ExitOnError)
	name := fs.String("name", "", "anthropic, openai, gemini, flux or ideogram")
	_ = fs.Parse(args)

	if b.Creds == nil {
		return errors.New("revoke-key needs STORE_DRIVER=postgres")
	}
	n := strings.ToLower(requireFlag("name", *name))
	revoked, err := b.Creds.Revoke(ctx, n)
	if err != nil {
		return err
	}
	if !revoked {
		fmt.Printf("no active %s key\n", n)
		return nil
	}
	fmt.Printf("%s key revoked\n", n)
	return nil
}

func queueDepth(ctx context.Context, b *bootstrap.Backend) error {
	q, ok := b.Queue.(interface {
		Depth(ctx context.Context) (pending, dead int64, err error)
	})
	if !ok {
		return fmt.Errorf("queue driver %q does not report depth", b.Config.QueueDriver)
	}
	pending, dead, err := q.Depth(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("pending=%d dead_letter=%d\n", pending, dead)
	return nil
}

func parseTier(s string) (domain.Tier, error) {
	switch t := domain.Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case domain.TierStandard, domain.TierUnlimited:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported tier %q", s)
	}
}

func requireFlag(name, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		exitWithError(fmt.Errorf("-%s is required", name))
	}
	return value
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
