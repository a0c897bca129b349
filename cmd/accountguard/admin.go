package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/accountguard"
	"github.com/MrEthical07/accountguard/account"
	"github.com/MrEthical07/accountguard/audit"
	"github.com/MrEthical07/accountguard/password"
)

// withDatabaseRuntime builds a runtime for an operator command. Operator
// commands act on persisted accounts, so a database is required.
func withDatabaseRuntime(cmd *cobra.Command, fn func(context.Context, *runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := newRuntime(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.requireDatabase(); err != nil {
		return err
	}
	return fn(ctx, rt)
}

type createAccountOptions struct {
	username string
	email    string
	inactive bool
}

// NewCreateAccountCmd creates the create-account subcommand.
func NewCreateAccountCmd() *cobra.Command {
	opts := createAccountOptions{}

	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Create an account, reading its password from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabaseRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return runCreateAccount(ctx, rt, opts, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "", "username (required)")
	cmd.Flags().StringVar(&opts.email, "email", "", "email address (required)")
	cmd.Flags().BoolVar(&opts.inactive, "inactive", false, "create the account deactivated")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runCreateAccount(ctx context.Context, rt *runtime, opts createAccountOptions, in io.Reader, out io.Writer) error {
	username := strings.TrimSpace(opts.username)
	email := strings.TrimSpace(opts.email)
	if username == "" || email == "" {
		return oops.Code("INVALID_ARGUMENT").Errorf("username and email are required")
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return oops.Code("INVALID_ARGUMENT").With("operation", "read password").Wrap(err)
	}
	plaintext := strings.TrimRight(line, "\r\n")
	if err := rt.cfg.Password.Policy.Check(plaintext); err != nil {
		return oops.Code("INVALID_ARGUMENT").Wrap(err)
	}

	hasher, err := password.New(rt.cfg.Password.Hashing)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(plaintext)
	if errors.Is(err, password.ErrPasswordTooLong) {
		return oops.Code("INVALID_ARGUMENT").Wrap(err)
	}
	if err != nil {
		return oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}

	a := &account.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     !opts.inactive,
	}
	if err := rt.accounts.Create(ctx, a); err != nil {
		return err
	}

	_, err = io.WriteString(out, a.ID+"\n")
	return err
}

// NewUnlockCmd creates the unlock subcommand.
func NewUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <account-id>",
		Short: "Clear the lockout state of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabaseRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return runUnlock(ctx, rt.engine, args[0], cmd.OutOrStdout())
			})
		},
	}
}

func runUnlock(ctx context.Context, engine *accountguard.Engine, accountID string, out io.Writer) error {
	if err := engine.UnlockAccount(ctx, accountID); err != nil {
		return oops.Code("UNLOCK_FAILED").With("account_id", accountID).Wrap(err)
	}
	_, err := io.WriteString(out, "unlocked "+accountID+"\n")
	return err
}

type eventLister interface {
	ListByAccount(ctx context.Context, accountID string, limit int) ([]audit.Event, error)
}

// NewEventsCmd creates the events subcommand.
func NewEventsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events <account-id>",
		Short: "Print recent security events for an account as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabaseRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return runEvents(ctx, rt.events, args[0], limit, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")

	return cmd
}

func runEvents(ctx context.Context, events eventLister, accountID string, limit int, out io.Writer) error {
	list, err := events.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	for _, e := range list {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
