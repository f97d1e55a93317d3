package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tarantool/go-storage-walker/accounts"
	"github.com/tarantool/go-storage-walker/keys"
)

var errNoIssuance = errors.New("no Balances.TotalIssuance value")

func newIssuanceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "issuance",
		Short: "Check that account balances add up to the total issuance",
		Long: "issuance walks System.Account and adds up the free and reserved balance of every " +
			"account, then compares the sum with Balances.TotalIssuance at the same block and " +
			"fails when they differ. Entries that fail to decode are counted as invalid and logged.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.issuance(cmd.Context())
		},
	}

	cmd.Flags().Bool("skip-issuance-check", false, "only sum the balances, do not compare with Balances.TotalIssuance")

	return cmd
}

func (a *app) issuance(ctx context.Context) error {
	prefix, err := keys.StoragePrefix(accounts.Pallet, accounts.Item)
	if err != nil {
		return err //nolint:wrapcheck
	}

	s, err := a.openSession(ctx, "issuance", a.cfg.At)
	if err != nil {
		return err
	}
	defer s.close()

	aggregate := accounts.NewIssuance()
	start := time.Now()

	stats, walkErr := s.walker.WalkAll(ctx, a.pool(), prefix, s.at, s.track(aggregate.Handle))
	totals := aggregate.Totals()

	if totals.Invalid > 0 {
		s.logger.Warn("skipped invalid accounts", zap.Int64("invalid", totals.Invalid))
	}

	report := newReport("issuance", a.cfg, prefix, s.at, keys.Fanout)
	report.finish(stats, time.Since(start), walkErr)
	report.Issuance = &IssuanceReport{ //nolint:exhaustruct
		Accounts: totals.Accounts,
		Invalid:  totals.Invalid,
		Free:     totals.Free.Dec(),
		Reserved: totals.Reserved.Dec(),
		Total:    totals.Issuance.Dec(),
		Human:    humanize.BigComma(totals.Issuance.ToBig()),
	}

	if a.cfg.SkipIssuanceCheck {
		return a.print(report, walkErr)
	}

	queried, err := queryIssuance(ctx, s)
	if err != nil {
		return a.print(report, errors.Join(walkErr, err))
	}

	report.Issuance.Queried = queried.Dec()

	// A partial walk cannot be compared.
	if walkErr != nil {
		return a.print(report, walkErr)
	}

	checkErr := totals.Check(queried)
	report.Issuance.Consistent = checkErr == nil

	return a.print(report, checkErr)
}

// queryIssuance reads Balances.TotalIssuance at the session position.
func queryIssuance(ctx context.Context, s *session) (*uint256.Int, error) {
	key, err := keys.StoragePrefix(accounts.IssuancePallet, accounts.IssuanceItem)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	values, err := s.src.Values(ctx, []string{key}, s.at)
	if err != nil {
		return nil, fmt.Errorf("failed to query total issuance: %w", err)
	}

	for _, entry := range values {
		if entry.Key == key {
			return accounts.DecodeBalance(entry.Value) //nolint:wrapcheck
		}
	}

	return nil, fmt.Errorf("%w at %q", errNoIssuance, s.at)
}
