package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	walker "github.com/tarantool/go-storage-walker"
	"github.com/tarantool/go-storage-walker/marshaller"
	"github.com/tarantool/go-storage-walker/progress"
)

// Report is printed by the walking commands.
type Report struct {
	Command       string   `json:"command"          yaml:"command"`
	Backend       string   `json:"backend"          yaml:"backend"`
	Prefix        string   `json:"prefix"           yaml:"prefix"`
	At            string   `json:"at,omitempty"     yaml:"at,omitempty"`
	Prefixes      int      `json:"prefixes"         yaml:"prefixes"`
	Pages         int      `json:"pages"            yaml:"pages"`
	Keys          int      `json:"keys"             yaml:"keys"`
	HandlerErrors int      `json:"handler_errors"   yaml:"handler_errors"`
	Elapsed       string   `json:"elapsed"          yaml:"elapsed"`
	Rate          float64  `json:"rate"             yaml:"rate"`
	Failed        []string `json:"failed,omitempty" yaml:"failed,omitempty"`

	Issuance *IssuanceReport `json:"issuance,omitempty" yaml:"issuance,omitempty"`
	Dump     *DumpReport     `json:"dump,omitempty"     yaml:"dump,omitempty"`
}

// IssuanceReport holds System.Account totals in plancks. Queried is the
// Balances.TotalIssuance value, empty when the check is skipped.
type IssuanceReport struct {
	Accounts   int64  `json:"accounts"          yaml:"accounts"`
	Invalid    int64  `json:"invalid"           yaml:"invalid"`
	Free       string `json:"free"              yaml:"free"`
	Reserved   string `json:"reserved"          yaml:"reserved"`
	Total      string `json:"total"             yaml:"total"`
	Human      string `json:"total_human"       yaml:"total_human"`
	Queried    string `json:"queried,omitempty" yaml:"queried,omitempty"`
	Consistent bool   `json:"consistent"        yaml:"consistent"`
}

// DumpReport describes a snapshot written by dump.
type DumpReport struct {
	Dir     string `json:"dir"     yaml:"dir"`
	Skipped int    `json:"skipped" yaml:"skipped"`
	Written int64  `json:"written" yaml:"written"`
}

func newReport(command string, cfg Config, prefix, at string, prefixes int) Report {
	return Report{ //nolint:exhaustruct
		Command:  command,
		Backend:  cfg.Backend,
		Prefix:   prefix,
		At:       at,
		Prefixes: prefixes,
	}
}

// finish fills the walk results in.
func (r *Report) finish(stats walker.Stats, elapsed time.Duration, err error) {
	r.Pages = stats.Pages
	r.Keys = stats.Keys
	r.HandlerErrors = stats.HandlerErrors
	r.Elapsed = elapsed.Round(time.Millisecond).String()
	r.Rate = progress.Throughput(int64(stats.Keys), elapsed)

	var walkErr walker.WalkError
	if errors.As(err, &walkErr) {
		r.Failed = walkErr.Prefixes()
	}
}

func printTyped[T any](out io.Writer, format string, value T) error {
	marsh, err := marshaller.ForFormat[T](format)
	if err != nil {
		return err //nolint:wrapcheck
	}

	data, err := marsh.Marshal(value)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("failed to print report: %w", err)
	}

	return nil
}

// print writes the report and passes walkErr through, so a partial walk
// still prints what it found before the command fails.
func (a *app) print(report Report, walkErr error) error {
	if err := printTyped(a.opts.Out, a.cfg.Output, report); err != nil {
		return errors.Join(walkErr, err)
	}

	return walkErr
}
