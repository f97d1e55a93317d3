// Package accounts decodes System.Account entries of a Substrate chain
// with 20-byte account ids and aggregates balances over a walk.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/tarantool/go-storage-walker/kv"
)

const (
	// Pallet and Item name the storage map holding account data.
	Pallet = "System"
	Item   = "Account"

	// IssuancePallet and IssuanceItem name the total issuance tracked by
	// the runtime.
	IssuancePallet = "Balances"
	IssuanceItem   = "TotalIssuance"

	// AccountIDLen is the length of an account id in bytes.
	AccountIDLen = 20

	headerLen  = 16
	balanceLen = 16
)

// ErrIssuanceMismatch is returned when account balances do not add up to
// the total issuance.
var ErrIssuanceMismatch = errors.New("account balances do not match total issuance")

// AccountInfo is the decoded System.Account value.
type AccountInfo struct {
	Nonce       uint32
	Consumers   uint32
	Providers   uint32
	Sufficients uint32
	Free        *uint256.Int
	Reserved    *uint256.Int
	// Frozen is nil for runtimes that do not store it.
	Frozen *uint256.Int
}

// Total returns free plus reserved balance.
func (a AccountInfo) Total() *uint256.Int {
	return new(uint256.Int).Add(a.Free, a.Reserved)
}

func leUint32(raw []byte) uint32 {
	return uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
}

// leUint128 decodes a little-endian unsigned integer.
func leUint128(raw []byte) *uint256.Int {
	be := make([]byte, len(raw))
	for i, b := range raw {
		be[len(raw)-1-i] = b
	}

	return new(uint256.Int).SetBytes(be)
}

// DecodeBalance decodes a hex little-endian u128 balance, such as the
// Balances.TotalIssuance value.
func DecodeBalance(value string) (*uint256.Int, error) {
	raw, err := hexutil.Decode(value)
	if err != nil {
		return nil, DecodeError{Key: "", Problem: "balance is not hex", Err: err}
	}

	if len(raw) != balanceLen {
		return nil, DecodeError{
			Key:     "",
			Problem: fmt.Sprintf("balance has %d bytes, expected %d", len(raw), balanceLen),
			Err:     nil,
		}
	}

	return leUint128(raw), nil
}

// DecodeAccountInfo decodes a hex System.Account value: four u32 reference
// counters followed by free, reserved and, when present, frozen u128
// balances, all little-endian.
func DecodeAccountInfo(value string) (AccountInfo, error) {
	raw, err := hexutil.Decode(value)
	if err != nil {
		return AccountInfo{}, DecodeError{Key: "", Problem: "value is not hex", Err: err}
	}

	if len(raw) < headerLen+2*balanceLen {
		return AccountInfo{}, DecodeError{Key: "", Problem: "value is too short", Err: nil}
	}

	info := AccountInfo{
		Nonce:       leUint32(raw[0:4]),
		Consumers:   leUint32(raw[4:8]),
		Providers:   leUint32(raw[8:12]),
		Sufficients: leUint32(raw[12:16]),
		Free:        leUint128(raw[headerLen : headerLen+balanceLen]),
		Reserved:    leUint128(raw[headerLen+balanceLen : headerLen+2*balanceLen]),
		Frozen:      nil,
	}

	if len(raw) >= headerLen+3*balanceLen {
		info.Frozen = leUint128(raw[headerLen+2*balanceLen : headerLen+3*balanceLen])
	}

	return info, nil
}

// AccountID returns the account id at the end of a System.Account key.
func AccountID(key string) (string, error) {
	if !strings.HasPrefix(key, "0x") || len(key) < 2+2*AccountIDLen {
		return "", DecodeError{Key: key, Problem: "key is too short", Err: nil}
	}

	id := "0x" + strings.ToLower(key[len(key)-2*AccountIDLen:])
	if _, err := hexutil.Decode(id); err != nil {
		return "", DecodeError{Key: key, Problem: "account id is not hex", Err: err}
	}

	return id, nil
}

// Totals summarizes the accounts seen by an Issuance.
type Totals struct {
	Accounts int64
	Free     *uint256.Int
	Reserved *uint256.Int
	Issuance *uint256.Int
	Invalid  int64
}

// Issuance sums balances of every account handed to it. It is safe for
// concurrent use, so a single Issuance can serve all sub-prefix walks.
type Issuance struct {
	mu       sync.Mutex
	accounts int64
	invalid  int64
	free     uint256.Int
	reserved uint256.Int
}

// NewIssuance returns an empty aggregator.
func NewIssuance() *Issuance {
	return &Issuance{} //nolint:exhaustruct
}

// Handle adds every account of the page. Invalid entries are skipped and
// reported together once the rest of the page is added.
func (i *Issuance) Handle(_ context.Context, page []kv.KeyValue) error {
	var errs []error

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, entry := range page {
		if _, err := AccountID(entry.Key); err != nil {
			i.invalid++
			errs = append(errs, err)

			continue
		}

		info, err := DecodeAccountInfo(entry.Value)
		if err != nil {
			var decodeErr DecodeError
			if errors.As(err, &decodeErr) {
				decodeErr.Key = entry.Key
				err = decodeErr
			}

			i.invalid++
			errs = append(errs, err)

			continue
		}

		i.accounts++
		i.free.Add(&i.free, info.Free)
		i.reserved.Add(&i.reserved, info.Reserved)
	}

	return errors.Join(errs...)
}

// Totals returns the sums so far.
func (i *Issuance) Totals() Totals {
	i.mu.Lock()
	defer i.mu.Unlock()

	free := i.free.Clone()
	reserved := i.reserved.Clone()

	return Totals{
		Accounts: i.accounts,
		Free:     free,
		Reserved: reserved,
		Issuance: new(uint256.Int).Add(free, reserved),
		Invalid:  i.invalid,
	}
}

// Check compares the summed balances with the total issuance queried at the
// same chain position.
func (t Totals) Check(queried *uint256.Int) error {
	if !t.Issuance.Eq(queried) {
		return fmt.Errorf("%w: accounts hold %s, total issuance is %s",
			ErrIssuanceMismatch, t.Issuance.Dec(), queried.Dec())
	}

	return nil
}
