package cli

import (
	"github.com/spf13/cobra"

	"github.com/tarantool/go-storage-walker/hasher"
	"github.com/tarantool/go-storage-walker/keys"
)

// KeyReport describes one storage key.
type KeyReport struct {
	Key      string `json:"key"                yaml:"key"`
	Module   string `json:"module,omitempty"   yaml:"module,omitempty"`
	Function string `json:"function,omitempty" yaml:"function,omitempty"`
	Params   string `json:"params,omitempty"   yaml:"params,omitempty"`
	Pallet   string `json:"pallet,omitempty"   yaml:"pallet,omitempty"`
	Item     string `json:"item,omitempty"     yaml:"item,omitempty"`
	Hasher   string `json:"hasher,omitempty"   yaml:"hasher,omitempty"`
}

func newDecomposeCmd(a *app) *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct
		Use:     "decompose KEY",
		Short:   "Split a storage key into module, function and parameter segments",
		Example: "  storagewalk decompose 0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9...",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			components, err := keys.Decompose(args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}

			return printTyped(a.opts.Out, a.cfg.Output, KeyReport{ //nolint:exhaustruct
				Key:      components.Key(),
				Module:   components.ModuleKey,
				Function: components.FnKey,
				Params:   components.ParamsKey,
			})
		},
	}
}

func newPrefixCmd(a *app) *cobra.Command {
	var hasherName, mapKey string

	cmd := &cobra.Command{ //nolint:exhaustruct
		Use:   "prefix PALLET ITEM",
		Short: "Compute the storage prefix of a pallet item, or the key of one map entry",
		Example: "  storagewalk prefix System Account\n" +
			"  storagewalk prefix System Account --hasher blake2_128concat --map-key 0x00112233",
		Args: cobra.ExactArgs(2), //nolint:mnd
		RunE: func(_ *cobra.Command, args []string) error {
			report := KeyReport{Pallet: args[0], Item: args[1]} //nolint:exhaustruct

			if mapKey == "" {
				prefix, err := keys.StoragePrefix(args[0], args[1])
				if err != nil {
					return err //nolint:wrapcheck
				}

				report.Key = prefix

				return printTyped(a.opts.Out, a.cfg.Output, report)
			}

			h, ok := hasher.ByName(hasherName)
			if !ok {
				return invalid("unknown hasher %q", hasherName)
			}

			encoded, err := keys.ToBytes(mapKey)
			if err != nil {
				return err //nolint:wrapcheck
			}

			key, err := keys.MapKey(args[0], args[1], h, encoded)
			if err != nil {
				return err //nolint:wrapcheck
			}

			report.Key = key
			report.Hasher = h.Name()

			return printTyped(a.opts.Out, a.cfg.Output, report)
		},
	}

	cmd.Flags().StringVar(&hasherName, "hasher", "blake2_128concat",
		"map key hasher (twox128, twox64concat, blake2_128concat, identity)")
	cmd.Flags().StringVar(&mapKey, "map-key", "", "SCALE-encoded map key as 0x-prefixed hex")

	return cmd
}
