// Package keys works with hex encoded storage keys: it splits prefixes into
// sub-prefixes for parallel enumeration, builds pallet storage prefixes and
// decomposes storage keys into their module, function and parameter parts.
package keys
