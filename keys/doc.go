// Package keys manages the Ed25519 wallets that sign ledger transactions.
//
// Stable:
//   - Pure, deterministic primitives: wallet construction from a seed and
//     sub-wallet seed derivation.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore). It is a local convenience for
//     the CLI and not part of the ledger protocol.
package keys
