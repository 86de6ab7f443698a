// Package app is the composition layer of the economy service.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, lifecycle, Deploy
//	├── access/             # capability guard shared by every ledger
//	├── core/service/       # component descriptors reported by /healthz
//	├── domain/             # pure data: address, resource, recipe, item, market, access
//	├── ledger/             # resource, item and currency ledgers
//	├── events/             # post-commit event publishers
//	├── services/           # crafting, market, registry, treasury, supply, random
//	├── storage/            # Store/Tx interfaces, memory and SQL implementations
//	├── httpapi/            # REST surface
//	├── system/             # lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// # Transactions
//
// Every public operation runs as a single storage.Store Update. Ledgers never
// open transactions of their own; they receive the caller's storage.Tx, so a
// craft that burns five resources and mints an item either commits all six
// writes or none.
//
// # Authorization
//
// Privileged ledger calls are checked by access.Guard against the grant
// table. The registry service is the only writer of that table and only the
// ledger owner may use it. Application.Deploy grants the crafting engine
// mint/burn on resources and items and the marketplace mint/burn on currency.
package app
