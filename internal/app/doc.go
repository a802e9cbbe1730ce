// Package app composes the crusades services into a running application.
//
// # Architecture Role
//
// The app package sits between the entry points (cmd/crusades, the runtime
// package) and the domain services. It is NOT a business logic layer:
// rules about crusades, progress entries and leaderboards live in the
// domain and services packages below it.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── auth/               # Session token issuing and verification
//	├── core/service/       # Module descriptors
//	├── domain/             # Domain models and pure rules
//	│   ├── crusade/        # Crusades, enrollments, default catalog
//	│   ├── progress/       # Workouts, meals, units, X posts
//	│   ├── leaderboard/    # Periods, ranking, aggregation
//	│   └── user/           # Members and X handles
//	├── services/           # Use cases over the stores
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go
//	│   ├── memory/         # In-memory implementation for tests and dev
//	│   └── sqlstore/       # PostgreSQL and SQLite through sqlx
//	├── httpapi/            # HTTP routes, handlers and audit log
//	├── metrics/            # Prometheus collectors
//	├── runtime/            # Config to running server
//	└── system/             # Lifecycle manager
//
// # Dependency Direction
//
//	cmd/crusades/
//	      │
//	      ▼
//	internal/app/runtime ──► internal/app/httpapi
//	      │                         │
//	      ▼                         ▼
//	internal/app (composition) ◄────┘
//	      │
//	      ├──► internal/app/services/* ──► internal/app/domain/*
//	      │           │
//	      │           └──► internal/app/storage (interfaces)
//	      │
//	      └──► internal/objectstore, internal/cache, internal/discord,
//	           infra/supabase (integrations)
//
// # Example: Adding a New Domain
//
// When adding a new domain (e.g., "badges"):
//
//  1. Create domain models in internal/app/domain/badges/
//  2. Add the store interface to internal/app/storage/interfaces.go
//  3. Implement it in storage/memory and storage/sqlstore, with a migration
//  4. Create the service in internal/app/services/badges/
//  5. Wire it in internal/app/application.go
//  6. Add routes in internal/app/httpapi/
package app
