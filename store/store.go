package store

// Package store provides persistence implementations for the automation
// engine. The Store interface is defined in the parent automation package
// (../store_interface.go) to avoid import cycles between the automation
// and store packages.
//
// This package contains concrete implementations:
//   - DynamoDBStore: AWS DynamoDB backend using single-table design
//   - PostgresStore: PostgreSQL backend on pgx
//   - MemoryStore: In-memory backend for testing
//
// Schema design for DynamoDB follows the single-table patterns defined in
// schema.go.
