// Package instagramgraphql provides a GraphQL gateway over an Instagram
// post feed stored in NATS JetStream KV.
//
// # Architecture
//
// The service is a thin stack of focused packages:
//
//	┌─────────────────────────────────────┐
//	│       gateway/graphql               │  HTTP endpoint, schema
//	│  (queries, mutations, websockets)   │  execution, playground
//	└─────────────────────────────────────┘
//	           ↓ resolves through
//	┌─────────────────────────────────────┐
//	│            feed                     │  Client-side joins,
//	│   (resolver, write coordinator)     │  referential validation
//	└─────────────────────────────────────┘
//	           ↓ reads and writes
//	┌─────────────────────────────────────┐
//	│            store                    │  Hierarchical key-value
//	│    (JetStream KV, in-memory)        │  access by entity path
//	└─────────────────────────────────────┘
//
// New posts are announced through a broadcast hub (package hub) after
// the write commits, feeding the latestPost subscription.
//
// # Data Model
//
// Two collections live in one KV bucket: posts and users. Posts hold
// their author strictly by reference (author_id); the full user record
// is joined in at read time so author edits are visible on every read.
// Users pre-exist in the store and are never created by this service.
//
// # Entry Point
//
// cmd/instagram-graphql wires the stack: NATS client, KV bucket, store
// gateway, feed resolver and coordinator, broadcast hub, and the
// GraphQL server, with configuration from JSON files and environment
// overrides (package config).
package instagramgraphql
