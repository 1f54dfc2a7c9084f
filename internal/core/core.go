/*
Core runs the decode and top-of-book pipeline.

# Module
  - decoder: single instance, called in arrival order by the ingress
  - shard router: symbol index -> shard inbox
  - shard: single writer of its symbols' book slots
  - mailbox: latest book update per symbol for the downstream consumer

# Source
 1. replay frames from the unix socket ingress
 2. tests calling Submit directly

# Produce
  - book updates through the mailbox
  - consistent per-symbol snapshots through the arena

# Sharded
  - symbol index % shards
*/
package core
