// Package storage provides the key/value backends the host lends to the
// script environment.
//
// The wallet bundle persists sessions and wallet metadata through a storage
// interface the embedding host supplies; the bridge treats the values as
// opaque strings and never inspects them. MemoryStore suits tests and
// short-lived processes, RedisStore gives the embedded interpreter durable
// storage across restarts.
package storage
