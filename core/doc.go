// Package core contains the forwarding pipeline: ingestion, fan-out, the job
// state machine and the delivery worker, plus the store and transport
// contracts they depend on. Storage, queue and HTTP adapters depend on this
// package; core must not depend on them.
package core
