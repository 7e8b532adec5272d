// Package cluster replicates the ledger over Raft.
//
// Every transition is proposed as a log entry; the FSM applies committed
// entries to a local engine in log order, so all replicas walk through the
// same sequence of states and emit the same events. Snapshots are gzip
// compressed JSON images of the ledger state.
//
// Only the leader accepts writes. Reads are served from the local replica
// and may lag the leader by the entries not yet applied.
package cluster
