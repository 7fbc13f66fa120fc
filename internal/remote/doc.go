// Package remote drives commands on lab machines through the system ssh
// binary: one multiplexed master session per target, synchronous and
// detached execution, pattern-verified runs, and a uniform error taxonomy
// distinguishing local timeouts, transport timeouts, authentication
// failures and remote command failures.
package remote
