// Package audit records administrative actions on the protocol support.
//
// Every call to the mutating API endpoints (init and device authentication)
// leaves an entry in the audit_logs table, so operators can see when the
// token secret was rotated or which credentials were tried. Secrets are
// never written to the trail.
//
// Entries are written with Repository.Create and read back newest first
// with Repository.List. Prune removes entries older than a retention cutoff.
package audit
