// Package postgres stores listener markers in PostgreSQL and queues River
// jobs next to them, so that advancing a marker and handing the delivered
// object to a worker commit atomically.
package postgres
