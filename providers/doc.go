// Package providers groups the bundled HR source integrations. Each
// subpackage ships declarative mapping specs for the entities its source
// emits: connecteam (timesheets, workers), everee (worked shifts, workers)
// and workday (workers, applicants).
package providers
