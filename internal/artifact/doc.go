// Package artifact resolves a local directory that contains a distribution's
// installer executable. Lookups go through the durable tool cache first, then
// the run-scoped remote content cache, and finally download and extract the
// published package. Results are memoized per Manager.
package artifact
