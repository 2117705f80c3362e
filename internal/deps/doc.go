// Package deps locates the external binaries the transcoder host relies on.
//
// Binary lookup is an explicit ordered Chain of Resolver functions, each
// returning a Resolution that is either a found path or not-found. The first
// hit wins; a chain that finds nothing is not an error, callers simply leave
// the corresponding override unset and let the child do its own discovery.
package deps
