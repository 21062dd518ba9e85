// Package client wires the store, gateway, mutation coordinator and
// subscription channel into the single façade views talk to. Clients are
// constructed explicitly with New and disposed with Close; there are no
// package-level singletons.
package client
