// Package llm provides the wire representations of chat relay requests and
// responses exchanged between clients and the relay.
package llm
