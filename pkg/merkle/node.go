// Package merkle fingerprints conversations as content-addressed hash chains.
//
// Clients resend every prior turn on each call, so the chain built for one
// call is a prefix of the chain built for the next call of the same
// conversation. Comparing root and head hashes correlates calls without the
// relay retaining anything.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/papercomputeco/troubleshoot/pkg/llm"
)

// Node is a single content-addressed link in a conversation chain.
type Node struct {
	// Hash is the content-addressed identifier (SHA-256, hex-encoded)
	Hash string `json:"hash"`

	// ParentHash links to the previous turn's hash.
	// This will be nil for the first turn of a conversation.
	ParentHash *string `json:"parent_hash"`

	// Content is the hashable content for the node
	Content any `json:"content"`
}

// input is the canonical hash preimage of a node.
type input struct {
	Content any    `json:"content"`
	Parent  string `json:"parent,omitempty"`
}

// NewNode creates a new node with the computed hash for the provided content
func NewNode(content any, parent *Node) *Node {
	n := &Node{
		Content: content,
	}

	if parent != nil {
		n.ParentHash = &parent.Hash
	}

	n.Hash = n.computeHash()
	return n
}

func (n *Node) computeHash() string {
	i := &input{
		Content: n.Content,
	}

	if n.ParentHash != nil {
		i.Parent = *n.ParentHash
	}

	data, err := json.Marshal(i)
	if err != nil {
		panic("failed to marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Chain links one node per turn, oldest first.
func Chain(turns []llm.Message) []*Node {
	nodes := make([]*Node, 0, len(turns))

	var parent *Node
	for _, turn := range turns {
		node := NewNode(turn, parent)
		nodes = append(nodes, node)
		parent = node
	}

	return nodes
}

// Fingerprint summarizes a conversation chain.
type Fingerprint struct {
	// Root is the hash of the first turn; stable across every call of a conversation.
	Root string

	// Head is the hash of the last turn.
	Head string

	// Depth is the number of turns hashed.
	Depth int
}

// Sum computes the fingerprint of a conversation. An empty conversation
// yields the zero Fingerprint.
func Sum(turns []llm.Message) Fingerprint {
	nodes := Chain(turns)
	if len(nodes) == 0 {
		return Fingerprint{}
	}

	return Fingerprint{
		Root:  nodes[0].Hash,
		Head:  nodes[len(nodes)-1].Hash,
		Depth: len(nodes),
	}
}

// Short returns the first n characters of a hash, for logging.
func Short(hash string, n int) string {
	if len(hash) <= n {
		return hash
	}
	return hash[:n]
}
