// Package audit provides a tamper-evident log: each entry carries the
// hash of its predecessor, so rewriting history breaks the chain.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// LogEntry is a single audit record.
type LogEntry struct {
	Sequence     int64  `json:"sequence"`
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previous_hash"`
	Payload      string `json:"payload"`
	Hash         string `json:"hash"`
}

// Sink persists finished entries. Implementations must keep insertion
// order; the chain is only verifiable in sequence.
type Sink interface {
	Write(entry *LogEntry) error
}

// ChainLogger hash-chains entries and optionally persists them to a Sink.
type ChainLogger struct {
	mu           sync.Mutex
	previousHash string
	sequence     int64
	sink         Sink
	now          func() time.Time
}

func NewChainLogger() *ChainLogger {
	return &ChainLogger{
		previousHash: genesisHash,
		now:          time.Now,
	}
}

// NewChainLoggerWithSink resumes a chain on top of the sink's last entry.
// head and lastSequence come from the sink; pass "" and 0 for an empty one.
func NewChainLoggerWithSink(sink Sink, head string, lastSequence int64) *ChainLogger {
	if head == "" {
		head = genesisHash
	}
	return &ChainLogger{
		previousHash: head,
		sequence:     lastSequence,
		sink:         sink,
		now:          time.Now,
	}
}

var genesisHash = strings.Repeat("0", 64)

// Append creates the next entry in the chain. With a sink attached the
// entry is persisted before the chain head advances; a sink failure
// leaves the chain unchanged.
func (c *ChainLogger) Append(payload string) (*LogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &LogEntry{
		Sequence:     c.sequence + 1,
		Timestamp:    c.now().UTC().Format(time.RFC3339),
		PreviousHash: c.previousHash,
		Payload:      payload,
	}
	entry.Hash = entryHash(entry.PreviousHash, entry.Timestamp, entry.Payload)

	if c.sink != nil {
		if err := c.sink.Write(entry); err != nil {
			return nil, fmt.Errorf("audit: persist entry: %w", err)
		}
	}

	c.previousHash = entry.Hash
	c.sequence = entry.Sequence
	return entry, nil
}

// Head returns the hash of the last appended entry.
func (c *ChainLogger) Head() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previousHash
}

func entryHash(previousHash, timestamp, payload string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", previousHash, timestamp, payload)))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks that entries form an unbroken hash chain.
func VerifyChain(entries []*LogEntry) bool {
	for i, entry := range entries {
		if i > 0 && entry.PreviousHash != entries[i-1].Hash {
			return false
		}
		if entryHash(entry.PreviousHash, entry.Timestamp, entry.Payload) != entry.Hash {
			return false
		}
	}
	return true
}
