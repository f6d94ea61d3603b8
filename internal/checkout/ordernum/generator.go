// Package ordernum mints the human-readable order identifiers printed on
// receipts and read out over the phone: twelve uppercase base-36
// characters grouped as XXXX-XXXX-XXXX.
//
// A code is derived from order context (customer phone, email, the SKUs in
// the cart) plus the current timestamp and an attempt counter, so retries
// produce a different code even within the same millisecond. Nothing about
// the construction guarantees uniqueness — callers MUST pass an existence
// check that runs inside the same transaction as the eventual insert,
// otherwise a classic check-then-insert race reappears.
package ordernum

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	codeLen     = 12
	suffixLen   = 3
	maxAttempts = 10
)

// ExistsFunc reports whether an order with the given formatted code is
// already recorded. It must observe the same transaction the caller will
// insert under.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator derives order numbers. The zero value is not usable; call New.
type Generator struct {
	now func() time.Time
}

func New() *Generator {
	return &Generator{now: time.Now}
}

// NewWithClock is used by tests to pin the timestamp component.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Generate returns a formatted code that exists() reported as free.
//
// It regenerates with an incremented attempt counter up to maxAttempts
// times. If every attempt collides it mutates the last three characters of
// the final candidate: first with a pseudo-random base-36 suffix, then —
// if even that is taken — with a timestamp-derived one. A collision on
// that last candidate is reported as an error; in practice it cannot
// happen unless the order table holds a large fraction of the 36^12 space.
func (g *Generator) Generate(ctx context.Context, phone, email string, skus []string, exists ExistsFunc) (string, error) {
	var raw string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		raw = g.derive(phone, email, skus, attempt)
		taken, err := exists(ctx, Format(raw))
		if err != nil {
			return "", fmt.Errorf("ordernum: existence check: %w", err)
		}
		if !taken {
			return Format(raw), nil
		}
	}

	// All digest-based attempts collided; fall back to suffix mutation of
	// the last candidate.
	candidate := raw[:codeLen-suffixLen] + randomSuffix()
	taken, err := exists(ctx, Format(candidate))
	if err != nil {
		return "", fmt.Errorf("ordernum: existence check: %w", err)
	}
	if !taken {
		return Format(candidate), nil
	}

	candidate = raw[:codeLen-suffixLen] + g.timestampSuffix()
	taken, err = exists(ctx, Format(candidate))
	if err != nil {
		return "", fmt.Errorf("ordernum: existence check: %w", err)
	}
	if taken {
		return "", fmt.Errorf("ordernum: exhausted %d attempts and both suffix fallbacks", maxAttempts)
	}
	return Format(candidate), nil
}

// derive builds the unformatted 12-character code for one attempt.
func (g *Generator) derive(phone, email string, skus []string, attempt int) string {
	ts := g.now().UnixMilli()
	seed := strings.Join([]string{
		phone,
		email,
		strings.Join(skus, ","),
		strconv.FormatInt(ts, 10),
		strconv.Itoa(attempt),
	}, "|")

	digest := sha256.Sum256([]byte(seed))

	var b strings.Builder
	b.Grow(codeLen)
	for _, by := range digest {
		if b.Len() == codeLen {
			break
		}
		b.WriteByte(alphabet[int(by)%len(alphabet)])
	}
	// Digest exhausted before twelve characters (cannot happen with
	// SHA-256, kept for safety if the hash is ever swapped): pad from the
	// timestamp digits.
	tsDigits := strconv.FormatInt(ts, 10)
	for i := 0; b.Len() < codeLen; i++ {
		d := tsDigits[i%len(tsDigits)] - '0'
		b.WriteByte(alphabet[int(d)%len(alphabet)])
	}
	return b.String()
}

// Format groups a raw 12-character code into three hyphenated blocks.
func Format(raw string) string {
	return raw[0:4] + "-" + raw[4:8] + "-" + raw[8:12]
}

func randomSuffix() string {
	b := make([]byte, suffixLen)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// timestampSuffix takes the low bits of the current time in base 36,
// deterministic within a millisecond but different across them.
func (g *Generator) timestampSuffix() string {
	s := strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	return s[len(s)-suffixLen:]
}
