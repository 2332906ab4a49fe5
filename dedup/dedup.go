// Package dedup implements the request-coalescing gate from spec §4.4: a
// single-flight dedup gate so that concurrent callers asking for the same
// expensive computation (e.g. rebuilding a trie for the same corpus_id)
// share one in-flight execution instead of each starting their own. Grounded
// on golang.org/x/sync/singleflight, which teacher's sibling pack repo
// (seanblong-reposearch) already depends on for the same shared-fetch
// pattern.
package dedup

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"lukechampine.com/blake3"
)

// Gate coalesces concurrent calls sharing the same key into one execution.
// Only calls that arrive while an execution for the key is still in flight
// share its result; once that execution has returned, the next call for the
// key runs fn again. A finished result is not kept for later callers:
// GraceDelay only postpones the Forget of the key by that long (zero
// forgets it at once).
type Gate struct {
	group      singleflight.Group
	GraceDelay time.Duration
}

// New creates a Gate with the given grace delay. With any delay, a call made
// after the previous execution for its key has returned starts fresh.
func New(graceDelay time.Duration) *Gate {
	return &Gate{GraceDelay: graceDelay}
}

// Do executes fn for key, or waits for and shares the result of an
// in-flight call for the same key.
func (g *Gate) Do(key string, fn func() (any, error)) (any, error, bool) {
	v, err, shared := g.group.Do(key, fn)
	if g.GraceDelay > 0 {
		go func() {
			time.Sleep(g.GraceDelay)
			g.group.Forget(key)
		}()
	} else {
		g.group.Forget(key)
	}
	return v, err, shared
}

// DoChan is the async form of Do, for callers that want to select on
// completion alongside other channels (e.g. a pipeline's cancellation ctx).
func (g *Gate) DoChan(key string, fn func() (any, error)) <-chan singleflight.Result {
	return g.group.DoChan(key, fn)
}

// Key builds a dedup gate key from a variable number of parts (e.g.
// resource_type, resource_id, discriminator) by hashing their joined form
// with blake3, a fast non-cryptographic-use hash already pulled in by the
// teacher's stack. Hashing keeps the singleflight key short and collision-
// resistant regardless of how long or how many the individual parts are.
func Key(parts ...string) string {
	h := blake3.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])
}
