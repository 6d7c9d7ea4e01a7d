package dispatch

import (
	"github.com/shaharia-lab/muster/internal/push"
	"github.com/shaharia-lab/muster/internal/storage"
)

// DefaultDeadTokenCodes are the only per-token failures that prove a token
// will never work again. Every other failure code leaves the token in place.
var DefaultDeadTokenCodes = []string{
	push.CodeInvalidRegistrationToken,
	push.CodeRegistrationNotFound,
}

// chunkTokens splits tokens into consecutive slices of at most size entries.
func chunkTokens(tokens []string, size int) [][]string {
	if size <= 0 || size > push.MaxMulticastTokens {
		size = push.MaxMulticastTokens
	}
	chunks := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := min(start+size, len(tokens))
		chunks = append(chunks, tokens[start:end])
	}
	return chunks
}

// collectDead records, into dead, every token in batch whose aligned outcome
// carries a permanent error code.
func collectDead(batch []string, resp *push.BatchResponse, deadCodes map[string]bool, dead map[string]struct{}) {
	for i, r := range resp.Responses {
		if r.Success {
			continue
		}
		if deadCodes[r.ErrorCode] {
			dead[batch[i]] = struct{}{}
		}
	}
}

// subscriptionsToPrune returns the IDs of every subscription holding a dead
// token, including all duplicates of that token.
func subscriptionsToPrune(subs []storage.Subscription, dead map[string]struct{}) []string {
	if len(dead) == 0 {
		return nil
	}
	ids := make([]string, 0, len(dead))
	for _, s := range subs {
		if _, ok := dead[s.Token]; ok {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
