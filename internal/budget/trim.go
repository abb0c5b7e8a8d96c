package budget

import (
	"context"
	"log/slog"
)

// MinTurns is the number of most recent turns always kept, budget permitting or not.
const MinTurns = 2

// Oracle returns the exact token count of a window for one model family.
type Oracle interface {
	Count(ctx context.Context, w Window) (int, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, w Window) (int, error)

func (f OracleFunc) Count(ctx context.Context, w Window) (int, error) { return f(ctx, w) }

// Budgeter trims windows to a token target.
type Budgeter struct {
	// Oracle, when set, is tried first. Nil means heuristic only.
	Oracle    Oracle
	Heuristic Heuristic
}

// Trim is shorthand for Budgeter{Oracle: oracle}.Trim.
func Trim(ctx context.Context, w Window, target int, oracle Oracle) Window {
	return Budgeter{Oracle: oracle}.Trim(ctx, w, target)
}

// Trim returns the longest suffix of w whose size fits target, never fewer than
// min(MinTurns, len(w)) turns. target must already be net of the response
// reserve and tool-definition overhead.
func (b Budgeter) Trim(ctx context.Context, w Window, target int) Window {
	floor := min(MinTurns, len(w))
	if len(w) <= floor {
		return w
	}

	if b.Oracle != nil {
		if n, ok := b.searchOracle(ctx, w, target, floor); ok {
			return w.Suffix(n)
		}
	}
	return w.Suffix(b.fitHeuristic(w, target, floor))
}

// searchOracle binary-searches the longest fitting suffix length with
// O(log n) oracle calls. ok is false when any oracle call fails.
func (b Budgeter) searchOracle(ctx context.Context, w Window, target, floor int) (int, bool) {
	total, err := b.Oracle.Count(ctx, w)
	if err != nil {
		slog.Warn("token oracle failed, using heuristic", "error", err)
		return 0, false
	}
	if total <= target {
		return len(w), true
	}

	// invariant: suffix(lo) is acceptable (fits or is the floor), suffix(hi+1) does not fit
	lo, hi := floor, len(w)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		count, err := b.Oracle.Count(ctx, w.Suffix(mid))
		if err != nil {
			slog.Warn("token oracle failed, using heuristic", "error", err)
			return 0, false
		}
		if count <= target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, true
}

// fitHeuristic accumulates estimated turn sizes from the newest turn backward
// and stops at the first turn that no longer fits.
func (b Budgeter) fitHeuristic(w Window, target, floor int) int {
	h := b.Heuristic
	total := 0
	for i := len(w) - floor; i < len(w); i++ {
		total += h.TurnTokens(w[i])
	}
	kept := floor
	for i := len(w) - floor - 1; i >= 0; i-- {
		cost := h.TurnTokens(w[i])
		if total+cost > target {
			break
		}
		total += cost
		kept++
	}
	if kept < len(w) {
		slog.Debug("window trimmed", "turns", len(w), "kept", kept, "estimated_tokens", total, "target", target)
	}
	return kept
}
