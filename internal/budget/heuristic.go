package budget

// DefaultCharsPerToken is the character/token ratio used when no oracle is available.
const DefaultCharsPerToken = 4

// DefaultTurnOverhead approximates role and framing tokens per turn.
const DefaultTurnOverhead = 4

// Heuristic estimates token counts from character counts.
type Heuristic struct {
	CharsPerToken int
	TurnOverhead  int
}

func (h Heuristic) withDefaults() Heuristic {
	if h.CharsPerToken <= 0 {
		h.CharsPerToken = DefaultCharsPerToken
	}
	if h.TurnOverhead < 0 {
		h.TurnOverhead = 0
	}
	return h
}

// TurnTokens estimates one turn: text plus serialized tool payloads, plus overhead.
func (h Heuristic) TurnTokens(t Turn) int {
	h = h.withDefaults()
	chars := len(t.Text)
	for _, p := range t.ToolPayloads {
		chars += len(p)
	}
	return ceilDiv(chars, h.CharsPerToken) + h.TurnOverhead
}

// WindowTokens estimates a whole window.
func (h Heuristic) WindowTokens(w Window) int {
	total := 0
	for _, t := range w {
		total += h.TurnTokens(t)
	}
	return total
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
