package orchestrator

// Tier selects between the full and compact stage instructions.
type Tier string

const (
	TierCompact Tier = "compact" // < 16K context
	TierFull    Tier = "full"
)

// ResolveTier returns the prompt tier. An explicit tier from config wins;
// otherwise small context windows get the compact instructions.
func ResolveTier(explicit string, contextWindow int) Tier {
	switch Tier(explicit) {
	case TierCompact, TierFull:
		return Tier(explicit)
	}
	if contextWindow > 0 && contextWindow < 16_000 {
		return TierCompact
	}
	return TierFull
}
