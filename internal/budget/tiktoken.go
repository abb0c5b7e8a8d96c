package budget

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const tiktokenTurnOverhead = 4

// TiktokenOracle counts tokens with an OpenAI BPE encoding.
type TiktokenOracle struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewTiktokenOracle creates an oracle for an encoding name ("cl100k_base", "o200k_base").
// The encoding is loaded on first use; a load failure makes every Count fail,
// which sends Trim to its heuristic.
func NewTiktokenOracle(encoding string) *TiktokenOracle {
	return &TiktokenOracle{encoding: encoding}
}

// EncodingForModel picks the BPE encoding of an OpenAI-family model.
func EncodingForModel(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "gpt-4.1"), strings.HasPrefix(m, "gpt-5"),
		strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}

func (o *TiktokenOracle) load() (*tiktoken.Tiktoken, error) {
	o.once.Do(func() {
		o.enc, o.err = tiktoken.GetEncoding(o.encoding)
		if o.err != nil {
			o.err = fmt.Errorf("tiktoken: load %s: %w", o.encoding, o.err)
		}
	})
	return o.enc, o.err
}

// Count returns the exact token count of w, with a fixed per-turn framing cost.
func (o *TiktokenOracle) Count(ctx context.Context, w Window) (int, error) {
	enc, err := o.load()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, t := range w {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		total += tiktokenTurnOverhead + len(enc.Encode(t.Role, nil, nil)) + len(enc.Encode(t.Text, nil, nil))
		for _, p := range t.ToolPayloads {
			total += len(enc.Encode(string(p), nil, nil))
		}
	}
	return total, nil
}
