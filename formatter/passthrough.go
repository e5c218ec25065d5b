package formatter

import (
	"context"

	"github.com/BaSui01/streamflow/types"
)

// Passthrough copies chunk payloads verbatim into the stream output.
// It is the default formatter for providers whose chunks are already
// plain text.
type Passthrough struct{}

// NewPassthrough creates a Passthrough formatter.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (p *Passthrough) Name() string {
	return "passthrough"
}

func (p *Passthrough) Process(_ context.Context, chunk []byte, _ bool, _ types.StreamContext) (Result, error) {
	return Result{Content: string(chunk)}, nil
}
