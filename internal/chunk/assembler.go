package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/metta-indexer/internal/symbol"
)

// DefaultMaxSize is the default chunk budget in bytes.
const DefaultMaxSize = 1500

// Resolver looks up the text of a stored text node.
type Resolver interface {
	ResolveText(ctx context.Context, nodeID string) (string, error)
}

// AssemblerConfig configures an Assembler.
type AssemblerConfig struct {
	MaxSize  int
	Merge    MergeStrategy
	Version  string
	Resolver Resolver // required when fragments carry node ids
	Logger   *slog.Logger
}

// Assembler packs the fragments of each symbol-index row into chunks of at
// most MaxSize bytes, splitting single fragments that are too large on
// their own.
type Assembler struct {
	maxSize  int
	version  string
	splitter Splitter
	resolver Resolver
	logger   *slog.Logger
}

// NewAssembler creates an assembler, filling unset config with defaults.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Merge == "" {
		cfg.Merge = MergePair
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Assembler{
		maxSize:  cfg.MaxSize,
		version:  cfg.Version,
		splitter: Splitter{MaxSize: cfg.MaxSize, Merge: cfg.Merge},
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
	}
}

// MaxSize returns the byte budget of the assembler.
func (a *Assembler) MaxSize() int {
	return a.maxSize
}

// Assemble chunks every row in order. Buckets are never interleaved: each
// row contributes its definitions, calls, asserts and types in that order.
func (a *Assembler) Assemble(ctx context.Context, rows []symbol.Entry) ([]Chunk, error) {
	var chunks []Chunk
	for _, row := range rows {
		rowChunks, err := a.AssembleRow(ctx, row.Fragments())
		if err != nil {
			return chunks, fmt.Errorf("symbol %s: %w", row.Name, err)
		}
		chunks = append(chunks, rowChunks...)
	}
	return chunks, nil
}

// buffer accumulates fragments for the chunk being built.
type buffer struct {
	texts []string
	paths []string
	size  int
}

func (b *buffer) empty() bool {
	return len(b.texts) == 0
}

// sizeWith returns the joined size if text were appended.
func (b *buffer) sizeWith(text string) int {
	if b.empty() {
		return len(text)
	}
	return b.size + 1 + len(text)
}

func (b *buffer) add(text, path string) {
	b.size = b.sizeWith(text)
	b.texts = append(b.texts, text)
	b.paths = append(b.paths, path)
}

// AssembleRow chunks one row's fragments.
func (a *Assembler) AssembleRow(ctx context.Context, frags []symbol.Fragment) ([]Chunk, error) {
	var (
		chunks []Chunk
		buf    buffer
	)

	emit := func(text string, paths []string) {
		if text == "" {
			return
		}
		chunks = append(chunks, New(text, paths, a.version))
	}
	flush := func() {
		if !buf.empty() {
			emit(strings.Join(buf.texts, "\n"), buf.paths)
		}
		buf = buffer{}
	}

	for _, frag := range frags {
		text, err := a.resolve(ctx, frag)
		if err != nil {
			return nil, err
		}
		if text == "" {
			continue
		}

		switch {
		case len(text) > a.maxSize:
			flush()
			for _, piece := range a.split(text, frag.Path) {
				emit(piece, []string{frag.Path})
			}

		case buf.sizeWith(text) > a.maxSize:
			flush()
			buf.add(text, frag.Path)

		default:
			buf.add(text, frag.Path)
		}
	}
	flush()

	return chunks, nil
}

// split breaks an oversized fragment. A fragment that no longer parses is
// kept whole rather than dropped.
func (a *Assembler) split(text, path string) []string {
	pieces, err := a.splitter.SplitText(text)
	if err != nil {
		a.logger.Warn("cannot split oversized fragment, keeping it whole",
			"path", path, "size", len(text), "error", err)
		return []string{text}
	}
	return pieces
}

func (a *Assembler) resolve(ctx context.Context, frag symbol.Fragment) (string, error) {
	if frag.NodeID == "" {
		return frag.Text, nil
	}
	if a.resolver == nil {
		return "", fmt.Errorf("fragment %s: no resolver for text nodes", frag.NodeID)
	}
	text, err := a.resolver.ResolveText(ctx, frag.NodeID)
	if err != nil {
		return "", fmt.Errorf("resolve text node %s: %w", frag.NodeID, err)
	}
	return text, nil
}
