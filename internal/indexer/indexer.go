package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/randalmurphal/metta-indexer/internal/chunk"
	"github.com/randalmurphal/metta-indexer/internal/config"
	"github.com/randalmurphal/metta-indexer/internal/embedding"
	"github.com/randalmurphal/metta-indexer/internal/metrics"
	"github.com/randalmurphal/metta-indexer/internal/parser"
	"github.com/randalmurphal/metta-indexer/internal/security"
	"github.com/randalmurphal/metta-indexer/internal/store"
	"github.com/randalmurphal/metta-indexer/internal/symbol"
	"golang.org/x/sync/errgroup"
)

// ChunkStore persists text nodes and finished chunks.
type ChunkStore interface {
	InsertTextNode(ctx context.Context, n store.TextNode) (string, error)
	DeleteTextNodes(ctx context.Context, path string) error
	ResolveText(ctx context.Context, id string) (string, error)
	InsertChunks(ctx context.Context, chunks []chunk.Chunk) ([]chunk.Chunk, error)
	PendingChunks(ctx context.Context, limit int) ([]chunk.Chunk, error)
	MarkEmbedded(ctx context.Context, ids []string) error
}

// VectorStore receives embedded chunks.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, vectorSize int) error
	UpsertChunks(ctx context.Context, collection string, chunks []chunk.Chunk) error
}

// Deps are the backends an Indexer talks to. Only Index is required.
// Without a Store, fragment text lives in the index itself and chunks are
// only returned. Embedding needs both Embedder and Vectors. A Secrets
// detector only warns about chunks; it never changes them.
type Deps struct {
	Index    symbol.Index
	Store    ChunkStore
	Embedder embedding.Embedder
	Vectors  VectorStore
	Metrics  *metrics.Logger
	Secrets  *security.Detector
	Logger   *slog.Logger
}

// Indexer coordinates the pipeline: file discovery, parsing, symbol
// indexing, chunk assembly, storage and embedding.
type Indexer struct {
	config *config.Config
	deps   Deps
	logger *slog.Logger
}

// NewIndexer creates a new indexer with the given configuration.
func NewIndexer(cfg *config.Config, deps Deps) (*Indexer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("indexer needs a symbol index")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Indexer{
		config: cfg,
		deps:   deps,
		logger: deps.Logger,
	}, nil
}

// FileError records a file that could not be indexed.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// IndexResult contains statistics from an indexing run.
type IndexResult struct {
	FilesProcessed int
	SymbolsIndexed int
	ChunksCreated  int
	ChunksStored   int
	ChunksEmbedded int
	FlaggedChunks  int
	Chunks         []chunk.Chunk
	Errors         []error

	mu sync.Mutex
}

func (r *IndexResult) addError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, err)
}

func (r *IndexResult) addFile(symbols int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FilesProcessed++
	r.SymbolsIndexed += symbols
}

func (r *IndexResult) addFlush(f flushResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ChunksCreated += len(f.chunks)
	r.ChunksStored += f.stored
	r.ChunksEmbedded += f.embedded
	r.FlaggedChunks += f.flagged
	r.Chunks = append(r.Chunks, f.chunks...)
}

// sourceFile is a discovered file with its repo-prefixed relative path.
type sourceFile struct {
	path    string
	relPath string
}

// Index processes a repository. Files that fail to read or parse are
// recorded in the result and skipped; storage failures end the run.
func (idx *Indexer) Index(ctx context.Context, repoPath string, repoCfg *config.RepoConfig) (*IndexResult, error) {
	if repoCfg == nil {
		repoCfg = config.DefaultRepoConfig(repoPath)
	}
	result := &IndexResult{}

	if idx.embedding() {
		collection := idx.config.Storage.Collection
		if err := idx.deps.Vectors.EnsureCollection(ctx, collection, idx.deps.Embedder.Dimension()); err != nil {
			return nil, fmt.Errorf("failed to ensure collection: %w", err)
		}
	}

	var files []sourceFile
	walker := NewWalker(repoCfg.Include, repoCfg.Exclude)
	err := walker.Walk(repoPath, func(p, rel string) error {
		files = append(files, sourceFile{path: p, relPath: path.Join(repoCfg.Name, rel)})
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("walk failed: %w", err)
	}

	asm := idx.assembler(repoCfg.Version)

	if idx.config.Chunking.Scope == config.ScopeFile {
		err = idx.indexPerFile(ctx, files, asm, result)
	} else {
		err = idx.indexRepo(ctx, repoCfg.Name, files, asm, result)
	}
	if err != nil {
		idx.deps.Metrics.LogError("index", err.Error())
		return result, err
	}

	idx.deps.Metrics.LogIndexUpdate(repoCfg.Name, result.FilesProcessed, result.ChunksStored)
	idx.logger.Info("indexed repository",
		"repo", repoCfg.Name,
		"files", result.FilesProcessed,
		"chunks", result.ChunksCreated,
		"stored", result.ChunksStored,
		"errors", len(result.Errors))

	return result, nil
}

// ChunkSource chunks a single source text in its own scope, as if it were
// the only file of a repo. relPath names the text in chunk metadata.
func (idx *Indexer) ChunkSource(ctx context.Context, relPath, source, version string) ([]chunk.Chunk, error) {
	nodes, err := parser.Parse(source)
	if err != nil {
		return nil, &FileError{Path: relPath, Err: err}
	}

	scope := relPath
	defer idx.clear(ctx, scope)

	if _, err := idx.indexNodes(ctx, scope, relPath, source, nodes); err != nil {
		return nil, &FileError{Path: relPath, Err: err}
	}
	flushed, err := idx.flush(ctx, scope, idx.assembler(version))
	if err != nil {
		return nil, err
	}
	return flushed.chunks, nil
}

// indexRepo feeds every file into one scope named after the repo, so rows
// gather fragments from the whole repo before assembly.
func (idx *Indexer) indexRepo(ctx context.Context, scope string, files []sourceFile, asm *chunk.Assembler, result *IndexResult) error {
	defer idx.clear(ctx, scope)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx.processFile(ctx, scope, f, result)
	}

	flushed, err := idx.flush(ctx, scope, asm)
	if err != nil {
		return err
	}
	result.addFlush(flushed)
	return nil
}

// indexPerFile gives every file its own scope and runs files concurrently.
func (idx *Indexer) indexPerFile(ctx context.Context, files []sourceFile, asm *chunk.Assembler, result *IndexResult) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.config.Chunking.Workers)

	for _, f := range files {
		g.Go(func() error {
			scope := f.relPath
			defer idx.clear(gctx, scope)

			if !idx.processFile(gctx, scope, f, result) {
				return nil
			}
			flushed, err := idx.flush(gctx, scope, asm)
			if err != nil {
				return fmt.Errorf("%s: %w", f.relPath, err)
			}
			result.addFlush(flushed)
			return nil
		})
	}

	return g.Wait()
}

// processFile parses one file and adds its top-level nodes to the index.
// It reports whether the file made it into the index.
func (idx *Indexer) processFile(ctx context.Context, scope string, f sourceFile, result *IndexResult) bool {
	idx.logger.Debug("processing file", "path", f.relPath)

	data, err := os.ReadFile(f.path)
	if err != nil {
		result.addError(&FileError{Path: f.relPath, Err: err})
		idx.deps.Metrics.LogError("read", err.Error())
		return false
	}
	source := string(data)

	nodes, err := parser.Parse(source)
	if err != nil {
		idx.logger.Warn("skipping file that does not parse", "path", f.relPath, "error", err)
		result.addError(&FileError{Path: f.relPath, Err: err})
		idx.deps.Metrics.LogParseError(f.relPath, err.Error())
		return false
	}

	symbols, err := idx.indexNodes(ctx, scope, f.relPath, source, nodes)
	if err != nil {
		idx.logger.Error("failed to index file", "path", f.relPath, "error", err)
		result.addError(&FileError{Path: f.relPath, Err: err})
		idx.deps.Metrics.LogError("index_file", err.Error())
		return false
	}

	result.addFile(symbols)
	idx.deps.Metrics.LogFileIndexed(f.relPath, symbols)
	return true
}

// indexNodes stores a file's indexable nodes and adds them to scope as one
// batch. On failure nothing of the file stays in scope or in the store.
func (idx *Indexer) indexNodes(ctx context.Context, scope, relPath, source string, nodes []parser.Node) (int, error) {
	st := idx.deps.Store
	if st != nil {
		if err := st.DeleteTextNodes(ctx, relPath); err != nil {
			return 0, err
		}
	}

	var adds []symbol.Addition
	for i, n := range nodes {
		head := symbol.Extract(n, source, i)
		if !head.Indexable() {
			continue
		}

		frag := symbol.Fragment{Path: relPath}
		text := parser.Text(n, source)
		if st != nil {
			r := n.Range()
			id, err := st.InsertTextNode(ctx, store.TextNode{
				Path:  relPath,
				Start: r.Start,
				End:   r.End,
				Kind:  n.Kind().String(),
				Text:  text,
			})
			if err != nil {
				idx.dropTextNodes(ctx, relPath)
				return 0, err
			}
			frag.NodeID = id
		} else {
			frag.Text = text
		}

		adds = append(adds, symbol.Addition{Name: head.Name, Role: head.Role, Fragment: frag})
	}

	if err := idx.deps.Index.AddAll(ctx, scope, adds); err != nil {
		idx.dropTextNodes(ctx, relPath)
		return 0, fmt.Errorf("add symbols: %w", err)
	}
	return len(adds), nil
}

// dropTextNodes removes the text nodes of a file that failed to index.
func (idx *Indexer) dropTextNodes(ctx context.Context, relPath string) {
	if idx.deps.Store == nil {
		return
	}
	if err := idx.deps.Store.DeleteTextNodes(context.WithoutCancel(ctx), relPath); err != nil {
		idx.logger.Error("failed to drop text nodes", "path", relPath, "error", err)
	}
}

type flushResult struct {
	chunks   []chunk.Chunk
	stored   int
	embedded int
	flagged  int
}

// flush assembles a scope's rows into chunks and hands them to the stores.
func (idx *Indexer) flush(ctx context.Context, scope string, asm *chunk.Assembler) (flushResult, error) {
	var res flushResult

	rows, err := idx.deps.Index.Rows(ctx, scope)
	if err != nil {
		return res, fmt.Errorf("read symbol index: %w", err)
	}

	chunks, err := asm.Assemble(ctx, rows)
	if err != nil {
		return res, fmt.Errorf("assemble chunks: %w", err)
	}
	res.chunks = chunks
	idx.deps.Metrics.LogScopeFlushed(scope, len(rows), len(chunks))
	idx.logger.Debug("flushed scope", "scope", scope, "rows", len(rows), "chunks", len(chunks))
	res.flagged = idx.flagSecrets(chunks)

	fresh := chunks
	if idx.deps.Store != nil {
		fresh, err = idx.deps.Store.InsertChunks(ctx, chunks)
		if err != nil {
			return res, fmt.Errorf("store chunks: %w", err)
		}
	}
	res.stored = len(fresh)

	if !idx.embedding() || len(fresh) == 0 {
		return res, nil
	}

	ids, err := idx.embed(ctx, fresh)
	if err != nil {
		return res, err
	}
	markEmbedded(res.chunks, ids)
	res.embedded = len(ids)

	return res, nil
}

// EmbedPending embeds stored chunks that earlier runs left without a
// vector, such as runs made before Qdrant was configured. It returns the
// number of chunks embedded.
func (idx *Indexer) EmbedPending(ctx context.Context) (int, error) {
	if !idx.embedding() || idx.deps.Store == nil {
		return 0, nil
	}

	collection := idx.config.Storage.Collection
	if err := idx.deps.Vectors.EnsureCollection(ctx, collection, idx.deps.Embedder.Dimension()); err != nil {
		return 0, fmt.Errorf("failed to ensure collection: %w", err)
	}

	total := 0
	for {
		pending, err := idx.deps.Store.PendingChunks(ctx, idx.config.Embedding.BatchSize)
		if err != nil {
			return total, fmt.Errorf("load pending chunks: %w", err)
		}
		if len(pending) == 0 {
			return total, nil
		}
		if _, err := idx.embed(ctx, pending); err != nil {
			return total, err
		}
		total += len(pending)
		idx.logger.Debug("embedded pending chunks", "count", len(pending), "total", total)
	}
}

// embed computes vectors for chunks, upserts them and marks them embedded
// in the store.
func (idx *Indexer) embed(ctx context.Context, chunks []chunk.Chunk) ([]string, error) {
	if err := embedding.EmbedChunks(ctx, idx.deps.Embedder, chunks, idx.config.Embedding.BatchSize); err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if err := idx.deps.Vectors.UpsertChunks(ctx, idx.config.Storage.Collection, chunks); err != nil {
		return nil, fmt.Errorf("upsert failed: %w", err)
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if idx.deps.Store != nil {
		if err := idx.deps.Store.MarkEmbedded(ctx, ids); err != nil {
			return nil, fmt.Errorf("mark embedded: %w", err)
		}
	}
	return ids, nil
}

func markEmbedded(chunks []chunk.Chunk, ids []string) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range chunks {
		if _, ok := set[chunks[i].ID]; ok {
			chunks[i].IsEmbedded = true
		}
	}
}

// flagSecrets warns about chunks that look like they hold credentials and
// returns how many did.
func (idx *Indexer) flagSecrets(chunks []chunk.Chunk) int {
	if idx.deps.Secrets == nil {
		return 0
	}
	flagged := 0
	for _, c := range chunks {
		findings := idx.deps.Secrets.Scan(c.Text)
		if len(findings) == 0 {
			continue
		}
		flagged++
		idx.logger.Warn("chunk may contain a secret",
			"chunk", c.ID,
			"paths", c.OriginPaths,
			"kinds", security.Kinds(findings))
	}
	return flagged
}

// clear drops a scope even when ctx has been cancelled.
func (idx *Indexer) clear(ctx context.Context, scope string) {
	if err := idx.deps.Index.Clear(context.WithoutCancel(ctx), scope); err != nil {
		idx.logger.Error("failed to clear symbol index", "scope", scope, "error", err)
		idx.deps.Metrics.LogError("clear", err.Error())
	}
}

func (idx *Indexer) embedding() bool {
	return idx.deps.Embedder != nil && idx.deps.Vectors != nil
}

func (idx *Indexer) assembler(version string) *chunk.Assembler {
	cfg := chunk.AssemblerConfig{
		MaxSize: idx.config.Chunking.MaxSize,
		Merge:   chunk.MergeStrategy(idx.config.Chunking.Merge),
		Version: version,
		Logger:  idx.logger,
	}
	if idx.deps.Store != nil {
		cfg.Resolver = idx.deps.Store
	}
	return chunk.NewAssembler(cfg)
}
