package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabfab/docqa/archive"
	"github.com/fabfab/docqa/config"
	"github.com/fabfab/docqa/docstore"
	"github.com/fabfab/docqa/embeddings"
	"github.com/fabfab/docqa/knowledge"
	"github.com/fabfab/docqa/llm"
	"github.com/fabfab/docqa/logging"
)

var (
	ErrMissingInput = errors.New("missing input")
	ErrParse        = errors.New("parse failure")
	ErrProvider     = errors.New("provider failure")
)

// recordNamespace seeds the deterministic chunk record ids.
var recordNamespace = uuid.MustParse("8f1d4c1e-5b7a-4c55-9a3e-2f0b6d7c9e41")

const defaultEmbedBatchSize = 512

type Request struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Result struct {
	DocumentID string
	Summary    string
	PageCount  int
	ChunkCount int
}

// Chunk is a piece of page text with its metadata.
type Chunk struct {
	Content  string
	Metadata map[string]any
}

type Service struct {
	embedder embeddings.Embedder
	llm      llm.Client
	store    docstore.Store
	catalog  knowledge.Catalog
	archive  archive.Store
	parsers  map[DocumentFormat]DocumentParser
	splitter *TextSplitter
	logger   *zap.Logger

	summaryPolicy   string
	summaryMaxChars int
	writeAttempts   int
	batchSize       int
	newID           func() string
	now             func() time.Time
}

type Option func(*Service)

func WithCatalog(c knowledge.Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

func WithArchive(a archive.Store) Option {
	return func(s *Service) { s.archive = a }
}

func WithParser(format DocumentFormat, p DocumentParser) Option {
	return func(s *Service) { s.parsers[format] = p }
}

func WithChunking(size, overlap int) Option {
	return func(s *Service) {
		s.splitter = NewTextSplitter(WithChunkSize(size), WithOverlap(overlap))
	}
}

// WithSummaryPolicy selects first-chunk or full-document summaries. maxChars
// bounds the full-document input.
func WithSummaryPolicy(policy string, maxChars int) Option {
	return func(s *Service) {
		s.summaryPolicy = policy
		s.summaryMaxChars = maxChars
	}
}

func WithStoreWriteAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.writeAttempts = n
		}
	}
}

func WithEmbedBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(s *Service) { s.now = fn }
}

func NewService(embedder embeddings.Embedder, client llm.Client, store docstore.Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		embedder:        embedder,
		llm:             client,
		store:           store,
		archive:         archive.Nop{},
		parsers:         map[DocumentFormat]DocumentParser{FormatPDF: PDFParser{}},
		splitter:        NewTextSplitter(),
		logger:          logging.OrNop(logger),
		summaryPolicy:   config.SummaryFirstChunk,
		summaryMaxChars: 12000,
		writeAttempts:   1,
		batchSize:       defaultEmbedBatchSize,
		newID:           uuid.NewString,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest parses, chunks, summarises, embeds and stores one document. Parse and
// summary failures happen before any store mutation. Catalog and archive
// failures are logged only.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	if len(req.Data) == 0 {
		return Result{}, ErrMissingInput
	}
	if s.embedder == nil || s.llm == nil || s.store == nil {
		return Result{}, fmt.Errorf("%w: ingestion service is not fully configured", ErrProvider)
	}

	docID := s.newID()
	log := s.logger.With(zap.String("document_id", docID), zap.String("filename", req.Filename))

	pages, err := s.parse(ctx, req)
	if err != nil {
		log.Warn("parse failed", zap.Error(err))
		return Result{}, err
	}

	chunks := Tag(s.splitPages(pages, req.Filename), docID)
	if len(chunks) == 0 {
		log.Warn("no extractable text", zap.Int("pages", len(pages)))
		return Result{}, fmt.Errorf("%w: document contains no extractable text", ErrParse)
	}

	summary, err := summarize(ctx, s.llm, summarySource(s.summaryPolicy, s.summaryMaxChars, pages, chunks))
	if err != nil {
		log.Error("summary failed", zap.Error(err))
		return Result{}, fmt.Errorf("%w: generate summary: %w", ErrProvider, err)
	}

	records, err := s.embed(ctx, docID, chunks)
	if err != nil {
		log.Error("embedding failed", zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	if err := s.write(ctx, records, log); err != nil {
		return Result{}, fmt.Errorf("%w: store chunks: %w", ErrProvider, err)
	}

	result := Result{
		DocumentID: docID,
		Summary:    summary,
		PageCount:  len(pages),
		ChunkCount: len(chunks),
	}

	s.record(ctx, req, result, log)

	log.Info("ingested document", zap.Int("pages", result.PageCount), zap.Int("chunks", result.ChunkCount))
	return result, nil
}

func (s *Service) parse(ctx context.Context, req Request) ([]Page, error) {
	format := DetectFormat(req.ContentType, req.Data)
	parser, ok := s.parsers[format]
	if !ok || format == FormatUnknown {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrParse, req.ContentType)
	}

	pages, err := parser.Parse(ctx, req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return pages, nil
}

func (s *Service) splitPages(pages []Page, source string) []Chunk {
	chunks := make([]Chunk, 0)
	for _, page := range pages {
		for _, text := range s.splitter.Split(page.Text) {
			chunks = append(chunks, Chunk{
				Content: text,
				Metadata: map[string]any{
					docstore.MetadataPageNumber: page.Number,
					docstore.MetadataChunkIndex: len(chunks),
					docstore.MetadataSource:     source,
				},
			})
		}
	}
	return chunks
}

// Tag returns copies of chunks whose metadata carries documentID. Existing
// keys are preserved.
func Tag(chunks []Chunk, documentID string) []Chunk {
	tagged := make([]Chunk, len(chunks))
	for i, c := range chunks {
		meta := make(map[string]any, len(c.Metadata)+1)
		for k, v := range c.Metadata {
			meta[k] = v
		}
		meta[docstore.MetadataDocumentID] = documentID
		tagged[i] = Chunk{Content: c.Content, Metadata: meta}
	}
	return tagged
}

func (s *Service) embed(ctx context.Context, docID string, chunks []Chunk) ([]docstore.Record, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := embeddings.EmbedBatched(ctx, s.embedder, texts, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}

	records := make([]docstore.Record, len(chunks))
	for i, c := range chunks {
		records[i] = docstore.Record{
			ID:        RecordID(docID, i),
			Content:   c.Content,
			Metadata:  c.Metadata,
			Embedding: vectors[i],
		}
	}
	return records, nil
}

// write upserts records, retrying up to writeAttempts times. Record ids are
// deterministic so a retried write never duplicates chunks.
func (s *Service) write(ctx context.Context, records []docstore.Record, log *zap.Logger) error {
	var err error
	for attempt := 1; attempt <= s.writeAttempts; attempt++ {
		if err = s.store.Upsert(ctx, records); err == nil {
			return nil
		}
		log.Warn("store write failed", zap.Int("attempt", attempt), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	log.Error("store write abandoned; chunks may be partially written", zap.Int("chunks", len(records)), zap.Error(err))
	return err
}

func (s *Service) record(ctx context.Context, req Request, result Result, log *zap.Logger) {
	if s.catalog != nil {
		doc := knowledge.Document{
			ID:         result.DocumentID,
			Filename:   req.Filename,
			UploadedAt: s.now().UTC(),
			Summary:    result.Summary,
			PageCount:  result.PageCount,
			ByteSize:   int64(len(req.Data)),
			ChunkCount: result.ChunkCount,
		}
		if err := s.catalog.Save(ctx, doc); err != nil {
			log.Warn("catalog save failed", zap.Error(err))
		}
	}

	if s.archive != nil {
		if err := s.archive.Put(ctx, result.DocumentID, req.Filename, req.ContentType, req.Data); err != nil {
			log.Warn("archive upload failed", zap.Error(err))
		}
	}
}

// RecordID derives the store id of the index-th chunk of a document.
func RecordID(documentID string, index int) string {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s#%d", documentID, index))).String()
}
