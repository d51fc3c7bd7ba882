package session

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contextiq/internal/llmservice"
	"contextiq/internal/models"
	"contextiq/internal/parser"
	"contextiq/internal/provenance"
	"contextiq/internal/vectorstore"
)

const parisDoc = "Paris is the capital of France.\n\nFrance is in Europe."

var wordRe = regexp.MustCompile(`\w+`)

type vocabEmbedder struct {
	vocab map[string]int
	calls int
	err   error
}

func newVocabEmbedder() *vocabEmbedder {
	return &vocabEmbedder{vocab: map[string]int{}}
}

func (e *vocabEmbedder) embed(text string) []float32 {
	v := make([]float32, 128)
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		i, ok := e.vocab[w]
		if !ok {
			i = len(e.vocab) % len(v)
			e.vocab[w] = i
		}
		v[i]++
	}
	return v
}

func (e *vocabEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *vocabEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.embed(text), nil
}

// echoGenerator answers with the first context item, or the not-found
// sentinel when the prompt carries none.
type echoGenerator struct {
	calls int
	err   error
}

var contextRe = regexp.MustCompile(`\[Context 1\]:\n(.*)`)

func (g *echoGenerator) Generate(_ context.Context, prompt string, _ int) (llmservice.Completion, error) {
	g.calls++
	if g.err != nil {
		return llmservice.Completion{}, g.err
	}
	if m := contextRe.FindStringSubmatch(prompt); m != nil {
		return llmservice.Completion{Texts: []string{m[1]}}, nil
	}
	return llmservice.Completion{Texts: []string{models.NotFoundAnswer}}, nil
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, []provenance.Entry) error {
	return errors.New("database unavailable")
}
func (failingRecorder) Close() error { return nil }

type fixture struct {
	session  *Session
	embedder *vocabEmbedder
	gen      *echoGenerator
	recorder *provenance.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		embedder: newVocabEmbedder(),
		gen:      &echoGenerator{},
		recorder: provenance.NewMemory(),
	}
	s, err := New(Deps{
		Embedder:  f.embedder,
		Generator: f.gen,
		NewIndex:  func() (vectorstore.Index, error) { return vectorstore.NewFlat(), nil },
		Recorder:  f.recorder,
	}, Options{ChunkSize: 40, ChunkOverlap: 10, TopK: 3, MaxTopK: 5})
	require.NoError(t, err)
	f.session = s
	return f
}

func textDoc(name, text string) parser.Document {
	return parser.Document{Name: name, Data: []byte(text)}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{}, Options{})
	assert.Error(t, err)
}

func TestParisScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.Equal(t, StateEmpty, f.session.State())

	n, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, StateReady, f.session.State())
	assert.Equal(t, "france.txt", f.session.Document())

	chunks := f.session.Chunks()
	require.Len(t, chunks, 2)
	assert.Equal(t, "Paris is the capital of France.", chunks[0].Text)

	got, err := f.session.Retrieve(ctx, "What is the capital of France?", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{chunks[0].Text}, got)

	turn, err := f.session.Ask(ctx, "What is the capital of France?", 1)
	require.NoError(t, err)
	assert.Equal(t, chunks[0].Text, turn.Answer)
	assert.Equal(t, 1, turn.NumSources)
	assert.Equal(t, []string{chunks[0].Text}, turn.Sources)
	assert.False(t, turn.AskedAt.IsZero())
	assert.Len(t, f.session.History(), 1)

	entries := f.recorder.List()
	require.Len(t, entries, 2)
	assert.Equal(t, f.session.ID(), entries[0].SessionID)
	assert.Equal(t, "chunk_1", entries[1].ChunkID)
}

func TestAskClampsK(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)

	assert.Equal(t, 3, f.session.ClampK(0))
	assert.Equal(t, 5, f.session.ClampK(50))
	assert.Equal(t, 2, f.session.ClampK(2))

	turn, err := f.session.Ask(ctx, "France?", 50)
	require.NoError(t, err)
	assert.Equal(t, 2, turn.NumSources)
}

func TestAskWithoutDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Ask(context.Background(), "anything?", 3)
	assert.ErrorIs(t, err, ErrNoDocument)

	got, err := f.session.Retrieve(context.Background(), "anything?", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBlankQuestionRejectedBeforeCollaborators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	embedCalls := f.embedder.calls

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := f.session.Ask(ctx, q, 3)
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	}
	assert.Equal(t, embedCalls, f.embedder.calls)
	assert.Zero(t, f.gen.calls)
	assert.Empty(t, f.session.History())
}

func TestFailedQuestionKeepsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	_, err = f.session.Ask(ctx, "What is the capital of France?", 1)
	require.NoError(t, err)

	f.gen.err = errors.New("model crashed")
	_, err = f.session.Ask(ctx, "Where is France?", 1)
	assert.ErrorIs(t, err, llmservice.ErrGenerationFailed)

	assert.Equal(t, StateReady, f.session.State())
	assert.Len(t, f.session.History(), 1)
	assert.Len(t, f.session.Chunks(), 2)

	f.gen.err = nil
	_, err = f.session.Ask(ctx, "Where is France?", 1)
	require.NoError(t, err)
	assert.Len(t, f.session.History(), 2)
}

func TestResetClearsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	_, err = f.session.Ask(ctx, "What is the capital of France?", 1)
	require.NoError(t, err)

	f.session.Reset()

	assert.Equal(t, StateEmpty, f.session.State())
	assert.Empty(t, f.session.Chunks())
	assert.Empty(t, f.session.History())
	assert.Empty(t, f.session.Document())
	got, err := f.session.Retrieve(ctx, "capital", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
	_, err = f.session.Ask(ctx, "capital?", 3)
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	assert.Equal(t, StateReady, f.session.State())
}

func TestClearHistoryKeepsDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	_, err = f.session.Ask(ctx, "capital?", 1)
	require.NoError(t, err)

	f.session.ClearHistory()
	assert.Empty(t, f.session.History())
	assert.Len(t, f.session.Chunks(), 2)
	assert.Equal(t, StateReady, f.session.State())
}

func TestReprocessSameDocumentIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	_, err = f.session.Ask(ctx, "capital?", 1)
	require.NoError(t, err)
	calls := f.embedder.calls

	n, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, calls, f.embedder.calls)
	assert.Len(t, f.session.History(), 1)
	assert.Len(t, f.recorder.List(), 2)
}

func TestNewDocumentReplacesOldAndClearsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	_, err = f.session.Ask(ctx, "capital?", 1)
	require.NoError(t, err)

	n, err := f.session.Process(ctx, textDoc("rome.md", "# Italy\n\nRome is the capital of Italy."))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "rome.md", f.session.Document())
	assert.Empty(t, f.session.History())
	assert.Equal(t, "Italy\n\nRome is the capital of Italy.", f.session.Chunks()[0].Text)
}

func TestParseFailureWithoutDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.session.Process(ctx, parser.Document{Name: "broken.pdf", Data: []byte("not a pdf")})
	assert.ErrorIs(t, err, parser.ErrParseFailure)
	assert.Equal(t, StateError, f.session.State())
	assert.ErrorIs(t, f.session.LastError(), parser.ErrParseFailure)

	_, err = f.session.Process(ctx, parser.Document{Name: "image.png", Data: []byte("png")})
	assert.ErrorIs(t, err, parser.ErrUnsupportedFormat)
	assert.Equal(t, StateError, f.session.State())

	n, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, StateReady, f.session.State())
	assert.NoError(t, f.session.LastError())
}

func TestFailureKeepsPreviousDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)

	_, err = f.session.Process(ctx, textDoc("empty.txt", "   \n"))
	assert.ErrorIs(t, err, parser.ErrNoText)
	assert.Equal(t, StateReady, f.session.State())
	assert.Equal(t, "france.txt", f.session.Document())
	assert.Error(t, f.session.LastError())

	f.embedder.err = errors.New("embedding server down")
	_, err = f.session.Process(ctx, textDoc("other.txt", "Other text entirely."))
	assert.ErrorContains(t, err, "embedding server down")
	assert.Len(t, f.session.Chunks(), 2)

	f.embedder.err = nil
	_, err = f.session.Ask(ctx, "What is the capital of France?", 1)
	require.NoError(t, err)
}

func TestProvenanceFailureDoesNotFailProcessing(t *testing.T) {
	s, err := New(Deps{
		Embedder:  newVocabEmbedder(),
		Generator: &echoGenerator{},
		NewIndex:  func() (vectorstore.Index, error) { return vectorstore.NewFlat(), nil },
		Recorder:  failingRecorder{},
	}, Options{ChunkSize: 40, ChunkOverlap: 10})
	require.NoError(t, err)

	n, err := s.Process(context.Background(), textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, StateReady, s.State())
}

func TestSaveAndLoadIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "faiss_index.bin")

	assert.ErrorIs(t, f.session.SaveIndex(path), ErrNoDocument)

	_, err := f.session.Process(ctx, textDoc("france.txt", parisDoc))
	require.NoError(t, err)
	require.NoError(t, f.session.SaveIndex(path))

	chunks, err := ReadChunks(ChunksPath(path))
	require.NoError(t, err)
	assert.Equal(t, models.ChunkTexts(f.session.Chunks()), chunks)

	restored := newFixture(t)
	restored.embedder = f.embedder
	restored.session.deps.Embedder = f.embedder
	require.NoError(t, restored.session.LoadIndex(path, chunks))
	assert.Equal(t, StateReady, restored.session.State())

	got, err := restored.session.Retrieve(ctx, "What is the capital of France?", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{chunks[0]}, got)

	err = restored.session.LoadIndex(path, chunks[:1])
	assert.ErrorIs(t, err, ErrChunkMismatch)

	err = restored.session.LoadIndex(filepath.Join(t.TempDir(), "missing.bin"), chunks)
	assert.ErrorIs(t, err, vectorstore.ErrCorruptIndex)
}
