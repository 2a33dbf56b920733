package tool

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
	"github.com/joseph-ayodele/content-extractor/internal/pipeline"
)

type procFunc func(ctx context.Context, job pipeline.Job) (pipeline.Outcome, error)

func (f procFunc) Process(ctx context.Context, job pipeline.Job) (pipeline.Outcome, error) {
	return f(ctx, job)
}

type healthFunc func(ctx context.Context) map[constants.Strategy]bool

func (f healthFunc) HealthCheckAll(ctx context.Context) map[constants.Strategy]bool { return f(ctx) }

func echoProc(got *pipeline.Job) procFunc {
	return func(_ context.Context, job pipeline.Job) (pipeline.Outcome, error) {
		*got = job
		n := 12
		res := extract.NewResult(string(job.Data)).Set("filename", job.Filename)
		res.WasSummarized = true
		res.OriginalTokenCount = &n
		return pipeline.Outcome{JobID: "job-1", Strategy: constants.TextNative, Result: res}, nil
	}
}

func TestExtractContent(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# from disk"), 0o644))

	tests := []struct {
		name        string
		input       InputExtractContent
		errContains string
		wantText    string
		wantName    string
	}{
		{
			name:     "base64 content",
			input:    InputExtractContent{ContentBase64: base64.StdEncoding.EncodeToString([]byte("hello")), Filename: "a.txt"},
			wantText: "hello",
			wantName: "a.txt",
		},
		{
			name:     "local path",
			input:    InputExtractContent{Path: path},
			wantText: "# from disk",
			wantName: "notes.md",
		},
		{name: "nothing given", input: InputExtractContent{}, errContains: "required"},
		{name: "both given", input: InputExtractContent{ContentBase64: "aGk=", Path: path}, errContains: "only one"},
		{name: "bad base64", input: InputExtractContent{ContentBase64: "%%%"}, errContains: "base64"},
		{name: "missing path", input: InputExtractContent{Path: filepath.Join(dir, "nope.txt")}, errContains: "cannot read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got pipeline.Job
			tools := &Tools{Proc: echoProc(&got)}
			_, out, err := tools.ExtractContent(ctx, req, tt.input)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Equal(t, common.KindInvalidInput, common.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, out.ExtractedText)
			assert.Equal(t, tt.wantName, got.Filename)
			assert.Equal(t, "job-1", out.JobID)
			assert.True(t, out.WasSummarized)
			assert.Equal(t, 12, out.OriginalTokenCount)
		})
	}
}

func TestExtractContentPathLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))
	var got pipeline.Job
	tools := &Tools{Proc: echoProc(&got), MaxBytes: 4}
	_, _, err := tools.ExtractContent(context.Background(), nil, InputExtractContent{Path: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestExtractContentFailureCarriesKind(t *testing.T) {
	tools := &Tools{Proc: procFunc(func(context.Context, pipeline.Job) (pipeline.Outcome, error) {
		return pipeline.Outcome{}, common.DependencyMissing("pandoc not found", nil)
	})}
	_, _, err := tools.ExtractContent(context.Background(), nil, InputExtractContent{ContentBase64: "aGk="})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEPENDENCY_MISSING")
}

func TestExtractionHealth(t *testing.T) {
	tools := &Tools{Health: healthFunc(func(context.Context) map[constants.Strategy]bool {
		return map[constants.Strategy]bool{constants.TextNative: true, constants.CodeAst: true}
	})}
	_, out, err := tools.ExtractionHealth(context.Background(), nil, InputExtractionHealth{})
	require.NoError(t, err)
	assert.Len(t, out.Strategies, 9)
	assert.Equal(t, []string{"text_native", "code_ast"}, out.Available)
	assert.False(t, out.Strategies["vision"])
}

func TestServerListsTools(t *testing.T) {
	ctx := context.Background()
	server := NewServer(&Tools{}, "test")
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	res, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tl := range res.Tools {
		names = append(names, tl.Name)
	}
	assert.ElementsMatch(t, []string{"extract_content", "extraction_health"}, names)
}
