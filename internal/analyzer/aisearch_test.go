package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/user/siteaudit/internal/issues"
	"github.com/user/siteaudit/internal/storage"
)

func TestScoreAIReadinessPenaltyTable(t *testing.T) {
	perfect := &AIReadiness{
		HasLLMsTxt: true, LLMsTxtValid: true,
		HasAITxt: true, AITxtValid: true,
		OptimizedPages: 8, EligiblePages: 10,
		FAQSchemaCount: 1, HowToSchemaCount: 1, SpeakableCount: 1,
	}
	assert.Equal(t, 100, scoreAIReadiness(perfect))

	blocked := *perfect
	blocked.BlockedAIBots = []string{"GPTBot", "anthropic-ai"}
	assert.Equal(t, 92, scoreAIReadiness(&blocked))

	// The bot penalty is capped.
	blocked.BlockedAIBots = []string{"a", "b", "c", "d", "e", "f", "g"}
	assert.Equal(t, 80, scoreAIReadiness(&blocked))

	noGuidance := *perfect
	noGuidance.HasLLMsTxt = false
	noGuidance.HasAITxt = false
	assert.Equal(t, 80, scoreAIReadiness(&noGuidance))

	invalidGuidance := *perfect
	invalidGuidance.LLMsTxtValid = false
	invalidGuidance.AITxtValid = false
	assert.Equal(t, 89, scoreAIReadiness(&invalidGuidance))

	thinContent := *perfect
	thinContent.OptimizedPages = 1
	assert.Equal(t, 80, scoreAIReadiness(&thinContent))

	noSchemas := *perfect
	noSchemas.FAQSchemaCount = 0
	noSchemas.HowToSchemaCount = 0
	noSchemas.SpeakableCount = 0
	assert.Equal(t, 90, scoreAIReadiness(&noSchemas))

	worst := AIReadiness{
		BlockedAIBots: []string{"a", "b", "c", "d", "e", "f"},
		EligiblePages: 10,
	}
	assert.Equal(t, 30, scoreAIReadiness(&worst))
}

func TestProbeGuidance(t *testing.T) {
	valid := "# Example Site\n\nhttps://example.com/docs\nA guide for language models with enough substance."
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/llms.txt":
			w.Write([]byte(valid))
		case "/short.txt":
			w.Write([]byte("# tiny"))
		case "/soft404.txt":
			w.Write([]byte("<!DOCTYPE html><html><body>Not found</body></html>"))
		case "/nomarker.txt":
			w.Write([]byte(strings.Repeat("plain words without headings or links ", 3)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	a := New(nil, nil, zap.NewNop())

	found, ok := a.probeGuidance(context.Background(), server.URL, "/llms.txt", "AuditBot/1.0")
	assert.True(t, found)
	assert.True(t, ok)

	found, ok = a.probeGuidance(context.Background(), server.URL, "/short.txt", "AuditBot/1.0")
	assert.True(t, found)
	assert.False(t, ok)

	// An HTML shell served with 200 does not count as present.
	found, _ = a.probeGuidance(context.Background(), server.URL, "/soft404.txt", "AuditBot/1.0")
	assert.False(t, found)

	_, ok = a.probeGuidance(context.Background(), server.URL, "/nomarker.txt", "AuditBot/1.0")
	assert.False(t, ok)

	found, _ = a.probeGuidance(context.Background(), server.URL, "/missing.txt", "AuditBot/1.0")
	assert.False(t, found)
}

func TestAISearchPersistsBreakdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	store := newFakeStore([]storage.PageSummary{
		{ID: 1, StatusCode: 200, IsIndexable: true, H1Count: 1, H2Count: 3, WordCount: 600, TitleLength: 40, SchemaTypes: []string{"FAQPage"}},
		{ID: 2, StatusCode: 200, IsIndexable: true, H1Count: 2, H2Count: 0, WordCount: 80, TitleLength: 10},
		{ID: 3, StatusCode: 200, IsIndexable: false},
	})
	detector := issues.NewDetector(postCrawlDefs, zap.NewNop())
	a := New(store, detector, zap.NewNop())

	a.AISearch(context.Background(), 7, server.URL, nil, "AuditBot/1.0")

	// 100 - 15 (llms) - 5 (ai.txt) - 5 (ratio 0.5) - 3 (howto) - 2 (speakable).
	assert.Equal(t, 70, store.aiScore)
}
