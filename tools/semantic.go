package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/xiaorui775/ChatLab/semantic"
)

// SemanticSearcher is the retrieval pipeline consumed by the semantic_search
// tool.
type SemanticSearcher interface {
	Search(ctx context.Context, req semantic.SearchRequest) (*semantic.SearchResponse, error)
}

const defaultSemanticTopK = 5

func (b *Builtins) semanticSearch(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	query, ok := argString(params, "query")
	if !ok {
		return "", fmt.Errorf("missing required parameter: query")
	}
	if b.semantic == nil {
		return errPayload("semantic_search_not_enabled", "no embedding configuration is active"), nil
	}

	tr, err := ResolveTimeFilter(params, tc)
	if err != nil {
		return "", err
	}

	topK, okK := argInt(params, "top_k")
	if !okK || topK <= 0 {
		topK = defaultSemanticTopK
	}

	resp, err := b.semantic.Search(ctx, semantic.SearchRequest{
		Query:     query,
		SessionID: tc.SessionID,
		TimeRange: tr,
		TopK:      topK,
	})
	if err != nil {
		if errors.Is(err, semantic.ErrNotEnabled) {
			return errPayload("semantic_search_not_enabled", "no embedding configuration is active"), nil
		}
		return "", fmt.Errorf("semantic search: %w", err)
	}
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No conversation fragments matched %q.", resp.Query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d fragment(s) for %q:\n", len(resp.Results), resp.Query)
	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "%d. (score %.3f, %s ~ %s, participants: %s)\n%s\n",
			i+1, r.Score,
			time.Unix(r.StartTime, 0).Format("2006-01-02 15:04"),
			time.Unix(r.EndTime, 0).Format("2006-01-02 15:04"),
			strings.Join(r.Participants, ", "),
			r.Content)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
