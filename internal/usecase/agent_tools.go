package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
)

// Agent tool names
const (
	ToolSearchNutritionDatabase = "search_nutrition_database"
	ToolCompareSimilarProducts  = "compare_similar_products"
	ToolGetHealthGuidelines     = "get_health_guidelines"
)

// Result limits per tool
const (
	nutritionSearchMaxResults  = 5
	similarProductsMaxResults  = 3
	healthGuidelinesMaxResults = 2
)

type registeredTool struct {
	description string
	parameters  []string
	handler     domain.ToolHandler
}

// ToolRegistry maps tool names to handlers the reasoning agent may call
type ToolRegistry struct {
	tools map[string]registeredTool
}

// NewToolRegistry creates an empty registry
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]registeredTool)}
}

// Register adds a tool. Registering an existing name replaces it.
func (r *ToolRegistry) Register(name, description string, parameters []string, handler domain.ToolHandler) {
	r.tools[name] = registeredTool{
		description: description,
		parameters:  parameters,
		handler:     handler,
	}
}

// Names returns the registered tool names in sorted order
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe renders the tool list for the model prompt
func (r *ToolRegistry) Describe() string {
	var b strings.Builder
	for _, name := range r.Names() {
		tool := r.tools[name]
		fmt.Fprintf(&b, "- %s(%s): %s\n", name, strings.Join(tool.parameters, ", "), tool.description)
	}
	return b.String()
}

// Call dispatches a tool call envelope and returns the text content of the result
func (r *ToolRegistry) Call(ctx context.Context, name string, arguments map[string]any) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownTool, name)
	}

	if arguments == nil {
		arguments = map[string]any{}
	}
	req := &protocol.CallToolRequest{
		Name:      name,
		Arguments: arguments,
	}

	result, err := tool.handler(ctx, req)
	if err != nil {
		return "", err
	}
	return resultText(result), nil
}

// resultText joins the text parts of a tool result
func resultText(result *protocol.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, content := range result.Content {
		switch c := content.(type) {
		case protocol.TextContent:
			parts = append(parts, c.Text)
		case *protocol.TextContent:
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// extractParams decodes the request arguments into target
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	return nil
}

func jsonToolResult(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}

// citedSource is a search hit as shown to the model, with its ledger id
type citedSource struct {
	CitationID int    `json:"citation_id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet"`
	SourceType string `json:"source_type"`
}

type searchNutritionParams struct {
	ProductName string `json:"product_name"`
	Barcode     string `json:"barcode,omitempty"`
}

type compareProductsParams struct {
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
}

type guidelinesParams struct {
	Nutrient string `json:"nutrient"`
	UserGoal string `json:"user_goal"`
}

// nutritionTools backs the agent tools with web search and records every hit in the scan ledger
type nutritionTools struct {
	searcher domain.WebSearcher
	ledger   *CitationLedger
	logger   zerolog.Logger
}

// NewNutritionToolRegistry builds the research tools for one scan
func NewNutritionToolRegistry(searcher domain.WebSearcher, ledger *CitationLedger, logger zerolog.Logger) *ToolRegistry {
	t := &nutritionTools{searcher: searcher, ledger: ledger, logger: logger}

	registry := NewToolRegistry()
	registry.Register(ToolSearchNutritionDatabase,
		"search the web for nutrition facts about the product",
		[]string{"product_name", "barcode?"}, t.searchNutritionDatabase)
	registry.Register(ToolCompareSimilarProducts,
		"find similar products in a food category for comparison",
		[]string{"product_name", "category"}, t.compareSimilarProducts)
	registry.Register(ToolGetHealthGuidelines,
		"look up WHO, FDA or USDA guidelines for a nutrient and goal",
		[]string{"nutrient", "user_goal"}, t.getHealthGuidelines)
	return registry
}

func (t *nutritionTools) searchNutritionDatabase(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params searchNutritionParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.ProductName == "" {
		return nil, fmt.Errorf("product_name is required")
	}

	query := params.ProductName + " nutrition facts"
	if params.Barcode != "" {
		query = params.ProductName + " " + params.Barcode + " nutrition facts"
	}
	sources := t.search(ctx, query, nutritionSearchMaxResults)

	return jsonToolResult(map[string]any{
		"found":         len(sources) > 0,
		"product_name":  params.ProductName,
		"sources":       sources,
		"citation_hint": "cite sources with [citation_id]",
	})
}

func (t *nutritionTools) compareSimilarProducts(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params compareProductsParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.ProductName == "" {
		return nil, fmt.Errorf("product_name is required")
	}

	query := strings.TrimSpace(fmt.Sprintf("%s %s alternatives comparison nutrition", params.Category, params.ProductName))
	sources := t.search(ctx, query, similarProductsMaxResults)

	return jsonToolResult(map[string]any{
		"found":    len(sources) > 0,
		"category": params.Category,
		"products": sources,
	})
}

func (t *nutritionTools) getHealthGuidelines(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params guidelinesParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.Nutrient == "" {
		return nil, fmt.Errorf("nutrient is required")
	}

	query := fmt.Sprintf("%s daily limit %s WHO FDA USDA guidelines", params.Nutrient, params.UserGoal)
	sources := t.search(ctx, query, healthGuidelinesMaxResults)

	return jsonToolResult(map[string]any{
		"found":      len(sources) > 0,
		"nutrient":   params.Nutrient,
		"user_goal":  params.UserGoal,
		"guidelines": sources,
	})
}

// search runs a web query and registers each hit in the ledger. Search failures yield no sources.
func (t *nutritionTools) search(ctx context.Context, query string, maxResults int) []citedSource {
	if t.searcher == nil {
		return []citedSource{}
	}

	results, err := t.searcher.Search(ctx, query, maxResults)
	if err != nil {
		t.logger.Warn().Err(err).Str("query", query).Msg("tool search failed")
		return []citedSource{}
	}

	sources := make([]citedSource, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		sourceType := SourceTypeForURL(r.URL)
		snippet := truncateRunes(r.Content, maxSnippetLength)
		id := t.ledger.Add(r.URL, r.Title, snippet, sourceType)
		sources = append(sources, citedSource{
			CitationID: id,
			Title:      r.Title,
			URL:        r.URL,
			Snippet:    snippet,
			SourceType: sourceType,
		})
		if len(sources) == maxResults {
			break
		}
	}
	return sources
}
