package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/sashabaranov/go-openai"
	"github.com/urfave/cli/v3"
	"github.com/windward-labs/tripsmith/pkg/adapter"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/tool"
)

// relevanceThreshold drops weak hits before extraction
const relevanceThreshold = 0.2

// maxExtractURLs bounds how many top hits are deep-extracted
const maxExtractURLs = 2

// logisticsDomains is the allow-list for flight/hotel/transport searches
var logisticsDomains = []string{
	// Flights / OTAs
	"expedia.com", "kayak.com", "travel.google.com",
	// Hotels / stays
	"booking.com", "hotels.com",
}

type searchTool struct {
	client adapter.SearchClient
}

// New creates the web search tool exposing search_logistics and
// search_general over one shared search procedure
func New(client adapter.SearchClient) tool.Tool {
	return &searchTool{client: client}
}

func (x *searchTool) Flags() []cli.Flag {
	return nil
}

func (x *searchTool) Prompt(ctx context.Context) string {
	return "Use search_logistics ONLY for flights, hotels, or transport. Include start_date/end_date (YYYY-MM-DD) when known.\n" +
		"Use search_general for activities, attractions, neighborhoods, dining, events, or local tips. Include dates when relevant.\n" +
		"Prefer recent sources and pass explicit dates to tools whenever the user provides a time window."
}

func (x *searchTool) Specs() []openai.Tool {
	return []openai.Tool{
		tool.NewFunction(
			"search_logistics",
			"Time-aware logistics search ONLY: flights, hotels, and intercity/local transport. "+
				"Use for availability, schedules, prices, carriers/properties, or routes. "+
				"Always include dates when the user mentions a travel window. "+
				"NEVER use this for activities, attractions, neighborhoods, or dining. "+
				"Results are restricted to reputable flight/hotel/transport sources; top URLs are deeply extracted.",
			&jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {
						Type:        "string",
						Description: "Concise query with route or destination and constraints, e.g. 'JFK to LHR, nonstop preferred'",
					},
					"start_date": {
						Type:        "string",
						Description: "Optional start of the travel window, YYYY-MM-DD",
					},
					"end_date": {
						Type:        "string",
						Description: "Optional end of the travel window, YYYY-MM-DD",
					},
				},
				Required: []string{"query"},
			},
		),
		tool.NewFunction(
			"search_general",
			"Time-aware destination research: activities, attractions, neighborhoods, dining, events, local tips. "+
				"Use for up-to-date things to do, cultural context, and planning inspiration. "+
				"NEVER use this for flights, hotels, or transport logistics. "+
				"Example: 'things to do in Lisbon in June 2026'.",
			&jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {
						Type:        "string",
						Description: "Destination/time-focused query, e.g. 'things to do in Lisbon in June'",
					},
				},
				Required: []string{"query"},
			},
		),
	}
}

type searchInput struct {
	Query     string `json:"query"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (x *searchTool) Execute(ctx context.Context, name string, args json.RawMessage) (*model.ToolResult, error) {
	var input searchInput
	if err := json.Unmarshal(args, &input); err != nil {
		return model.ErrorResult(fmt.Sprintf("invalid search arguments: %v", err)), nil
	}

	switch name {
	case "search_logistics":
		return x.perform(ctx, input, "logistics", logisticsDomains), nil
	default:
		input.StartDate = ""
		input.EndDate = ""
		return x.perform(ctx, input, "general", nil), nil
	}
}

// perform runs the shared search procedure: search, keep hits above the
// relevance threshold, deep-extract the top URLs, and report progress as
// structured events. It never fails past the tool boundary; any error becomes
// an error-bearing result with empty lists.
func (x *searchTool) perform(ctx context.Context, input searchInput, searchType string, includeDomains []string) *model.ToolResult {
	title := strings.ToUpper(searchType) + " SEARCH"
	tool.Emit(ctx, model.NewUIEvent(model.EventToolLog, "🔧", title, input.Query))

	query := input.Query
	if input.StartDate != "" {
		query += " from " + input.StartDate
	}
	if input.EndDate != "" && input.EndDate != input.StartDate {
		query += " to " + input.EndDate
	}

	allResults, err := x.client.Search(ctx, query, includeDomains)
	if err != nil {
		tool.Emit(ctx, model.NewUIEvent(model.EventToolLog, "❌", title+" error", err.Error()))
		return &model.ToolResult{
			Error:       fmt.Sprintf("❌ %s ERROR: %v", strings.ToUpper(searchType), err),
			Results:     []model.SearchResult{},
			Extractions: []model.Extraction{},
		}
	}

	filtered := make([]model.SearchResult, 0, len(allResults))
	for _, r := range allResults {
		if r.Score > relevanceThreshold {
			filtered = append(filtered, r)
		}
	}

	foundMsg := fmt.Sprintf("Found %d/%d quality results", len(filtered), len(allResults))
	tool.Emit(ctx, model.NewUIEvent(model.EventToolLog, "📊", title, foundMsg).
		WithExtra("results", len(filtered)).
		WithExtra("total", len(allResults)))

	// Top URLs by original rank
	var topURLs []string
	for _, r := range filtered {
		if r.URL == "" {
			continue
		}
		topURLs = append(topURLs, r.URL)
		if len(topURLs) == maxExtractURLs {
			break
		}
	}

	var extractions []model.Extraction
	if len(topURLs) > 0 {
		extracted, err := x.client.Extract(ctx, topURLs)
		if err != nil {
			// Extraction failure degrades to search results only
			tool.Log(ctx, fmt.Sprintf("⚠️ URL extraction failed: %v", err))
		} else {
			extractions = extracted
			extractMsg := fmt.Sprintf("Extracted %d content blocks", len(extractions))
			tool.Emit(ctx, model.NewUIEvent(model.EventToolLog, "📄", title, extractMsg).
				WithExtra("extractions", len(extractions)))
		}
	}

	completeMsg := fmt.Sprintf("%d results + %d extractions", len(filtered), len(extractions))
	tool.Emit(ctx, model.NewUIEvent(model.EventToolResult, "✅", title+" finished", completeMsg).
		WithExtra("results", len(filtered)).
		WithExtra("extractions", len(extractions)))

	return &model.ToolResult{
		Status:      "ok",
		Message:     completeMsg,
		Results:     filtered,
		Extractions: extractions,
	}
}
