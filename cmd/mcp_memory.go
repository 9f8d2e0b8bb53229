package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engramkit/engram/pkg/memory"
)

func (m *MCPServer) handleAddMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	key, _ := args["key"].(string)
	if key == "" {
		return mcp.NewToolResultError("key is required"), nil
	}

	value, _ := args["value"].(string)
	typ, _ := args["type"].(string)
	uid, _ := args["user_id"].(string)
	priority, _ := args["priority"].(string)
	index, _ := args["index"].(bool)

	input := memory.AddInput{
		UserID:   uid,
		Type:     memory.Type(typ),
		Key:      key,
		Priority: memory.Priority(priority),
	}
	if value != "" {
		if !json.Valid([]byte(value)) {
			return mcp.NewToolResultError("value must be valid JSON"), nil
		}
		input.Value = json.RawMessage(value)
	}

	var (
		rec *memory.Record
		err error
	)
	if index {
		rec, err = m.store.AddWithVector(ctx, input)
	} else {
		rec, err = m.store.Add(input)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add error: %v", err)), nil
	}

	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (m *MCPServer) handleSearchMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	limit := 5
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	hits, err := m.store.SemanticSearch(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
	}
	if hits == nil {
		hits = []memory.ScoredRecord{}
	}

	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (m *MCPServer) handleListMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	uid, _ := args["user_id"].(string)
	typ, _ := args["type"].(string)
	active, _ := args["active"].(bool)

	records := m.store.ForUser(uid, memory.Filter{
		Type:       memory.Type(typ),
		ActiveOnly: active,
	})
	if records == nil {
		records = []memory.Record{}
	}

	out, _ := json.MarshalIndent(records, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (m *MCPServer) handleLearnMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	rawMessages, ok := args["messages"].([]interface{})
	if !ok || len(rawMessages) == 0 {
		return mcp.NewToolResultError("messages is required"), nil
	}

	var messages []memory.Message
	for _, raw := range rawMessages {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		role, _ := entry["role"].(string)
		content, _ := entry["content"].(string)
		messages = append(messages, memory.Message{Role: role, Content: content})
	}

	uid, _ := args["user_id"].(string)
	index, _ := args["index"].(bool)

	var (
		learned []memory.Record
		err     error
	)
	if index {
		learned, err = m.store.AutoLearn(ctx, messages, uid)
	} else {
		learned, err = m.store.Learn(messages, uid)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("learn error: %v", err)), nil
	}
	if learned == nil {
		learned = []memory.Record{}
	}

	out, _ := json.MarshalIndent(learned, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (m *MCPServer) handleSmartForgetMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	uid, _ := args["user_id"].(string)
	typ, _ := args["type"].(string)

	plan, err := m.store.SmartForget(ctx, uid, memory.Type(typ))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("smart-forget error: %v", err)), nil
	}

	out, _ := json.MarshalIndent(plan, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (m *MCPServer) handleConsolidateMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	key, _ := args["key"].(string)
	if key == "" {
		return mcp.NewToolResultError("key is required"), nil
	}
	uid, _ := args["user_id"].(string)

	result, err := m.store.Consolidate(uid, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("consolidate error: %v", err)), nil
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (m *MCPServer) handleReviewMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	uid, _ := args["user_id"].(string)

	review := m.store.ToReview(uid)
	if review == nil {
		review = []memory.Evaluated{}
	}

	out, _ := json.MarshalIndent(review, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
