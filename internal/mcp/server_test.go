package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpc sends one JSON-RPC message through the server and decodes the reply
func rpc(t *testing.T, s *Server, id int, method string, params interface{}) map[string]interface{} {
	t.Helper()
	request := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		request["params"] = params
	}
	body, err := json.Marshal(request)
	require.NoError(t, err)

	reply := s.MCPServer().HandleMessage(context.Background(), body)
	require.NotNil(t, reply)

	raw, err := json.Marshal(reply)
	require.NoError(t, err)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Nil(t, resp["error"], "%s returned error: %v", method, resp["error"])
	return resp
}

func TestMCPServer(t *testing.T) {
	f := newFixture(t)

	resp := rpc(t, f.srv, 1, "initialize", map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "test",
			"version": "1.0.0",
		},
	})
	result := resp["result"].(map[string]interface{})
	info := result["serverInfo"].(map[string]interface{})
	assert.Equal(t, "lodeb", info["name"])

	resp = rpc(t, f.srv, 2, "tools/list", nil)
	tools := resp["result"].(map[string]interface{})["tools"].([]interface{})
	names := make(map[string]bool)
	for _, tool := range tools {
		names[tool.(map[string]interface{})["name"].(string)] = true
	}

	expected := []string{
		"lodeb_set_exe", "lodeb_launch_config", "lodeb_load", "lodeb_start",
		"lodeb_open", "lodeb_source", "lodeb_toggle_breakpoint", "lodeb_search_symbols",
		"lodeb_step", "lodeb_continue", "lodeb_run_to_line", "lodeb_kill",
		"lodeb_snapshot", "lodeb_select_frame", "lodeb_toggle_variable", "lodeb_output",
	}
	assert.Len(t, names, len(expected))
	for _, name := range expected {
		assert.True(t, names[name], "missing tool %s", name)
	}

	resp = rpc(t, f.srv, 3, "tools/call", map[string]interface{}{
		"name":      "lodeb_snapshot",
		"arguments": map[string]interface{}{},
	})
	content := resp["result"].(map[string]interface{})["content"].([]interface{})
	require.NotEmpty(t, content)
	text := content[0].(map[string]interface{})["text"].(string)

	var out toolOutput
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.False(t, out.Session.TargetLoaded)
	assert.Nil(t, out.Session.Process)
}
