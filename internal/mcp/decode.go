package mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/nosh/internal/errors"
)

// decode unmarshals MCP request arguments into a typed struct.
// Type mismatches (a string where a number belongs) are INVALID_INPUT.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidInput("arguments are not valid JSON: " + err.Error())
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, errors.NewInvalidInput("invalid arguments: " + err.Error())
	}
	return result, nil
}
