package mcp

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/memclass/internal/errors"
)

// decode unmarshals tool arguments into a request struct. Type mismatches
// become INVALID_REQUEST naming the argument.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	args := req.GetArguments()
	if args == nil {
		return result, nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("invalid arguments: %v", err))
	}
	if err := json.Unmarshal(b, &result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return result, errors.NewInvalidRequest(fmt.Sprintf("argument %q must be %s, got %s", typeErr.Field, describe(typeErr.Type.Kind().String()), typeErr.Value))
		}
		return result, errors.NewInvalidRequest(fmt.Sprintf("invalid arguments: %v", err))
	}
	return result, nil
}

func describe(kind string) string {
	switch kind {
	case "int", "int64", "uint64":
		return "an integer"
	case "string":
		return "a string"
	case "slice":
		return "an array"
	}
	return "a " + kind
}
