package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/randalmurphal/pilot/internal/util"
)

// GenerateSchema reflects a strict JSON schema for T: no additional
// properties, no $ref indirection, so it can go straight into a
// structured-output request.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// schemaCallRetries bounds transport-level retries per schema call.
const schemaCallRetries = 1

// ExecuteWithSchema makes a schema-constrained oracle call and strictly
// decodes the response into T. Transient oracle failures (rate limits,
// server errors, transport drops) get one retry; cancellation and deadline
// expiry never do. When the request carries no schema, one is generated
// from T. No liberal fallback parsing here: callers that need the
// fence-tolerant path go through the codec instead.
func ExecuteWithSchema[T any](ctx context.Context, client Client, req Request) (T, error) {
	var result T

	if req.Schema == nil {
		req.Schema = GenerateSchema[T]()
	}
	if req.SchemaName == "" {
		req.SchemaName = "response"
	}

	var content string
	var err error
	for attempt := 0; ; attempt++ {
		content, err = client.Complete(ctx, req)
		if err == nil || attempt >= schemaCallRetries || !IsRetryable(ctx, err) {
			break
		}
	}
	if err != nil {
		return result, fmt.Errorf("schema execution failed: %w", err)
	}
	if content == "" {
		return result, fmt.Errorf("empty response content from oracle")
	}

	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return result, fmt.Errorf("schema response parse failed (content=%q): %w",
			util.TruncateHead(content, 200), err)
	}

	return result, nil
}
