package analysis

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
)

// resultSchema is the contract the model response must satisfy before we
// trust it. Only the scoring core is required; entity fields may be
// missing and default to empty.
const resultSchema = `{
  "type": "object",
  "required": ["score", "intent", "urgency", "stage", "routing"],
  "properties": {
    "name": {"type": "string"},
    "company": {"type": "string"},
    "region": {"type": "string"},
    "email": {"type": "string"},
    "phone": {"type": "string"},
    "topic": {"type": "string"},
    "use_case": {"type": "string"},
    "summary": {"type": "string"},
    "timeline": {"type": "array", "items": {"type": "string"}},
    "objections": {"type": "array", "items": {"type": "string"}},
    "questions": {"type": "array", "items": {"type": "string"}},
    "competitors": {"type": "array", "items": {"type": "string"}},
    "budget": {"type": "string"},
    "scale": {"type": "string"},
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "intent": {"type": "string"},
    "urgency": {"type": "string"},
    "stage": {"type": "string"},
    "routing": {"type": "string"},
    "sentiment": {"type": "string"},
    "trust": {"type": "string"},
    "motivation": {"type": "string"}
  }
}`

func compileResultSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(resultSchema))
	if err != nil {
		return nil, errors.Wrap(err, "decode result schema")
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analysis.json", doc); err != nil {
		return nil, errors.Wrap(err, "add result schema resource")
	}
	schema, err := compiler.Compile("analysis.json")
	if err != nil {
		return nil, errors.Wrap(err, "compile result schema")
	}
	return schema, nil
}

// parseResult turns a raw model response into a Result. Models wrap JSON
// in code fences or chat filler often enough that we strip fences and
// fall back to extracting the first balanced object.
func parseResult(schema *jsonschema.Schema, raw string) (*Result, error) {
	normalized := cleanModelJSON(raw)

	candidate := normalized
	if !json.Valid([]byte(candidate)) {
		candidate = extractFirstBalancedJSON(normalized, '{', '}')
		if candidate == "" {
			return nil, errors.InvalidModelOutput("no JSON object in response")
		}
	}

	var generic any
	if err := json.Unmarshal([]byte(candidate), &generic); err != nil {
		return nil, errors.InvalidModelOutput("malformed json: " + err.Error())
	}
	if err := schema.Validate(generic); err != nil {
		return nil, errors.InvalidModelOutput("schema violation: " + err.Error())
	}

	var result Result
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, errors.InvalidModelOutput("decode result: " + err.Error())
	}
	return &result, nil
}

func cleanModelJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractFirstBalancedJSON(input string, open, close byte) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		ch := input[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return strings.TrimSpace(input[start : i+1])
			}
		}
	}
	return ""
}
