package extract

import "encoding/json"

// PromptVersion is bumped whenever the prompt or response schema changes.
const PromptVersion = "2.0.0"

// SchemaName labels the structured-output schema for providers that need one.
const SchemaName = "pain_point_findings"

// ResponseSchema is the JSON schema the model must follow.
var ResponseSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "description": {"type": "string"},
          "severity": {"type": "string", "enum": ["low", "medium", "high"]},
          "evidence": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "properties": {
                "ref": {"type": "string"},
                "url": {"type": "string"}
              },
              "required": ["ref", "url"]
            }
          },
          "example_quotes": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["name", "description", "severity", "evidence"]
      }
    },
    "narrative": {"type": "string"},
    "content_warnings": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["findings", "narrative"]
}`)

// response mirrors ResponseSchema. Findings is a pointer so a missing key
// is distinguishable from an empty list.
type response struct {
	Findings        *[]rawFinding `json:"findings"`
	Narrative       string        `json:"narrative"`
	ContentWarnings []string      `json:"content_warnings"`
}

type rawFinding struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Severity      string        `json:"severity"`
	Evidence      []rawCitation `json:"evidence"`
	ExampleQuotes []string      `json:"example_quotes"`
}

type rawCitation struct {
	Ref string `json:"ref"`
	URL string `json:"url"`
}
