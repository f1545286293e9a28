package analysis

import "encoding/json"

// responseSchemaJSON is the structured-output contract for AnalysisResult.
// Every property is required at every level.
const responseSchemaJSON = `{
  "type": "object",
  "properties": {
    "workflowSummary": {"type": "string"},
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "description": {"type": "string"},
          "type": {"type": "string"}
        },
        "required": ["title", "description", "type"]
      }
    },
    "databaseSchema": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "tableName": {"type": "string"},
          "fields": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "name": {"type": "string"},
                "type": {"type": "string"},
                "isPrimaryKey": {"type": "boolean"},
                "isForeignKey": {"type": "boolean"},
                "description": {"type": "string"}
              },
              "required": ["name", "type", "isPrimaryKey", "isForeignKey", "description"]
            }
          },
          "reasoning": {"type": "string"}
        },
        "required": ["tableName", "fields", "reasoning"]
      }
    },
    "optimizationTips": {
      "type": "array",
      "items": {"type": "string"}
    }
  },
  "required": ["workflowSummary", "steps", "databaseSchema", "optimizationTips"]
}`

// ResponseSchema returns a fresh copy of the contract; callers may mutate it.
func ResponseSchema() map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(responseSchemaJSON), &m); err != nil {
		panic("analysis: bad embedded response schema: " + err.Error())
	}
	return m
}
