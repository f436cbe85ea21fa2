package catalog

// Schema is the JSON Schema a catalog document must satisfy
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["tools"],
  "properties": {
    "tools": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "request"],
        "properties": {
          "id": {
            "type": "string",
            "pattern": "^[a-z0-9_]+$",
            "description": "Built-in tool identifier"
          },
          "name": {"type": "string"},
          "version": {"type": "string"},
          "description": {"type": "string"},
          "requires_oauth": {"type": "boolean"},
          "params": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "type": {
                  "type": "string",
                  "enum": ["string", "number", "integer", "boolean", "object", "array", "json", "file", "any"]
                },
                "required": {"type": "boolean"},
                "visibility": {
                  "type": "string",
                  "enum": ["user-only", "user-or-llm", "hidden"]
                },
                "description": {"type": "string"}
              }
            }
          },
          "request": {
            "type": "object",
            "required": ["url"],
            "properties": {
              "url": {"type": "string", "minLength": 1},
              "method": {"type": "string"},
              "headers": {"type": "object"},
              "body": {"type": "string"},
              "body_format": {
                "type": "string",
                "enum": ["json", "raw", "form", "multipart"]
              },
              "fields": {
                "type": "array",
                "items": {
                  "type": "object",
                  "required": ["name"],
                  "properties": {
                    "name": {"type": "string", "minLength": 1},
                    "value": {"type": "string"},
                    "file": {"type": "string"}
                  }
                }
              },
              "internal": {"type": "boolean"}
            }
          },
          "output_path": {"type": "string"},
          "file_outputs": {
            "type": "array",
            "items": {"type": "string"}
          },
          "post_process": {
            "type": "object",
            "required": ["tool", "merge_as"],
            "properties": {
              "tool": {"type": "string", "minLength": 1},
              "merge_as": {"type": "string", "minLength": 1},
              "params": {
                "type": "array",
                "items": {
                  "type": "object",
                  "required": ["name", "value"],
                  "properties": {
                    "name": {"type": "string"},
                    "value": {"type": "string"}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`
