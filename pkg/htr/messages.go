package htr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidResult marks result payloads that do not match the schema.
var ErrInvalidResult = errors.New("invalid htr result")

// Request asks the worker to recognise the listed files of one work.
type Request struct {
	WorkID       uint             `json:"work_id"`
	TaskID       uint             `json:"task_id"`
	Status       string           `json:"status"`
	CommentTypes []RequestComment `json:"comment_types"`
	Answers      []RequestAnswer  `json:"answers"`
}

// RequestComment is a comment type the worker may attach.
type RequestComment struct {
	ID        uint   `json:"id"`
	ShortName string `json:"short_name"`
	Name      string `json:"name"`
}

// RequestAnswer lists the files of one answer.
type RequestAnswer struct {
	ID    uint          `json:"id"`
	Files []RequestFile `json:"files"`
}

// RequestFile is one stored image.
type RequestFile struct {
	ID  uint   `json:"id"`
	Key string `json:"key"`
}

// Result is the worker's verdict for a work.
type Result struct {
	WorkID  uint           `json:"work_id"`
	Answers []ResultAnswer `json:"answers"`
}

// ResultAnswer carries per-file statuses and generated comments.
type ResultAnswer struct {
	ID       uint            `json:"id"`
	Files    []ResultFile    `json:"files"`
	Comments []ResultComment `json:"comments"`
}

// ResultFile reports the recognition outcome of one key.
type ResultFile struct {
	Key    string `json:"key"`
	Status string `json:"status"`
}

// ResultComment is a machine-generated remark on an area of an image.
type ResultComment struct {
	FileKey     string      `json:"file_key"`
	Description string      `json:"description"`
	TypeID      *uint       `json:"type_id"`
	Coordinates []Rectangle `json:"coordinates"`
}

// Rectangle is an area on an image.
type Rectangle struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

const resultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["work_id", "answers"],
  "properties": {
    "work_id": {"type": "integer", "minimum": 1},
    "answers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "integer", "minimum": 1},
          "files": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["key", "status"],
              "properties": {
                "key": {"type": "string", "minLength": 1},
                "status": {"enum": ["verified", "banned"]}
              }
            }
          },
          "comments": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["description"],
              "properties": {
                "file_key": {"type": "string"},
                "description": {"type": "string", "minLength": 1},
                "type_id": {"type": ["integer", "null"]},
                "coordinates": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["x1", "y1", "x2", "y2"],
                    "properties": {
                      "x1": {"type": "number"},
                      "y1": {"type": "number"},
                      "x2": {"type": "number"},
                      "y2": {"type": "number"}
                    }
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

var compiledResultSchema = jsonschema.MustCompileString("htr-result.json", resultSchema)

// DecodeResult validates body against the result schema and decodes it.
func DecodeResult(body []byte) (Result, error) {
	var document interface{}
	if err := json.Unmarshal(body, &document); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}

	if err := compiledResultSchema.Validate(document); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidResult, strings.TrimSpace(err.Error()))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}

	return result, nil
}
