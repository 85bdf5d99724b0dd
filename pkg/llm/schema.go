package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const guidanceSchema = `{
  "type": "object",
  "required": ["thought_trace", "realm", "advice", "action_intent"],
  "properties": {
    "thought_trace": {"type": "string"},
    "realm": {"type": "string", "minLength": 1},
    "advice": {"type": "string", "minLength": 1},
    "action_intent": {"type": "string", "enum": ["SET_ALARM", "PLAY_SOUND", "NONE"]}
  }
}`

var (
	guidanceSchemaLoader = gojsonschema.NewStringLoader(guidanceSchema)
	jsonBlock            = regexp.MustCompile(`(?s)\{.*\}`)
)

// ValidateGuidanceJSON checks a raw JSON document against the four-field reply schema.
func ValidateGuidanceJSON(doc string) error {
	result, err := gojsonschema.Validate(guidanceSchemaLoader, gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrMalformedReply, strings.Join(errs, "; "))
	}
	return nil
}

// ParseGuidanceReply extracts the outermost JSON object from raw model text,
// validates it and decodes it.
func ParseGuidanceReply(raw string) (GuidanceReply, error) {
	if strings.TrimSpace(raw) == "" {
		return GuidanceReply{}, ErrEmptyReply
	}

	doc := jsonBlock.FindString(raw)
	if doc == "" {
		return GuidanceReply{}, fmt.Errorf("%w: no JSON object found", ErrMalformedReply)
	}
	if err := ValidateGuidanceJSON(doc); err != nil {
		return GuidanceReply{}, err
	}

	var reply GuidanceReply
	if err := json.Unmarshal([]byte(doc), &reply); err != nil {
		return GuidanceReply{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	reply.Fallback = false
	return reply, nil
}
