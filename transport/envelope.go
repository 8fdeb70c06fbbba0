package transport

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-spladmin/core"
)

// apiResponse is the JSON envelope the management API wraps every
// collection and member response in.
type apiResponse struct {
	Entry    []apiEntry   `json:"entry"`
	Messages []apiMessage `json:"messages"`
}

type apiEntry struct {
	Name    string         `json:"name"`
	Content map[string]any `json:"content"`
	ACL     *apiACL        `json:"acl"`
}

type apiACL struct {
	App     string `json:"app"`
	Sharing string `json:"sharing"`
	Owner   string `json:"owner"`
}

type apiMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// entityFromEntry lifts one envelope entry into a domain entity. Access
// and the field schema ride inside content under eai: keys; those and the
// rest of the eai: bookkeeping are stripped from the comparable content.
func entityFromEntry(kind core.Kind, entry apiEntry) core.Entity {
	entity := core.Entity{
		Name:    entry.Name,
		Kind:    kind,
		Content: map[string]any{},
	}
	if entry.ACL != nil {
		entity.Access = &core.Access{
			App:     entry.ACL.App,
			Sharing: entry.ACL.Sharing,
			Owner:   entry.ACL.Owner,
		}
	}

	for key, value := range entry.Content {
		switch {
		case key == "eai:acl":
			if entity.Access == nil {
				entity.Access = accessFromValue(value)
			}
		case key == "eai:attributes":
			entity.Schema = schemaFromValue(value)
		case strings.HasPrefix(key, "eai:"):
			// internal bookkeeping, never synchronized
		default:
			entity.Content[key] = value
		}
	}
	return entity
}

func accessFromValue(value any) *core.Access {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	access := &core.Access{}
	if app, ok := fields["app"].(string); ok {
		access.App = app
	}
	if sharing, ok := fields["sharing"].(string); ok {
		access.Sharing = sharing
	}
	if owner, ok := fields["owner"].(string); ok {
		access.Owner = owner
	}
	return access
}

func schemaFromValue(value any) core.FieldSchema {
	fields, ok := value.(map[string]any)
	if !ok {
		return core.FieldSchema{}
	}
	return core.FieldSchema{
		Required: core.StringSlice(fields["requiredFields"]),
		Optional: core.StringSlice(fields["optionalFields"]),
		Wildcard: core.StringSlice(fields["wildcardFields"]),
	}
}

// apiMessageText extracts the first error message text from a failure
// payload, falling back to empty when the body is not an envelope.
func apiMessageText(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	response := apiResponse{}
	if err := json.Unmarshal(payload, &response); err != nil {
		return ""
	}
	for _, message := range response.Messages {
		if text := strings.TrimSpace(message.Text); text != "" {
			return "transport: " + text
		}
	}
	return ""
}
