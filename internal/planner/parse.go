package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// plannedRef is the wire form of a result reference.
type plannedRef struct {
	Task  string `json:"task"`
	Field string `json:"field"`
}

// plannedTask is the wire form of one task in the model's response.
type plannedTask struct {
	ID             string                     `json:"id"`
	Target         string                     `json:"target"`
	FallbackTarget string                     `json:"fallback_target"`
	Reference      string                     `json:"reference"`
	Params         map[string]json.RawMessage `json:"params"`
	DependsOn      []string                   `json:"depends_on"`
}

// plannerResponse is the wire form of the whole response.
type plannerResponse struct {
	Tasks []plannedTask `json:"tasks"`
}

// ParseResponse extracts and decodes the task list from the model's raw text.
// The model is untrusted: anything outside the fixed schema is rejected as
// malformed, including parameter values that are neither a literal nor a ref.
func ParseResponse(response string) ([]*models.Task, error) {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		preview := response
		if len(preview) > 500 {
			preview = preview[:500] + "... (truncated)"
		}
		return nil, malformed(fmt.Sprintf("no JSON object found in response: %q", preview), nil)
	}
	jsonStr := response[jsonStart : jsonEnd+1]

	var resp plannerResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, malformed("unmarshal response", err)
	}

	tasks := make([]*models.Task, 0, len(resp.Tasks))
	for _, pt := range resp.Tasks {
		if pt.ID == "" {
			return nil, malformed("task with empty id", nil)
		}
		if pt.Target == "" {
			return nil, malformed("task "+pt.ID+" has no target", nil)
		}

		params, err := parseParams(pt.ID, pt.Params)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, &models.Task{
			ID:             pt.ID,
			Target:         pt.Target,
			FallbackTarget: pt.FallbackTarget,
			Reference:      pt.Reference,
			Params:         params,
			DependsOn:      pt.DependsOn,
			Status:         models.TaskStatusPending,
		})
	}

	return tasks, nil
}

// parseParams decodes a task's parameter map, enforcing the tagged-union
// shape: each value is exactly one of {"literal": ...} or {"ref": {...}}.
func parseParams(taskID string, raw map[string]json.RawMessage) (map[string]models.ParamValue, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	params := make(map[string]models.ParamValue, len(raw))
	for name, rawVal := range raw {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(rawVal, &keys); err != nil {
			return nil, malformed("task "+taskID+" param "+name+" is not an object", err)
		}

		litRaw, hasLit := keys["literal"]
		refRaw, hasRef := keys["ref"]
		if hasLit == hasRef {
			return nil, malformed("task "+taskID+" param "+name+" must have exactly one of literal or ref", nil)
		}
		if len(keys) != 1 {
			return nil, malformed("task "+taskID+" param "+name+" has unknown keys", nil)
		}

		if hasLit {
			var val any
			if err := json.Unmarshal(litRaw, &val); err != nil {
				return nil, malformed("task "+taskID+" param "+name+" literal", err)
			}
			params[name] = models.Literal(val)
			continue
		}

		var ref plannedRef
		if err := json.Unmarshal(refRaw, &ref); err != nil {
			return nil, malformed("task "+taskID+" param "+name+" ref", err)
		}
		if ref.Task == "" {
			return nil, malformed("task "+taskID+" param "+name+" ref has no task", nil)
		}
		params[name] = models.RefTo(ref.Task, ref.Field)
	}

	return params, nil
}
