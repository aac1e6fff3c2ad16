package audit

import "encoding/json"

const redactedPlaceholder = "[redacted]"

// redactPlanJSON returns a deep-cloned JSON view of an ActionPlan with
// confirmation.token, write_file.content, and exec.env values replaced.
// Operating on a generic JSON view rather than the typed plan means adding
// a new sensitive field never requires a custom MarshalJSON override.
func redactPlanJSON(data []byte) []byte {
	var v map[string]interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return data
	}

	if conf, ok := v["confirmation"].(map[string]interface{}); ok {
		if _, has := conf["token"]; has {
			conf["token"] = redactedPlaceholder
		}
	}

	actionsRaw, ok := v["actions"].([]interface{})
	if !ok {
		out, _ := json.Marshal(v)
		return out
	}
	for _, raw := range actionsRaw {
		action, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		switch action["type"] {
		case "write_file":
			if _, has := action["content"]; has {
				action["content"] = redactedPlaceholder
			}
		case "exec":
			if env, ok := action["env"].(map[string]interface{}); ok {
				for k := range env {
					env[k] = redactedPlaceholder
				}
			}
		}
	}

	out, _ := json.Marshal(v)
	return out
}

// redactResultJSON returns a deep-cloned JSON view of an ActionPlanResult
// with exec/observe stdout and stderr and read_file.content_base64
// replaced.
func redactResultJSON(data []byte) []byte {
	var v map[string]interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return data
	}

	resultsRaw, ok := v["results"].([]interface{})
	if !ok {
		out, _ := json.Marshal(v)
		return out
	}
	for _, raw := range resultsRaw {
		result, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		switch result["type"] {
		case "exec", "observe":
			if _, has := result["stdout"]; has {
				result["stdout"] = redactedPlaceholder
			}
			if _, has := result["stderr"]; has {
				result["stderr"] = redactedPlaceholder
			}
		case "read_file":
			if _, has := result["content_base64"]; has {
				result["content_base64"] = redactedPlaceholder
			}
		}
	}

	out, _ := json.Marshal(v)
	return out
}
