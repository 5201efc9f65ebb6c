// pkg/registry/schema.go
package registry

type ActivityRegistry struct {
	Version    string     `json:"version"`
	Activities []Activity `json:"activities"`
}

// Activity documents one job type a BPMN service task can reference.
type Activity struct {
	TaskType        string   `json:"taskType"`
	DisplayName     string   `json:"displayName"`
	Description     string   `json:"description"`
	InputVariables  []string `json:"inputVariables"`
	OutputVariables []string `json:"outputVariables"`
	ErrorCodes      []string `json:"errorCodes"`
	Timeout         string   `json:"timeout"`
}
