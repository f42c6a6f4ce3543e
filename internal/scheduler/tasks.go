package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

const TaskWarmCommune = "dpe.warm_commune"

const TaskWarmCatalog = "dpe.warm_catalog"

type WarmCommunePayload struct {
	Commune string `json:"commune"`
}

func NewWarmCommuneTask(payload WarmCommunePayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.Commune) == "" {
		return nil, fmt.Errorf("warm commune task: commune is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarmCommune, data), nil
}

func ParseWarmCommunePayload(task *asynq.Task) (WarmCommunePayload, error) {
	var payload WarmCommunePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WarmCommunePayload{}, err
	}
	if strings.TrimSpace(payload.Commune) == "" {
		return WarmCommunePayload{}, fmt.Errorf("warm commune task: commune is required")
	}
	return payload, nil
}

// NewWarmCatalogTask fans out into one warm task per catalog commune.
func NewWarmCatalogTask() *asynq.Task {
	return asynq.NewTask(TaskWarmCatalog, nil)
}
