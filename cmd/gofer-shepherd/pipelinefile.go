package main

import (
	"fmt"

	"github.com/coldforge/shepherd/internal/models"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// pipelineFile is the on-disk HCL shape of a pipeline definition, decoded directly with
// hclsimple/gohcl the same way the shepherd's own configuration is.
type pipelineFile struct {
	Namespace   string      `hcl:"namespace,optional"`
	ID          string      `hcl:"id"`
	Parallelism uint64      `hcl:"parallelism,optional"`
	Tasks       []taskBlock `hcl:"task,block"`
}

type taskBlock struct {
	ID             string            `hcl:"id,label"`
	Description    string            `hcl:"description,optional"`
	Image          string            `hcl:"image"`
	RegistryUser   string            `hcl:"registry_user,optional"`
	RegistryPass   string            `hcl:"registry_pass,optional"`
	DependsOn      map[string]string `hcl:"depends_on,optional"`
	Variables      map[string]string `hcl:"variables,optional"`
	Entrypoint     []string          `hcl:"entrypoint,optional"`
	Command        []string          `hcl:"command,optional"`
	InjectAPIToken bool              `hcl:"inject_api_token,optional"`
}

func loadPipelineFile(path string) (*models.Pipeline, error) {
	var file pipelineFile
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return nil, fmt.Errorf("could not parse pipeline file %q: %w", path, err)
	}

	if file.Namespace == "" {
		file.Namespace = "default"
	}

	pipeline := &models.Pipeline{
		NamespaceID: file.Namespace,
		PipelineID:  file.ID,
		Parallelism: file.Parallelism,
		Tasks:       map[string]models.Task{},
	}

	for _, t := range file.Tasks {
		task := models.Task{
			ID:             t.ID,
			Description:    t.Description,
			Image:          t.Image,
			Entrypoint:     t.Entrypoint,
			Command:        t.Command,
			InjectAPIToken: t.InjectAPIToken,
			DependsOn:      map[string]models.RequiredParentStatus{},
		}

		if t.RegistryUser != "" || t.RegistryPass != "" {
			task.RegistryAuth = &models.RegistryAuth{User: t.RegistryUser, Pass: t.RegistryPass}
		}

		for parent, required := range t.DependsOn {
			task.DependsOn[parent] = models.ParseRequiredParentStatus(required)
		}

		for key, value := range t.Variables {
			task.Variables = append(task.Variables, models.Variable{
				Key: key, Value: value, Source: models.VariableSourcePipelineConfig,
			})
		}

		pipeline.Tasks[t.ID] = task
	}

	return pipeline, nil
}
