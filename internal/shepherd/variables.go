package shepherd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coldforge/shepherd/internal/models"
	"github.com/coldforge/shepherd/internal/objectStore"
	"github.com/coldforge/shepherd/internal/secretStore"
)

// combine merges system, task-config, and run variables into the final list a task execution's
// container is launched with. Stack order (last wins): system vars, then task-config vars, then
// run vars. Keys are uppercased before the merge so "port" and "PORT" collide the same way
// whichever source set them.
func combine(run *models.Run, task models.Task) []models.Variable {
	merged := map[string]models.Variable{}

	apply := func(vars []models.Variable) {
		for _, v := range vars {
			key := strings.ToUpper(strings.TrimSpace(v.Key))
			if key == "" {
				continue
			}
			v.Key = key
			merged[key] = v
		}
	}

	apply(systemVariables(run, task))
	apply(task.Variables)
	apply(run.Variables)

	out := make([]models.Variable, 0, len(merged))
	for _, v := range merged {
		out = append(out, v)
	}

	return out
}

// systemVariables builds the Gofer-injected variables every task execution receives regardless of
// pipeline configuration.
func systemVariables(run *models.Run, task models.Task) []models.Variable {
	vars := []models.Variable{
		{Key: "GOFER_PIPELINE_ID", Value: run.PipelineID, Source: models.VariableSourceSystem},
		{Key: "GOFER_RUN_ID", Value: strconv.FormatInt(run.RunID, 10), Source: models.VariableSourceSystem},
		{Key: "GOFER_TASK_ID", Value: task.ID, Source: models.VariableSourceSystem},
		{Key: "GOFER_TASK_IMAGE", Value: task.Image, Source: models.VariableSourceSystem},
	}

	if task.InjectAPIToken {
		vars = append(vars, models.Variable{
			Key:    "GOFER_API_TOKEN",
			Value:  fmt.Sprintf("secret{{ %s }}", runAPITokenKey(run.RunID)),
			Source: models.VariableSourceSystem,
		})
	}

	return vars
}

// resolver is the narrow slice of the object/secret stores the interpolation step needs, scoped to
// the run currently being interpolated.
type resolver struct {
	namespace   string
	pipeline    string
	runID       int64
	secretStore secretStore.Engine
	objectStore objectStore.Engine
}

// interpolate scans each variable's value for a `kind{{ key }}` reference and substitutes the
// resolved value in place. `secret` falls back to the global secret store when no pipeline-scoped
// secret exists under that key. A value with no recognized prefix passes through unchanged.
func interpolate(vars []models.Variable, r resolver) ([]models.Variable, error) {
	out := make([]models.Variable, len(vars))

	for i, v := range vars {
		resolved, err := r.resolveValue(v.Value)
		if err != nil {
			return nil, fmt.Errorf("could not interpolate variable %q: %w", v.Key, err)
		}
		v.Value = resolved
		out[i] = v
	}

	return out, nil
}

func (r resolver) resolveValue(value string) (string, error) {
	if key, ok := parseInterpolationToken("secret", value); ok {
		secret, err := r.secretStore.GetSecret(pipelineSecretKey(r.namespace, r.pipeline, key))
		if err == nil {
			return secret, nil
		}

		secret, err = r.secretStore.GetSecret(globalSecretKey(key))
		if err != nil {
			return "", fmt.Errorf("could not find secret %q in pipeline or global secret store", key)
		}
		return secret, nil
	}

	if key, ok := parseInterpolationToken("pipeline", value); ok {
		object, err := r.objectStore.GetObject(pipelineObjectKey(r.namespace, r.pipeline, key))
		if err != nil {
			return "", fmt.Errorf("could not find pipeline object %q in object store", key)
		}
		return string(object), nil
	}

	if key, ok := parseInterpolationToken("run", value); ok {
		object, err := r.objectStore.GetObject(runObjectKey(r.namespace, r.pipeline, r.runID, key))
		if err != nil {
			return "", fmt.Errorf("could not find run object %q in object store", key)
		}
		return string(object), nil
	}

	return value, nil
}

// parseInterpolationToken reports whether value is of the form "kind{{ key }}", returning the
// trimmed key when it is.
func parseInterpolationToken(kind, value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	prefix := kind + "{{"

	if !strings.HasPrefix(trimmed, prefix) || !strings.HasSuffix(trimmed, "}}") {
		return "", false
	}

	key := strings.TrimPrefix(trimmed, prefix)
	key = strings.TrimSuffix(key, "}}")
	return strings.TrimSpace(key), true
}
