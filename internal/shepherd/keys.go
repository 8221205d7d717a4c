package shepherd

import "fmt"

// Deterministic key/id formats shared by the variable composer, the expiry workers, and the
// container scheduler. Keeping them in one place means a namespace/pipeline/run/task tuple always
// maps to the same string no matter which component is asking.
const (
	globalSecretKeyFmt   = "global_secret_%s"    // global_secret_<key>
	pipelineSecretKeyFmt = "%s_%s_%s"            // <namespace>_<pipeline>_<key>
	pipelineObjectKeyFmt = "%s_%s_%s"            // <namespace>_<pipeline>_<key>
	runObjectKeyFmt      = "%s_%s_%d_%s"         // <namespace>_<pipeline>_<run>_<key>
	taskContainerIDFmt   = "%s_%s_%d_%s"         // <namespace>_<pipeline>_<run>_<task>
	runAPITokenKeyFmt    = "gofer_api_token_run_id_%d"
)

func globalSecretKey(key string) string {
	return fmt.Sprintf(globalSecretKeyFmt, key)
}

func pipelineSecretKey(namespace, pipeline, key string) string {
	return fmt.Sprintf(pipelineSecretKeyFmt, namespace, pipeline, key)
}

func pipelineObjectKey(namespace, pipeline, key string) string {
	return fmt.Sprintf(pipelineObjectKeyFmt, namespace, pipeline, key)
}

func runObjectKey(namespace, pipeline string, run int64, key string) string {
	return fmt.Sprintf(runObjectKeyFmt, namespace, pipeline, run, key)
}

// taskContainerID is the bit-exact string operators use to correlate a task execution with the
// container the scheduler launched for it.
func taskContainerID(namespace, pipeline string, run int64, task string) string {
	return fmt.Sprintf(taskContainerIDFmt, namespace, pipeline, run, task)
}

// runAPITokenKey names the pipeline-secret an auto-injected GOFER_API_TOKEN resolves to.
func runAPITokenKey(runID int64) string {
	return fmt.Sprintf(runAPITokenKeyFmt, runID)
}
