package logging

// Per-category convenience helpers, matching the call sites' natural grain:
// Info-level for lifecycle events, Debug-level for per-operation detail.

func Router(format string, args ...interface{})       { Get(CategoryRouter).Info(format, args...) }
func RouterDebug(format string, args ...interface{})  { Get(CategoryRouter).Debug(format, args...) }
func LLM(format string, args ...interface{})          { Get(CategoryLLM).Info(format, args...) }
func LLMDebug(format string, args ...interface{})     { Get(CategoryLLM).Debug(format, args...) }
func LLMError(format string, args ...interface{})     { Get(CategoryLLM).Error(format, args...) }
func Agents(format string, args ...interface{})       { Get(CategoryAgents).Info(format, args...) }
func AgentsDebug(format string, args ...interface{})  { Get(CategoryAgents).Debug(format, args...) }
func Orch(format string, args ...interface{})         { Get(CategoryOrchestrator).Info(format, args...) }
func OrchDebug(format string, args ...interface{})    { Get(CategoryOrchestrator).Debug(format, args...) }
func VFS(format string, args ...interface{})          { Get(CategoryVFS).Info(format, args...) }
func VFSDebug(format string, args ...interface{})     { Get(CategoryVFS).Debug(format, args...) }
func Patch(format string, args ...interface{})        { Get(CategoryPatch).Info(format, args...) }
func PatchDebug(format string, args ...interface{})   { Get(CategoryPatch).Debug(format, args...) }
func Validate(format string, args ...interface{})     { Get(CategoryValidation).Info(format, args...) }
func ValidateDebug(format string, args ...interface{}) {
	Get(CategoryValidation).Debug(format, args...)
}
func Preview(format string, args ...interface{})       { Get(CategoryPreview).Info(format, args...) }
func PreviewDebug(format string, args ...interface{})  { Get(CategoryPreview).Debug(format, args...) }
func PreviewError(format string, args ...interface{})  { Get(CategoryPreview).Error(format, args...) }
func Watcher(format string, args ...interface{})       { Get(CategoryWatcher).Info(format, args...) }
func WatcherDebug(format string, args ...interface{})  { Get(CategoryWatcher).Debug(format, args...) }
func Memory(format string, args ...interface{})        { Get(CategoryMemory).Info(format, args...) }
func MemoryDebug(format string, args ...interface{})   { Get(CategoryMemory).Debug(format, args...) }
func Embedding(format string, args ...interface{})     { Get(CategoryEmbedding).Info(format, args...) }
func EmbeddingDebug(format string, args ...interface{}) {
	Get(CategoryEmbedding).Debug(format, args...)
}
