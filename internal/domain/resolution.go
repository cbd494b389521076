package domain

// IdentitySource 标识身份解析命中的来源。
type IdentitySource string

const (
	SourceMetaHeader  IdentitySource = "meta-header"  // 请求头（最高优先级）
	SourceHTTPContext IdentitySource = "http-context" // 请求上下文携带的值
	SourceEnvVar      IdentitySource = "env-var"      // 进程级环境变量（最低优先级）
)

// ResolutionResult 表示一次身份解析的结果。
//
// 每次解析调用都会产生新的结果，不做任何持久化。
type ResolutionResult struct {
	Identity Identity       `json:"identity"`
	Source   IdentitySource `json:"source"`
}
