package dispatch

import (
	"strings"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/session"
	"resume-agent-go/internal/types"
)

// Operation 外部可调用的操作名
type Operation string

const (
	OpParseResume      Operation = "parse_resume"
	OpSearchJobs       Operation = "search_jobs"
	OpSaveJobPosting   Operation = "save_job_posting"
	OpGetJobDetails    Operation = "get_job_details"
	OpListJobs         Operation = "list_jobs"
	OpFilterJobs       Operation = "filter_jobs"
	OpMatchResumeToJob Operation = "match_resume_to_job"
	OpGenerateDocument Operation = "generate_document"
	OpListDocuments    Operation = "list_documents"
	OpSessionStatus    Operation = "session_status"
	OpResetSession     Operation = "reset_session"
)

// Operations 全部操作，注册工具和校验时使用
var Operations = []Operation{
	OpParseResume, OpSearchJobs, OpSaveJobPosting, OpGetJobDetails,
	OpListJobs, OpFilterJobs, OpMatchResumeToJob, OpGenerateDocument,
	OpListDocuments, OpSessionStatus, OpResetSession,
}

// Resolve 是纯决策函数：根据会话状态校验并补全操作参数。
// 不执行任何操作，也不修改会话；缺少且无法从会话解析的参数返回
// MISSING_ARGUMENT 并指明参数名，绝不猜测。
func Resolve(op Operation, args map[string]any, sess *session.Store) (map[string]any, error) {
	resolved := make(map[string]any, len(args)+2)
	for k, v := range args {
		resolved[k] = v
	}

	switch op {
	case OpParseResume:
		// 简历已解析时无需再要文件路径，直接复用会话里的来源
		if stringArg(resolved, "file_path") == "" {
			if ref := sess.ResumeSourceRef(); ref != "" {
				resolved["file_path"] = ref
			} else {
				return nil, apperr.NewMissingArgument("dispatch.parse_resume", "file_path")
			}
		}

	case OpSearchJobs:
		if stringArg(resolved, "query") == "" {
			return nil, apperr.NewMissingArgument("dispatch.search_jobs", "query")
		}

	case OpSaveJobPosting:
		if stringArg(resolved, "text") == "" {
			return nil, apperr.NewMissingArgument("dispatch.save_job_posting", "text")
		}

	case OpGetJobDetails:
		if stringArg(resolved, "job_id") == "" {
			return nil, apperr.NewMissingArgument("dispatch.get_job_details", "job_id")
		}

	case OpMatchResumeToJob:
		if stringArg(resolved, "job_id") == "" {
			return nil, apperr.NewMissingArgument("dispatch.match_resume_to_job", "job_id")
		}
		if err := resolveFingerprint(resolved, sess, "dispatch.match_resume_to_job"); err != nil {
			return nil, err
		}

	case OpGenerateDocument:
		if stringArg(resolved, "job_id") == "" {
			return nil, apperr.NewMissingArgument("dispatch.generate_document", "job_id")
		}
		if err := resolveFingerprint(resolved, sess, "dispatch.generate_document"); err != nil {
			return nil, err
		}
		if stringArg(resolved, "kind") == "" {
			resolved["kind"] = string(types.DocumentKindResume)
		}
		if stringArg(resolved, "format") == "" {
			resolved["format"] = string(types.DocumentFormatText)
		}

	case OpListJobs, OpFilterJobs, OpListDocuments, OpSessionStatus, OpResetSession:
		// 无必需参数

	default:
		return nil, apperr.NewNotFound("dispatch.resolve", "未知操作 "+string(op))
	}

	return resolved, nil
}

// AllowedOperations 返回当前会话状态下有意义的操作集合，
// 供推理端避免向用户提出多余的问题
func AllowedOperations(sess *session.Store) []Operation {
	ops := []Operation{
		OpParseResume, OpSearchJobs, OpSaveJobPosting,
		OpListJobs, OpSessionStatus, OpResetSession,
	}
	if sess.Jobs().Len() > 0 {
		ops = append(ops, OpGetJobDetails, OpFilterJobs)
	}
	if sess.IsResumeParsed() && sess.Jobs().Len() > 0 {
		ops = append(ops, OpMatchResumeToJob, OpGenerateDocument)
	}
	if len(sess.Documents()) > 0 {
		ops = append(ops, OpListDocuments)
	}
	return ops
}

// resolveFingerprint 从会话补全简历指纹。
// 简历未解析时，指纹无法解析，按缺参处理而不是替调用方猜测。
func resolveFingerprint(args map[string]any, sess *session.Store, op string) error {
	if stringArg(args, "resume_fingerprint") != "" {
		return nil
	}
	if rec := sess.ActiveResume(); rec != nil {
		args["resume_fingerprint"] = rec.Fingerprint
		return nil
	}
	return apperr.NewMissingArgument(op, "resume_fingerprint")
}

// stringArg 读取字符串参数，缺失或非字符串返回空串
func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// boolArg 读取布尔参数
func boolArg(args map[string]any, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// floatArg 读取数值参数，JSON反序列化后的数字统一是float64
func floatArg(args map[string]any, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// intArg 读取整数参数
func intArg(args map[string]any, key string) int {
	f, ok := floatArg(args, key)
	if !ok {
		return 0
	}
	return int(f)
}
