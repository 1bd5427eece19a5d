package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"resume-agent-go/internal/session"
)

// toolSpec 每个操作对应的工具描述与参数模式
type toolSpec struct {
	desc   string
	params map[string]*schema.ParameterInfo
}

var toolSpecs = map[Operation]toolSpec{
	OpParseResume: {
		desc: "解析用户上传的简历文件，提取联系方式、技能和经历。简历已上传过时可以不传文件路径。",
		params: map[string]*schema.ParameterInfo{
			"file_path": {Type: "string", Desc: "简历文件路径，支持PDF和纯文本。已上传过简历时可省略。"},
		},
	},
	OpSearchJobs: {
		desc: "按关键词搜索招聘岗位，结果自动存入会话的岗位目录。",
		params: map[string]*schema.ParameterInfo{
			"query":    {Type: "string", Desc: "搜索关键词，例如：golang backend engineer", Required: true},
			"location": {Type: "string", Desc: "期望工作地点"},
			"remote":   {Type: "boolean", Desc: "是否只想要远程岗位"},
			"limit":    {Type: "integer", Desc: "返回结果数量上限，默认10"},
		},
	},
	OpSaveJobPosting: {
		desc: "保存用户手动粘贴的岗位描述文本。同一段文本重复保存会得到同一个岗位ID。",
		params: map[string]*schema.ParameterInfo{
			"text": {Type: "string", Desc: "完整的岗位描述文本", Required: true},
		},
	},
	OpGetJobDetails: {
		desc: "按岗位ID查看岗位详情。",
		params: map[string]*schema.ParameterInfo{
			"job_id": {Type: "string", Desc: "岗位ID", Required: true},
		},
	},
	OpListJobs: {
		desc:   "列出会话中已知的全部岗位。",
		params: map[string]*schema.ParameterInfo{},
	},
	OpFilterJobs: {
		desc: "按条件筛选已知岗位，原目录不变。",
		params: map[string]*schema.ParameterInfo{
			"min_score":   {Type: "number", Desc: "匹配分下限，需要已完成匹配分析"},
			"remote_only": {Type: "boolean", Desc: "只保留远程岗位"},
			"has_salary":  {Type: "boolean", Desc: "只保留标注薪资的岗位"},
		},
	},
	OpMatchResumeToJob: {
		desc: "计算当前简历与指定岗位的匹配分和技能差距。",
		params: map[string]*schema.ParameterInfo{
			"job_id":             {Type: "string", Desc: "岗位ID", Required: true},
			"resume_fingerprint": {Type: "string", Desc: "简历指纹，省略时使用当前简历"},
		},
	},
	OpGenerateDocument: {
		desc: "为指定岗位生成定制简历或求职信。",
		params: map[string]*schema.ParameterInfo{
			"job_id":             {Type: "string", Desc: "岗位ID", Required: true},
			"kind":               {Type: "string", Desc: "文档种类：resume 或 cover_letter，默认 resume"},
			"format":             {Type: "string", Desc: "输出格式：text 或 docx，默认 text"},
			"resume_fingerprint": {Type: "string", Desc: "简历指纹，省略时使用当前简历"},
		},
	},
	OpListDocuments: {
		desc:   "列出本会话已生成的全部求职文档。",
		params: map[string]*schema.ParameterInfo{},
	},
	OpSessionStatus: {
		desc:   "查看会话状态：简历是否已解析、岗位数量、分析和文档计数、最近动态。",
		params: map[string]*schema.ParameterInfo{},
	},
	OpResetSession: {
		desc:   "清空整个会话，开始新的对话。这是唯一的状态销毁操作。",
		params: map[string]*schema.ParameterInfo{},
	},
}

// OperationTool 把一个调度操作包装成 eino 工具。
// 会话在构造时绑定，由对话驱动层为每个会话创建一套工具。
type OperationTool struct {
	op         Operation
	spec       toolSpec
	dispatcher *Dispatcher
	sess       *session.Store
}

var _ tool.BaseTool = (*OperationTool)(nil)
var _ tool.InvokableTool = (*OperationTool)(nil)

// NewOperationTool 包装单个操作
func NewOperationTool(op Operation, d *Dispatcher, sess *session.Store) (*OperationTool, error) {
	spec, ok := toolSpecs[op]
	if !ok {
		return nil, fmt.Errorf("操作 %s 没有对应的工具描述", op)
	}
	return &OperationTool{op: op, spec: spec, dispatcher: d, sess: sess}, nil
}

// NewSessionTools 为一个会话构建全部操作工具
func NewSessionTools(d *Dispatcher, sess *session.Store) ([]tool.BaseTool, error) {
	tools := make([]tool.BaseTool, 0, len(Operations))
	for _, op := range Operations {
		t, err := NewOperationTool(op, d, sess)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// Info 实现 tool.BaseTool 接口
func (t *OperationTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        string(t.op),
		Desc:        t.spec.desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(t.spec.params),
	}, nil
}

// InvokableRun 实现 tool.InvokableTool 接口。
// 执行结果序列化为扁平JSON返回，错误折叠在结果里而不是抛给框架。
func (t *OperationTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	args := make(map[string]any)
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
			return "", fmt.Errorf("工具 %s 的输入JSON解析失败: %w", t.op, err)
		}
	}

	result := t.dispatcher.Execute(ctx, t.sess, t.op, args)
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("序列化工具 %s 的结果失败: %w", t.op, err)
	}
	return string(out), nil
}
