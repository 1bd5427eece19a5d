package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/catalog"
	"resume-agent-go/internal/types"
)

const (
	defaultAdzunaBaseURL = "https://api.adzuna.com/v1/api"
	defaultCountry       = "us"
	defaultResultLimit   = 10
	maxResultLimit       = 50
)

// SearchRequest 岗位搜索条件
type SearchRequest struct {
	Query    string
	Location string
	Remote   bool
	Limit    int
}

// AdzunaClient Adzuna岗位搜索API客户端
type AdzunaClient struct {
	appID      string
	appKey     string
	baseURL    string
	country    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// AdzunaOption 客户端配置选项
type AdzunaOption func(*AdzunaClient)

// WithBaseURL 覆盖API地址，测试时指向本地服务
func WithBaseURL(baseURL string) AdzunaOption {
	return func(c *AdzunaClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithCountry 配置搜索的国家代码
func WithCountry(country string) AdzunaOption {
	return func(c *AdzunaClient) {
		c.country = country
	}
}

// WithHTTPClient 覆盖HTTP客户端
func WithHTTPClient(client *http.Client) AdzunaOption {
	return func(c *AdzunaClient) {
		c.httpClient = client
	}
}

// WithLogger 配置自定义日志记录器
func WithLogger(l zerolog.Logger) AdzunaOption {
	return func(c *AdzunaClient) {
		c.logger = l
	}
}

// NewAdzunaClient 创建Adzuna客户端
func NewAdzunaClient(appID, appKey string, options ...AdzunaOption) (*AdzunaClient, error) {
	if appID == "" || appKey == "" {
		return nil, fmt.Errorf("Adzuna凭证不能为空")
	}
	c := &AdzunaClient{
		appID:      appID,
		appKey:     appKey,
		baseURL:    defaultAdzunaBaseURL,
		country:    defaultCountry,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// adzunaResponse Adzuna搜索响应
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

// adzunaResult 单条搜索结果
type adzunaResult struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Company     adzunaDisplay `json:"company"`
	Location    adzunaDisplay `json:"location"`
	SalaryMin   float64       `json:"salary_min"`
	SalaryMax   float64       `json:"salary_max"`
	RedirectURL string        `json:"redirect_url"`
	Created     string        `json:"created"`
}

type adzunaDisplay struct {
	DisplayName string `json:"display_name"`
}

// Search 调用Adzuna搜索岗位。
// 任何网络或协议层错误都返回 PROVIDER_ERROR，不产生部分结果。
func (c *AdzunaClient) Search(ctx context.Context, req SearchRequest) ([]*types.JobPosting, error) {
	const op = "AdzunaClient.Search"
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperr.NewMissingArgument(op, "query")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultResultLimit
	}
	if limit > maxResultLimit {
		limit = maxResultLimit
	}

	query := req.Query
	if req.Remote {
		query += " remote"
	}

	params := url.Values{}
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	params.Set("results_per_page", strconv.Itoa(limit))
	params.Set("what", query)
	if req.Location != "" {
		params.Set("where", req.Location)
	}
	params.Set("content-type", "application/json")

	endpoint := fmt.Sprintf("%s/jobs/%s/search/1?%s", c.baseURL, c.country, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperr.NewProviderError(op, "构造请求失败", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.NewProviderError(op, "Adzuna请求失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.NewProviderError(op,
			fmt.Sprintf("Adzuna返回状态码 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed adzunaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.NewProviderError(op, "解析Adzuna响应失败", err)
	}

	postings := make([]*types.JobPosting, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		postings = append(postings, convertResult(r))
	}

	c.logger.Info().
		Str("query", req.Query).
		Str("location", req.Location).
		Int("results", len(postings)).
		Dur("elapsed", time.Since(start)).
		Msg("Adzuna搜索完成")
	return postings, nil
}

// convertResult 将Adzuna结果转换为内部岗位模型
func convertResult(r adzunaResult) *types.JobPosting {
	created, _ := time.Parse(time.RFC3339, r.Created)
	if created.IsZero() {
		created = time.Now()
	}
	return &types.JobPosting{
		ID:          "adzuna-" + r.ID,
		Title:       r.Title,
		Company:     r.Company.DisplayName,
		Location:    r.Location.DisplayName,
		Remote:      catalog.ClassifyRemote(r.Title + " " + r.Description),
		SalaryRange: formatSalary(r.SalaryMin, r.SalaryMax),
		URL:         r.RedirectURL,
		Description: r.Description,
		Source:      types.ProvenanceSearched,
		CreatedAt:   created,
	}
}

// formatSalary 格式化薪资区间，缺失时返回空串
func formatSalary(min, max float64) string {
	switch {
	case min > 0 && max > 0:
		return fmt.Sprintf("$%s - $%s", formatThousands(min), formatThousands(max))
	case min > 0:
		return "$" + formatThousands(min) + "+"
	case max > 0:
		return "Up to $" + formatThousands(max)
	}
	return ""
}

// formatThousands 按千位加逗号
func formatThousands(v float64) string {
	n := int64(v)
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
