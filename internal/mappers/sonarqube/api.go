package sonarqube

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
)

// SonarQube web API endpoints, relative to the API base url.
const (
	IssuesEndpoint  = "/issues/search"
	RuleEndpoint    = "/rules/show"
	SourceEndpoint  = "/sources/raw"
	VersionEndpoint = "/server/version"
)

type paging struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Total     int `json:"total"`
}

type issuesResponse struct {
	Paging paging  `json:"paging"`
	Issues []Issue `json:"issues"`
}

// TextRange is the line range an issue covers.
type TextRange struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

// Issue is one SonarQube issue.
type Issue struct {
	Key       string     `json:"key"`
	Rule      string     `json:"rule"`
	Component string     `json:"component"`
	Project   string     `json:"project"`
	TextRange *TextRange `json:"textRange"`
}

type ruleResponse struct {
	Rule Rule `json:"rule"`
}

// Rule describes a SonarQube rule.
type Rule struct {
	Key                 string   `json:"key"`
	Name                string   `json:"name"`
	HTMLDesc            string   `json:"htmlDesc"`
	Severity            string   `json:"severity"`
	SysTags             []string `json:"sysTags"`
	DescriptionSections []struct {
		Key     string `json:"key"`
		Content string `json:"content"`
	} `json:"descriptionSections"`
}

// description returns htmlDesc, or the joined description sections of servers that no longer send it.
func (r Rule) description() string {
	if r.HTMLDesc != "" || len(r.DescriptionSections) == 0 {
		return r.HTMLDesc
	}
	parts := make([]string, 0, len(r.DescriptionSections))
	for _, s := range r.DescriptionSections {
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, "\n")
}

// API is a read-only client of the SonarQube web API.
type API struct {
	client   *resty.Client
	pageSize int
	logger   hclog.Logger
}

// NewAPI returns an API client for the server at baseURL, for example http://sonar:9000/api.
// auth is "user:password" or a bare token; empty means anonymous.
func NewAPI(client *resty.Client, baseURL, auth string, pageSize int, logger hclog.Logger) *API {
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	if auth != "" {
		user, password, _ := strings.Cut(auth, ":")
		client.SetBasicAuth(user, password)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &API{client: client, pageSize: pageSize, logger: logger}
}

func (a *API) get(ctx context.Context, endpoint string, params map[string]string, result interface{}) (*resty.Response, error) {
	req := a.client.R().SetContext(ctx).SetQueryParams(params)
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("sonarqube %s: %w", endpoint, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("sonarqube %s: API error %d: %s", endpoint, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return resp, nil
}

// Issues returns every unresolved vulnerability of project, following pagination.
func (a *API) Issues(ctx context.Context, project string) ([]Issue, error) {
	var issues []Issue
	for page := 1; ; page++ {
		var r issuesResponse
		_, err := a.get(ctx, IssuesEndpoint, map[string]string{
			"componentKeys": project,
			"resolved":      "false",
			"types":         "VULNERABILITY",
			"ps":            strconv.Itoa(a.pageSize),
			"p":             strconv.Itoa(page),
		}, &r)
		if err != nil {
			return nil, err
		}
		issues = append(issues, r.Issues...)
		a.logger.Debug("fetched sonarqube issues page", "page", page, "issues", len(r.Issues), "total", r.Paging.Total)

		if page*a.pageSize >= r.Paging.Total || len(r.Issues) == 0 {
			break
		}
	}
	return issues, nil
}

// Rule returns the details of the rule with key.
func (a *API) Rule(ctx context.Context, key string) (Rule, error) {
	var r ruleResponse
	if _, err := a.get(ctx, RuleEndpoint, map[string]string{"key": key}, &r); err != nil {
		return Rule{}, err
	}
	return r.Rule, nil
}

// Source returns the raw source of component split into lines.
func (a *API) Source(ctx context.Context, component string) ([]string, error) {
	resp, err := a.get(ctx, SourceEndpoint, map[string]string{"key": component}, nil)
	if err != nil {
		return nil, err
	}
	return strings.Split(resp.String(), "\n"), nil
}

// Version returns the server version.
func (a *API) Version(ctx context.Context) (string, error) {
	resp, err := a.get(ctx, VersionEndpoint, nil, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.String()), nil
}
