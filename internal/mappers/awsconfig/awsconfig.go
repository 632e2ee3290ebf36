// Package awsconfig builds an HDF report from the rules, compliance and evaluation results
// of the AWS Config service of one account and region.
package awsconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/configservice"
	"github.com/aws/aws-sdk-go/service/configservice/configserviceiface"

	"github.com/scan-io-git/hdf-tools/internal/aggregate"
	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/hdf"
	"github.com/scan-io-git/hdf-tools/internal/lookup"
	"github.com/scan-io-git/hdf-tools/internal/severity"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

const (
	Name        = "awsconfig"
	profileName = "AWS Config"

	// StartTimeLayout formats evaluation timestamps.
	StartTimeLayout = "2006-01-02T15:04:05-07:00"

	NotApplicableMessage    = "No AWS resources found to evaluate compliance for this rule"
	InsufficientDataMessage = "Not enough data has been collected to determine compliance yet."
	defaultFailMessage      = "Rule does not pass rule compliance"

	// UserProvided marks the tags taken from a custom mapping.
	UserProvided = " (user provided)"

	// AWS accepts at most 25 rule names per compliance request.
	complianceBatchSize = 25
	evaluationPageLimit = 100
)

// DefaultNistTags are used for rules neither mapping knows.
var DefaultNistTags = []string{lookup.Unmapped}

// rule is one config rule with its compliance and evaluation results.
type rule struct {
	name        string
	arn         string
	description string
	parameters  string
	compliance  string
	results     []hdf.Finding
}

// NewAPI creates an AWS Config client. Empty region and profile fall back to the SDK
// environment and shared config resolution.
func NewAPI(region, profile string) (configserviceiface.ConfigServiceAPI, error) {
	opts := session.Options{
		Profile:           profile,
		SharedConfigState: session.SharedConfigEnable,
	}
	if region != "" {
		opts.Config = aws.Config{Region: aws.String(region)}
	}
	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("unable to create aws session: %w", err)
	}
	return configservice.New(sess), nil
}

// Source converts the AWS Config rules of an account.
type Source struct {
	API configserviceiface.ConfigServiceAPI
	// CustomMapping is an optional CSV mapping rule names to NIST ids. Its tags are added
	// to the bundled ones and annotated as user provided.
	CustomMapping string
	// Now stamps synthesized results; time.Now when nil.
	Now func() time.Time
}

func (s *Source) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func wrapAWSError(op string, err error) error {
	if aerr, ok := err.(awserr.Error); ok {
		return fmt.Errorf("aws config %s: %s: %w", op, aerr.Code(), err)
	}
	return fmt.Errorf("aws config %s: %w", op, err)
}

func (s *Source) rules(ctx context.Context) ([]*rule, error) {
	var out []*rule
	input := &configservice.DescribeConfigRulesInput{}
	for {
		resp, err := s.API.DescribeConfigRulesWithContext(ctx, input)
		if err != nil {
			return nil, wrapAWSError("DescribeConfigRules", err)
		}
		for _, r := range resp.ConfigRules {
			out = append(out, &rule{
				name:        aws.StringValue(r.ConfigRuleName),
				arn:         aws.StringValue(r.ConfigRuleArn),
				description: aws.StringValue(r.Description),
				parameters:  aws.StringValue(r.InputParameters),
			})
		}
		if aws.StringValue(resp.NextToken) == "" {
			return out, nil
		}
		input.NextToken = resp.NextToken
	}
}

func (s *Source) addCompliance(ctx context.Context, rules []*rule) error {
	compliance := make(map[string]string, len(rules))
	for start := 0; start < len(rules); start += complianceBatchSize {
		end := start + complianceBatchSize
		if end > len(rules) {
			end = len(rules)
		}
		names := make([]*string, 0, end-start)
		for _, r := range rules[start:end] {
			names = append(names, aws.String(r.name))
		}

		input := &configservice.DescribeComplianceByConfigRuleInput{ConfigRuleNames: names}
		for {
			resp, err := s.API.DescribeComplianceByConfigRuleWithContext(ctx, input)
			if err != nil {
				return wrapAWSError("DescribeComplianceByConfigRule", err)
			}
			for _, c := range resp.ComplianceByConfigRules {
				if c.Compliance != nil {
					compliance[aws.StringValue(c.ConfigRuleName)] = aws.StringValue(c.Compliance.ComplianceType)
				}
			}
			if aws.StringValue(resp.NextToken) == "" {
				break
			}
			input.NextToken = resp.NextToken
		}
	}
	for _, r := range rules {
		r.compliance = compliance[r.name]
	}
	return nil
}

func (s *Source) addResults(ctx context.Context, r *rule) error {
	input := &configservice.GetComplianceDetailsByConfigRuleInput{
		ConfigRuleName: aws.String(r.name),
		Limit:          aws.Int64(evaluationPageLimit),
	}
	for {
		resp, err := s.API.GetComplianceDetailsByConfigRuleWithContext(ctx, input)
		if err != nil {
			return wrapAWSError("GetComplianceDetailsByConfigRule "+r.name, err)
		}
		for _, e := range resp.EvaluationResults {
			r.results = append(r.results, evaluationFinding(e))
		}
		if aws.StringValue(resp.NextToken) == "" {
			return nil
		}
		input.NextToken = resp.NextToken
	}
}

// qualifier renders the resource an evaluation is about.
func qualifier(e *configservice.EvaluationResult) string {
	if e.EvaluationResultIdentifier == nil || e.EvaluationResultIdentifier.EvaluationResultQualifier == nil {
		return ""
	}
	q := e.EvaluationResultIdentifier.EvaluationResultQualifier
	var parts []string
	for _, kv := range []struct {
		key   string
		value *string
	}{
		{"config_rule_name", q.ConfigRuleName},
		{"resource_type", q.ResourceType},
		{"resource_id", q.ResourceId},
	} {
		if kv.value != nil {
			parts = append(parts, kv.key+": "+*kv.value)
		}
	}
	return strings.Join(parts, ", ")
}

func evaluationFinding(e *configservice.EvaluationResult) hdf.Finding {
	f := hdf.Finding{CodeDesc: qualifier(e)}
	if e.ConfigRuleInvokedTime != nil {
		f.StartTime = e.ConfigRuleInvokedTime.Format(StartTimeLayout)
		if e.ResultRecordedTime != nil {
			d := e.ResultRecordedTime.Sub(*e.ConfigRuleInvokedTime).Seconds()
			f.RunTime = math.Round(d*1e6) / 1e6
		}
	}

	switch aws.StringValue(e.ComplianceType) {
	case configservice.ComplianceTypeCompliant:
		f.Status = hdf.StatusPassed
	case configservice.ComplianceTypeNonCompliant:
		f.Status = hdf.StatusFailed
		annotation := aws.StringValue(e.Annotation)
		if annotation == "" {
			annotation = defaultFailMessage
		}
		f.Message = fmt.Sprintf("(%s): %s", f.CodeDesc, annotation)
	default:
		f.Status = hdf.StatusSkipped
	}
	return f
}

// checkText is the rule arn followed by its input parameters.
func checkText(r *rule) (string, error) {
	text := r.arn
	if r.parameters == "" {
		return text, nil
	}
	params := map[string]any{}
	if err := json.Unmarshal([]byte(r.parameters), &params); err != nil {
		return "", errors.NewParseError(Name+" rule "+r.name+" input parameters", err)
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		text += fmt.Sprintf("<br/>%s: %v", k, params[k])
	}
	return text, nil
}

type adapter struct{}

func (adapter) ControlID(r *rule) (string, error) {
	if r.name == "" {
		return "", errors.NewSchemaError(Name, r.arn, "config_rule_name")
	}
	return r.name, nil
}

func (adapter) Findings(r *rule) ([]hdf.Finding, error) { return r.results, nil }
func (adapter) Classifiers(r *rule) []string             { return []string{r.name} }
func (adapter) Severity(*rule) string                    { return "" }

func (adapter) Describe(r *rule) aggregate.Metadata {
	// checkText was validated before aggregation.
	check, _ := checkText(r)
	return aggregate.Metadata{
		Title:          r.name,
		Desc:           r.description,
		Descriptions:   []hdf.Description{{Label: "check", Data: check}},
		SourceLocation: hdf.SourceLocation{Ref: r.arn, Line: 1},
	}
}

func (s *Source) resolver(opts converter.Options) (*lookup.Resolver, error) {
	bundled, err := opts.Table(lookup.AWSConfigMapping, lookup.AWSConfigOptions)
	if err != nil {
		return nil, err
	}
	sources := []lookup.Source{{Table: bundled}}
	if s.CustomMapping != "" {
		custom, err := lookup.LoadFile(s.CustomMapping, lookup.Annotated(lookup.AWSConfigOptions, UserProvided))
		if err != nil {
			return nil, err
		}
		sources = append(sources, lookup.Source{Table: custom})
	}
	return lookup.NewResolver(opts.DefaultTags(DefaultNistTags), sources...), nil
}

// Convert collects every config rule of the account and converts it into one report.
func (s *Source) Convert(ctx context.Context, opts converter.Options) ([]converter.Target, error) {
	log := opts.Log()

	resolver, err := s.resolver(opts)
	if err != nil {
		return nil, err
	}

	rules, err := s.rules(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("fetched aws config rules", "rules", len(rules))
	if err := s.addCompliance(ctx, rules); err != nil {
		return nil, err
	}
	for i, r := range rules {
		if _, err := checkText(r); err != nil {
			return nil, err
		}
		if err := s.addResults(ctx, r); err != nil {
			return nil, err
		}
		log.Trace("fetched evaluation results", "rule", r.name, "results", len(r.results), "compliance", r.compliance)
		if opts.Progress != nil {
			opts.Progress(i+1, len(rules))
		}
	}

	now := s.now().Format(StartTimeLayout)
	controls, err := aggregate.Aggregate(rules, adapter{}, aggregate.Options[*rule]{
		Source:   Name,
		Severity: severity.MustFor(severity.AWSConfig),
		Tags:     resolver,
		EmptyResult: func(r *rule) hdf.Finding {
			msg := aggregate.DefaultEmptyMessage
			switch r.compliance {
			case configservice.ComplianceTypeNotApplicable:
				msg = NotApplicableMessage
			case configservice.ComplianceTypeInsufficientData:
				msg = InsufficientDataMessage
			}
			return hdf.Finding{CodeDesc: msg, SkipMessage: msg, StartTime: now}
		},
		ImpactOverride: func(r *rule) (float64, bool) {
			if len(r.results) == 0 && r.compliance == configservice.ComplianceTypeNotApplicable {
				return 0, true
			}
			return 0, false
		},
	})
	if err != nil {
		return nil, err
	}

	out, err := hdf.Assemble(hdf.ProfileMeta{
		Name:       profileName,
		Title:      profileName,
		Summary:    profileName,
		Statistics: map[string]any{"aws_config_sdk_version": aws.SDKVersion},
	}, controls)
	if err != nil {
		return nil, err
	}
	return converter.Single(out), nil
}
