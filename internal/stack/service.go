package stack

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	sraws "github.com/SpiceLabsHQ/stackrun/internal/aws"
)

// Service issues stack create, update, delete and describe calls against
// CloudFormation. Errors that signal a missing stack or an empty update are
// returned wrapping ErrNotFound and ErrNoUpdates.
type Service struct {
	cfn sraws.CloudFormationAPI
}

// NewService constructs a Service backed by the given CloudFormation client.
func NewService(cfn sraws.CloudFormationAPI) *Service {
	return &Service{cfn: cfn}
}

// Create submits a CreateStack request. Capabilities required by the
// template are requested automatically.
func (s *Service) Create(ctx context.Context, req Request) error {
	summary, err := s.templateSummary(ctx, req.Template)
	if err != nil {
		return err
	}

	_, err = s.cfn.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(req.Name),
		TemplateBody: optionalString(req.Template.Body),
		TemplateURL:  optionalString(req.Template.URL),
		Parameters:   buildParameters(req.Parameters, nil, nil),
		Capabilities: summary.capabilities,
		Tags:         buildTags(req.Tags),
	})
	if err != nil {
		return fmt.Errorf("create stack %q: %w", req.Name, translateError(err))
	}
	return nil
}

// Update submits an UpdateStack request. Parameters the template declares
// but the request omits keep their previous values.
func (s *Service) Update(ctx context.Context, req Request) error {
	summary, err := s.templateSummary(ctx, req.Template)
	if err != nil {
		return err
	}

	var previous map[string]string
	existing, err := s.Describe(ctx, req.Name)
	if err != nil {
		return err
	}
	if len(existing) == 1 {
		previous = existing[0].Parameters
	}

	_, err = s.cfn.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(req.Name),
		TemplateBody: optionalString(req.Template.Body),
		TemplateURL:  optionalString(req.Template.URL),
		Parameters:   buildParameters(req.Parameters, summary.declared, previous),
		Capabilities: summary.capabilities,
		Tags:         buildTags(req.Tags),
	})
	if err != nil {
		return fmt.Errorf("update stack %q: %w", req.Name, translateError(err))
	}
	return nil
}

// Delete submits a DeleteStack request.
func (s *Service) Delete(ctx context.Context, req Request) error {
	_, err := s.cfn.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(req.Name),
	})
	if err != nil {
		return fmt.Errorf("delete stack %q: %w", req.Name, translateError(err))
	}
	return nil
}

// Describe returns every stack CloudFormation reports for name. A missing
// stack is an error wrapping ErrNotFound, not an empty slice.
func (s *Service) Describe(ctx context.Context, name string) ([]Summary, error) {
	out, err := s.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("describe stack %q: %w", name, translateError(err))
	}

	summaries := make([]Summary, 0, len(out.Stacks))
	for _, st := range out.Stacks {
		params := make(map[string]string, len(st.Parameters))
		for _, p := range st.Parameters {
			params[aws.ToString(p.ParameterKey)] = aws.ToString(p.ParameterValue)
		}
		summaries = append(summaries, Summary{
			Name:         aws.ToString(st.StackName),
			ID:           aws.ToString(st.StackId),
			Status:       string(st.StackStatus),
			StatusReason: aws.ToString(st.StackStatusReason),
			Parameters:   params,
		})
	}
	return summaries, nil
}

type templateSummary struct {
	capabilities []cftypes.Capability
	declared     []string
}

func (s *Service) templateSummary(ctx context.Context, t Template) (templateSummary, error) {
	out, err := s.cfn.GetTemplateSummary(ctx, &cloudformation.GetTemplateSummaryInput{
		TemplateBody: optionalString(t.Body),
		TemplateURL:  optionalString(t.URL),
	})
	if err != nil {
		return templateSummary{}, fmt.Errorf("validate template: %w", err)
	}

	declared := make([]string, 0, len(out.Parameters))
	for _, p := range out.Parameters {
		declared = append(declared, aws.ToString(p.ParameterKey))
	}
	return templateSummary{capabilities: out.Capabilities, declared: declared}, nil
}

// buildParameters converts supplied values to CloudFormation parameters in
// key order. Declared keys that are not supplied but exist in previous are
// sent with UsePreviousValue.
func buildParameters(supplied map[string]string, declared []string, previous map[string]string) []cftypes.Parameter {
	var params []cftypes.Parameter
	for _, k := range slices.Sorted(maps.Keys(supplied)) {
		params = append(params, cftypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(supplied[k]),
		})
	}

	reuse := make([]string, 0, len(declared))
	for _, k := range declared {
		if _, ok := supplied[k]; ok {
			continue
		}
		if _, ok := previous[k]; ok {
			reuse = append(reuse, k)
		}
	}
	slices.Sort(reuse)
	for _, k := range reuse {
		params = append(params, cftypes.Parameter{
			ParameterKey:     aws.String(k),
			UsePreviousValue: aws.Bool(true),
		})
	}
	return params
}

func buildTags(tags map[string]string) []cftypes.Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]cftypes.Tag, 0, len(tags))
	for _, k := range slices.Sorted(maps.Keys(tags)) {
		out = append(out, cftypes.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
