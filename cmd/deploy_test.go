package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SpiceLabsHQ/stackrun/internal/cli"
	"github.com/SpiceLabsHQ/stackrun/internal/identity"
	"github.com/SpiceLabsHQ/stackrun/internal/stack"
	"github.com/SpiceLabsHQ/stackrun/internal/tags"
)

const testTemplate = "Resources:\n  Logs:\n    Type: AWS::S3::Bucket\n"

func testOwner() *identity.Owner {
	return &identity.Owner{
		Name:    "alice",
		ARN:     "arn:aws:iam::123456789012:user/alice",
		Account: "123456789012",
	}
}

func TestDeployCreatesStackAndSweepsBuckets(t *testing.T) {
	stacks := &fakeStacks{describes: []describeResult{notFound("web"), found("web", "CREATE_COMPLETE")}}
	events := &fakeEvents{batches: [][]stack.Event{{
		stackEv("web", "CREATE_IN_PROGRESS"),
		stackEv("web", "CREATE_COMPLETE"),
	}}}
	storage := &fakeStorage{buckets: map[string][]string{"web-logs-1a2b": nil, "web-site": {"index.html"}}}
	auditor := &fakeAuditor{}
	deps := &deployDeps{
		stacks:  stacks,
		events:  events,
		storage: storage,
		auditor: auditor,
		owner:   testOwner(),
		region:  "us-east-1",
	}

	tmpl := writeFile(t, "template.yaml", testTemplate)
	params := writeFile(t, "params.yaml", "Env: staging\nSize: 2\n")
	stdout, _, err := execute(t, newDeployCommandWithDeps(deps), nil, "",
		"web", "--template", tmpl, "--params-file", params, "--param", "Size=3", "--tag", "team=platform")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Deploying stack web...")
	assert.Contains(t, stdout, "  | Creating the stack...\n")
	assert.Contains(t, stdout, "  | CREATE_COMPLETE web\n")
	assert.Contains(t, stdout, "Stack web: CREATE_COMPLETE\n")
	assert.Contains(t, stdout, "Deleted orphan bucket web-logs-1a2b\n")
	assert.NotContains(t, stdout, "Warning")

	require.Len(t, stacks.requests, 1)
	req := stacks.requests[0]
	assert.Equal(t, "web", req.Name)
	assert.Equal(t, "us-east-1", req.Region)
	assert.Equal(t, testTemplate, req.Template.Body)
	assert.Equal(t, map[string]string{"Env": "staging", "Size": "3"}, req.Parameters)
	assert.Equal(t, "true", req.Tags[tags.TagManaged])
	assert.Equal(t, "alice", req.Tags[tags.TagOwner])
	assert.Equal(t, "platform", req.Tags["team"])

	require.Len(t, auditor.records, 1)
	assert.Equal(t, auditRecord{"deploy", "web", "arn:aws:iam::123456789012:user/alice", nil}, auditor.records[0])
	assert.True(t, auditor.closed)
}

func TestDeployNoOpJSON(t *testing.T) {
	stacks := &fakeStacks{
		describes: []describeResult{found("web", "UPDATE_COMPLETE")},
		updateErr: errors.New("ValidationError: No updates are to be performed."),
	}
	deps := &deployDeps{stacks: stacks, events: &fakeEvents{}}

	tmpl := writeFile(t, "template.yaml", testTemplate)
	stdout, stderr, err := execute(t, newDeployCommandWithDeps(deps), &cli.CLIContext{JSON: true}, "",
		"web", "--template", tmpl)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &result), "stdout must hold only the JSON document")
	assert.Equal(t, "web", result["stack_name"])
	assert.Equal(t, "UPDATE", result["action"])
	assert.Equal(t, true, result["no_op"])
	assert.Contains(t, stderr, "No resource updates are to be performed.")
}

func TestDeployWarnsOnRollback(t *testing.T) {
	stacks := &fakeStacks{describes: []describeResult{found("web", "UPDATE_COMPLETE")}}
	events := &fakeEvents{batches: [][]stack.Event{{
		stackEv("web", "UPDATE_IN_PROGRESS"),
		stackEv("web", "UPDATE_ROLLBACK_IN_PROGRESS"),
		stackEv("web", "UPDATE_ROLLBACK_COMPLETE"),
	}}}
	deps := &deployDeps{stacks: stacks, events: events}

	tmpl := writeFile(t, "template.yaml", testTemplate)
	stdout, _, err := execute(t, newDeployCommandWithDeps(deps), nil, "", "web", "--template", tmpl)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Stack web: UPDATE_ROLLBACK_COMPLETE\n")
	assert.Contains(t, stdout, "Warning: stack finished in UPDATE_ROLLBACK_COMPLETE")
}

func TestDeployRejectsBadInput(t *testing.T) {
	tmpl := writeFile(t, "template.yaml", testTemplate)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"malformed param", []string{"web", "--template", tmpl, "--param", "Size"}, "resolve parameters"},
		{"malformed tag", []string{"web", "--template", tmpl, "--tag", "team"}, "parse tags"},
		{"reserved tag", []string{"web", "--template", tmpl, "--tag", "stackrun:managed=false"}, "reserved prefix"},
		{"missing template file", []string{"web", "--template", tmpl + ".missing"}, "read template"},
		{"malformed s3 reference", []string{"web", "--template", "s3://bucket-only"}, "malformed S3 template reference"},
		{"no template flag", []string{"web"}, `required flag(s) "template" not set`},
		{"no stack name", []string{"--template", tmpl}, "accepts 1 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stacks := &fakeStacks{}
			deps := &deployDeps{stacks: stacks, events: &fakeEvents{}}

			_, _, err := execute(t, newDeployCommandWithDeps(deps), nil, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, stacks.calls, "no AWS calls on invalid input")
		})
	}
}

func TestDeployFailureIsAuditedAndReportedAsJSON(t *testing.T) {
	stacks := &fakeStacks{
		describes: []describeResult{notFound("web")},
		createErr: errors.New("InsufficientCapabilitiesException: Requires capabilities : [CAPABILITY_IAM]"),
	}
	auditor := &fakeAuditor{}
	deps := &deployDeps{stacks: stacks, events: &fakeEvents{}, auditor: auditor}

	tmpl := writeFile(t, "template.yaml", testTemplate)
	stdout, _, err := execute(t, newDeployCommandWithDeps(deps), &cli.CLIContext{JSON: true}, "",
		"web", "--template", tmpl)

	require.Error(t, err)
	assert.Empty(t, err.Error(), "the error was already written as JSON")

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &body))
	assert.Contains(t, body["error"], "CAPABILITY_IAM")

	require.Len(t, auditor.records, 1)
	assert.Equal(t, "deploy", auditor.records[0].command)
	assert.Error(t, auditor.records[0].err)
	assert.Equal(t, "", auditor.records[0].callerARN)
}

func TestDeployTemplateURLIsPassedThrough(t *testing.T) {
	stacks := &fakeStacks{describes: []describeResult{found("web", "UPDATE_COMPLETE")}}
	events := &fakeEvents{batches: [][]stack.Event{{stackEv("web", "UPDATE_COMPLETE")}}}
	deps := &deployDeps{stacks: stacks, events: events}

	_, _, err := execute(t, newDeployCommandWithDeps(deps), nil, "",
		"web", "--template", "s3://templates/web/main.yaml")
	require.NoError(t, err)

	require.Len(t, stacks.requests, 1)
	assert.Equal(t, stack.Template{URL: "https://templates.s3.amazonaws.com/web/main.yaml"}, stacks.requests[0].Template)
}

func TestDeployVerbosePrintsSteps(t *testing.T) {
	newDeps := func() *deployDeps {
		return &deployDeps{
			stacks:  &fakeStacks{describes: []describeResult{notFound("web"), found("web", "CREATE_COMPLETE")}},
			events:  &fakeEvents{batches: [][]stack.Event{{stackEv("web", "CREATE_COMPLETE")}}},
			storage: &fakeStorage{buckets: map[string][]string{"web-site": {"index.html"}}},
		}
	}
	tmpl := writeFile(t, "template.yaml", testTemplate)

	stdout, _, err := execute(t, newDeployCommandWithDeps(newDeps()), &cli.CLIContext{Verbose: true}, "",
		"web", "--template", tmpl, "--param", "Env=staging", "--param", "Size=3")
	require.NoError(t, err)
	assert.Contains(t, stdout, fmt.Sprintf("  | Template: inline body (%d bytes)\n", len(testTemplate)))
	assert.Contains(t, stdout, "  | Resolved 2 parameter(s) and ")
	assert.Contains(t, stdout, "  | Stack web does not exist.\n")
	assert.Contains(t, stdout, `  | Checking 1 bucket(s) matching "web": web-site`+"\n")
	assert.Contains(t, stdout, "  | Bucket web-site is not empty, keeping it.\n")

	stdout, _, err = execute(t, newDeployCommandWithDeps(newDeps()), nil, "",
		"web", "--template", tmpl, "--param", "Env=staging")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "Template:")
	assert.NotContains(t, stdout, "does not exist")
	assert.NotContains(t, stdout, "Checking")
}
