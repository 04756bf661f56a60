package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator replays queued replies; an empty queue fails the call.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	prompts []string
}

func (g *scriptedGenerator) reply(s ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies = append(g.replies, s...)
}

func (g *scriptedGenerator) Generate(_ context.Context, _, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if len(g.replies) == 0 {
		return "", errors.New("model unavailable")
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r, nil
}

func TestGenerateTestsSavesFencedReply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	p := f.project(t, owner, nil)

	f.gen.reply("Here you go:\n```json\n[\n  {\n    \"title\": \"Reject expired card\", // negative path\n    \"steps\": [{\"step_number\": 1, \"description\": \"enter card\", \"expected_result\": \"error shown\"},],\n    \"tags\": [\"payments\"],\n    \"test_data\": {\"card\": \"4000\"}\n  }\n]\n```")

	cases, err := f.svc.AI.GenerateTests(ctx, owner, GenerateTestsInput{
		Prompt: "card payments", TestType: domain.TestTypeSecurity, Priority: domain.PriorityHigh,
		Count: 1, ProjectID: p.ID, Save: true,
	})
	require.NoError(t, err)
	require.Len(t, cases, 1)
	tc := cases[0]
	assert.NotEmpty(t, tc.ID)
	assert.True(t, tc.AIGenerated)
	assert.Equal(t, domain.TestTypeSecurity, tc.TestType)
	assert.Equal(t, domain.PriorityHigh, tc.Priority)
	assert.Equal(t, []string{"payments"}, tc.Tags)
	require.Len(t, tc.Steps, 1)
	assert.JSONEq(t, `{"card":"4000"}`, string(tc.TestData))

	stored, err := f.svc.TestCases.Get(ctx, owner, tc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reject expired card", stored.Title)
}

func TestGenerateTestsFailureYieldsEmptyList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")

	cases, err := f.svc.AI.GenerateTests(ctx, owner, GenerateTestsInput{Prompt: "anything"})
	require.NoError(t, err)
	assert.Empty(t, cases)

	f.gen.reply("I cannot help with that.")
	cases, err = f.svc.AI.GenerateTests(ctx, owner, GenerateTestsInput{Prompt: "anything"})
	require.NoError(t, err)
	assert.Empty(t, cases)

	_, err = f.svc.AI.GenerateTests(ctx, owner, GenerateTestsInput{Prompt: "anything", Count: 11})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.AI.GenerateTests(ctx, owner, GenerateTestsInput{Prompt: "anything", Save: true})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGenerateTestsDraftsAreNotStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	p := f.project(t, owner, nil)

	f.gen.reply(`{"title": "Single object reply", "steps": [{"description": "do it"}]}`)
	cases, err := f.svc.AI.GenerateTests(ctx, owner, GenerateTestsInput{Prompt: "x", Count: 2})
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Empty(t, cases[0].ID)
	assert.Equal(t, "Single object reply", cases[0].Title)

	stored, err := f.svc.TestCases.List(ctx, owner, TestCaseQuery{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDebugFailureStoresAnalysis(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	p := f.project(t, owner, nil)
	tc := f.testCase(t, owner, p.ID, "Checkout")
	exec, err := f.svc.Executions.Create(ctx, owner, CreateExecutionInput{TestCaseID: tc.ID, Status: domain.ExecutionFailed})
	require.NoError(t, err)

	f.gen.reply(`{"success": true, "analysis": "selector changed", "suggestions": ["update locator"], "confidence": 0.8}`)
	res, err := f.svc.AI.DebugFailure(ctx, owner, DebugFailureInput{ExecutionID: exec.ID, ErrorDescription: "element not found"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"update locator"}, res.Suggestions)

	got, err := f.svc.Executions.Get(ctx, owner, exec.ID)
	require.NoError(t, err)
	var stored domain.FailureAnalysis
	require.NoError(t, json.Unmarshal(got.AIAnalysis, &stored))
	assert.Equal(t, "selector changed", stored.Analysis)

	res, err = f.svc.AI.DebugFailure(ctx, owner, DebugFailureInput{ExecutionID: exec.ID})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.Suggestions)
	assert.Zero(t, res.Confidence)

	_, err = f.svc.AI.DebugFailure(ctx, owner, DebugFailureInput{ExecutionID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// failingGenerator fails every call with a provider style error.
type failingGenerator struct{ err error }

func (g failingGenerator) Generate(context.Context, string, string) (string, error) {
	return "", g.err
}

func TestDebugFailureHidesProviderError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.AI.gen = failingGenerator{err: errors.New("error, status code: 401, message: Incorrect API key provided: sk-live-SECRET")}
	owner := f.register(t, "owner@example.com")
	p := f.project(t, owner, nil)
	tc := f.testCase(t, owner, p.ID, "Login")
	exec, err := f.svc.Executions.Create(ctx, owner, CreateExecutionInput{TestCaseID: tc.ID, Status: domain.ExecutionFailed})
	require.NoError(t, err)

	res, err := f.svc.AI.DebugFailure(ctx, owner, DebugFailureInput{ExecutionID: exec.ID})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "AI debugging failed", res.Analysis)
	assert.NotContains(t, res.Analysis, "sk-live-SECRET")
	assert.NotContains(t, res.Analysis, "401")
	assert.Equal(t, []string{}, res.Suggestions)
	assert.Zero(t, res.Confidence)

	got, err := f.svc.Executions.Get(ctx, owner, exec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AIAnalysis)
}

func TestPrioritizeKeepsEveryKnownID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	p := f.project(t, owner, nil)
	a := f.testCase(t, owner, p.ID, "A")
	b := f.testCase(t, owner, p.ID, "B")
	c := f.testCase(t, owner, p.ID, "C")

	f.gen.reply(`["` + c.ID + `", "invented", "` + a.ID + `"]`)
	order, err := f.svc.AI.Prioritize(ctx, owner, PrioritizeInput{TestCaseIDs: []string{a.ID, b.ID, c.ID}, Context: "release"})
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, order)

	order, err = f.svc.AI.Prioritize(ctx, owner, PrioritizeInput{TestCaseIDs: []string{b.ID, a.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, order, "failure keeps the original order")
}

func TestInsightsAndImprovementsFallBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	p := f.project(t, owner, nil)
	tc := f.testCase(t, owner, p.ID, "Search")

	empty, err := f.svc.AI.Insights(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, empty.Insights)

	_, err = f.svc.Executions.Create(ctx, owner, CreateExecutionInput{TestCaseID: tc.ID, Status: domain.ExecutionFailed})
	require.NoError(t, err)

	failed, err := f.svc.AI.Insights(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, failed.Insights)
	assert.NotEmpty(t, failed.Summary)

	f.gen.reply(`{"insights": [{"type": "issue", "title": "Flaky search", "severity": "high"}], "summary": "unstable", "recommendations": ["retry"]}`)
	got, err := f.svc.AI.Insights(ctx, owner)
	require.NoError(t, err)
	require.Len(t, got.Insights, 1)
	assert.Equal(t, "Flaky search", got.Insights[0].Title)

	tips, err := f.svc.AI.SuggestImprovements(ctx, owner, tc.ID)
	require.NoError(t, err)
	assert.Empty(t, tips)

	f.gen.reply("```\n[\"add waits\", \"split the case\",]\n```")
	tips, err = f.svc.AI.SuggestImprovements(ctx, owner, tc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"add waits", "split the case"}, tips)
}

func TestMergeOrder(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, mergeOrder([]string{"b", "x", "b", "a"}, []string{"a", "b", "c"}))
	assert.Equal(t, []string{"a", "b"}, mergeOrder(nil, []string{"a", "b"}))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`},
		{"fenced block with prose", "intro\n```json\n{\"a\": 1}\n```\n**done**", `{"a": 1}`},
		{"url survives", `{"url": "http://example.com/x"} // trailing`, `{"url": "http://example.com/x"}`},
		{"comments and trailing commas", "{\n  \"items\": [\n    \"one\", // first\n    \"two\",\n  ]\n}", "{\n  \"items\": [\n    \"one\",\n    \"two\"]\n}"},
		{"commas inside strings survive", `{"analysis": "expected [a, b, ] got {x, }",}`, `{"analysis": "expected [a, b, ] got {x, }"}`},
		{"escaped quote before comma", `{"a": "say \"hi\", ]", "b": [1, 2, ],}`, `{"a": "say \"hi\", ]", "b": [1, 2]}`},
		{"no json", "just words", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractObject(tt.input)
			assert.Equal(t, tt.want, got)
			if tt.want != "" {
				assert.True(t, json.Valid([]byte(got)))
			}
		})
	}
}

func TestDecodeArrayPrefersLeadingObject(t *testing.T) {
	out, err := decodeArray[generatedCase](`{"title": "one", "steps": [{"description": "s"}]}`)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "one", out[0].Title)

	ids, err := decodeArray[string]("ranked:\n[\"a\", \"b\"]")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, err = decodeArray[string]("nothing here")
	assert.Error(t, err)
}
