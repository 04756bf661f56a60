package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

const (
	maxGeneratedTests = 10
	insightWindow     = 50
	improvementWindow = 20
)

var errGeneratorDisabled = errors.New("text generation is not configured")

// AIService builds prompts, calls the text generator outside any
// transaction and parses its replies. Generator failures degrade to a
// fallback result instead of an error.
type AIService struct {
	*core
	gen domain.TextGenerator
}

type GenerateTestsInput struct {
	Prompt    string          `json:"prompt"`
	TestType  domain.TestType `json:"test_type"`
	Priority  domain.Priority `json:"priority"`
	Count     int             `json:"count"`
	ProjectID string          `json:"project_id"`
	Save      bool            `json:"save"`
}

type DebugFailureInput struct {
	ExecutionID      string `json:"execution_id"`
	ErrorDescription string `json:"error_description"`
	Logs             string `json:"logs"`
}

type PrioritizeInput struct {
	TestCaseIDs []string `json:"test_case_ids"`
	Context     string   `json:"context"`
}

const generateSystem = `You are an expert QA engineer specialized in creating comprehensive test cases.
Generate %d detailed test case(s) for %s testing with %s priority.

Your response must be a valid JSON array of test cases with this structure:
{
  "title": "Clear test case title",
  "description": "Detailed description of what this test validates",
  "steps": [{"step_number": 1, "description": "Detailed step description", "expected_result": "Expected outcome for this step"}],
  "expected_result": "Overall expected result",
  "prerequisites": "Any prerequisites or setup needed",
  "tags": ["relevant", "tags"],
  "test_data": {"key": "value pairs for test data"}
}

Make the test cases comprehensive, realistic, and cover edge cases when appropriate.`

const debugSystem = `You are an expert QA engineer and debugging specialist.
Analyze test failures and provide clear, actionable debugging insights.

Your response must be a valid JSON object with this structure:
{"success": true, "analysis": "Clear explanation of what went wrong", "suggestions": ["Specific actionable suggestions"], "confidence": 0.85}

Focus on practical solutions and root cause analysis.`

const prioritizeSystem = `You are an expert QA strategist specializing in test prioritization.
Analyze the given context and test cases to determine optimal execution order.

Your response must be a valid JSON array containing test case IDs in priority order:
["test_case_id_1", "test_case_id_2", "test_case_id_3"]

Consider risk, the impact of potential failures, dependencies between tests and context-specific requirements.`

const insightsSystem = `You are an expert QA analyst specialized in test analytics and insights.
Analyze test execution data to provide valuable insights and recommendations.

Your response must be a valid JSON object with this structure:
{
  "insights": [{"type": "trend|issue|recommendation", "title": "Insight title", "description": "Detailed insight description", "severity": "low|medium|high", "action_items": ["actionable recommendations"]}],
  "summary": "Overall summary of test health",
  "recommendations": ["High-level strategic recommendations"]
}`

const improveSystem = `You are an expert QA engineer specializing in test optimization.
Analyze test cases and their execution history to suggest improvements.

Your response must be a valid JSON array containing specific improvement suggestions:
["Suggestion 1", "Suggestion 2", "Suggestion 3"]

Focus on actionable improvements that can enhance test reliability and effectiveness.`

type generatedCase struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Steps          []StepInput     `json:"steps"`
	ExpectedResult string          `json:"expected_result"`
	Prerequisites  string          `json:"prerequisites"`
	Tags           []string        `json:"tags"`
	TestData       json.RawMessage `json:"test_data"`
}

// GenerateTests asks the generator for up to Count test cases. With Save and
// a ProjectID the cases are stored in one transaction. A generator failure
// yields an empty list.
func (s *AIService) GenerateTests(ctx context.Context, actor domain.User, in GenerateTestsInput) ([]domain.TestCase, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Prompt == "" {
		return nil, domain.Invalid("prompt is required")
	}
	if in.Count == 0 {
		in.Count = 1
	}
	if in.Count < 1 || in.Count > maxGeneratedTests {
		return nil, domain.Invalid("count must be between 1 and %d", maxGeneratedTests)
	}
	if in.TestType == "" {
		in.TestType = domain.TestTypeFunctional
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.TestType.Valid() {
		return nil, domain.Invalid("unknown test_type %q", in.TestType)
	}
	if !in.Priority.Valid() {
		return nil, domain.Invalid("unknown priority %q", in.Priority)
	}
	if in.Save && in.ProjectID == "" {
		return nil, domain.Invalid("project_id is required to save generated tests")
	}
	if in.ProjectID != "" {
		if _, err := readableProject(ctx, s.repo, in.ProjectID, actor.ID); err != nil {
			return nil, asMissingRef(err, "project")
		}
	}

	reply, err := s.generate(ctx, fmt.Sprintf(generateSystem, in.Count, in.TestType, in.Priority), in.Prompt)
	if err != nil {
		s.logger.Warn("generate test cases", "err", err)
		return []domain.TestCase{}, nil
	}
	generated, err := decodeArray[generatedCase](reply)
	if err != nil {
		s.logger.Warn("parse generated test cases", "err", err)
		return []domain.TestCase{}, nil
	}
	if len(generated) > in.Count {
		generated = generated[:in.Count]
	}

	inputs := make([]CreateTestCaseInput, 0, len(generated))
	stepsets := make([][]domain.TestStep, 0, len(generated))
	for _, g := range generated {
		ci := CreateTestCaseInput{
			Title:              g.Title,
			Description:        g.Description,
			ProjectID:          in.ProjectID,
			TestType:           in.TestType,
			Priority:           in.Priority,
			Status:             domain.StatusDraft,
			ExpectedResult:     g.ExpectedResult,
			Tags:               g.Tags,
			AIGenerated:        true,
			SelfHealingEnabled: true,
			Prerequisites:      g.Prerequisites,
			TestData:           g.TestData,
			Steps:              g.Steps,
		}
		steps, err := ci.normalize()
		if err != nil {
			s.logger.Warn("discard generated test case", "title", g.Title, "err", err)
			continue
		}
		inputs = append(inputs, ci)
		stepsets = append(stepsets, steps)
	}

	if !in.Save {
		return draftCases(inputs, stepsets, actor.ID), nil
	}

	cases := make([]domain.TestCase, 0, len(inputs))
	entries := make([]domain.ActivityLog, 0, len(inputs))
	tcs := &TestCaseService{core: s.core}
	err = s.repo.InTx(ctx, func(tx domain.Repository) error {
		for i := range inputs {
			tc, entry, err := tcs.create(ctx, tx, actor, inputs[i], stepsets[i])
			if err != nil {
				return err
			}
			cases = append(cases, tc)
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, tc := range cases {
		s.emit(ctx, actor.ID, domain.ChannelTestCase, "test_case_created", tc.ProjectID, tc)
		s.emitActivity(ctx, entries[i])
	}
	return cases, nil
}

func draftCases(inputs []CreateTestCaseInput, stepsets [][]domain.TestStep, actorID string) []domain.TestCase {
	out := make([]domain.TestCase, 0, len(inputs))
	for i, in := range inputs {
		tags := in.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, domain.TestCase{
			Title:              in.Title,
			Description:        in.Description,
			ProjectID:          in.ProjectID,
			TestType:           in.TestType,
			Priority:           in.Priority,
			Status:             in.Status,
			ExpectedResult:     in.ExpectedResult,
			CreatedBy:          actorID,
			Tags:               tags,
			AIGenerated:        true,
			SelfHealingEnabled: in.SelfHealingEnabled,
			Prerequisites:      in.Prerequisites,
			TestData:           in.TestData,
			Steps:              stepsets[i],
		})
	}
	return out
}

// DebugFailure analyzes a failed execution and stores a successful analysis
// on it.
func (s *AIService) DebugFailure(ctx context.Context, actor domain.User, in DebugFailureInput) (domain.FailureAnalysis, error) {
	if in.ExecutionID == "" {
		return domain.FailureAnalysis{}, domain.Invalid("execution_id is required")
	}
	exec, _, err := readableExecution(ctx, s.repo, in.ExecutionID, actor.ID)
	if err != nil {
		return domain.FailureAnalysis{}, err
	}
	tc, err := s.repo.GetTestCase(ctx, exec.TestCaseID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.FailureAnalysis{}, err
	}

	errText := in.ErrorDescription
	if errText == "" {
		errText = exec.ErrorMessage
	}
	logs := in.Logs
	if logs == "" {
		logs = exec.Logs
	}
	if logs == "" {
		logs = "No logs available"
	}
	prompt := fmt.Sprintf("Test Case: %s\nDescription: %s\nTest Type: %s\n\nSteps:\n%s\n\nError Message: %s\n\nLogs: %s\n\nPlease analyze this test failure and provide debugging insights.",
		tc.Title, tc.Description, tc.TestType, indentJSON(stepSummaries(tc.Steps)), errText, logs)

	var analysis domain.FailureAnalysis
	reply, err := s.generate(ctx, debugSystem, prompt)
	if err == nil {
		err = decodeObject(reply, &analysis)
	}
	if err != nil {
		s.logger.Warn("debug test failure", "execution_id", exec.ID, "err", err)
		return domain.FailureAnalysis{
			Success:     false,
			Analysis:    "AI debugging failed",
			Suggestions: []string{},
			Confidence:  0,
		}, nil
	}
	if analysis.Suggestions == nil {
		analysis.Suggestions = []string{}
	}

	raw, err := json.Marshal(analysis)
	if err != nil {
		return domain.FailureAnalysis{}, domain.Internal("encode analysis", err)
	}
	err = s.repo.InTx(ctx, func(tx domain.Repository) error {
		current, err := tx.GetExecution(ctx, exec.ID)
		if err != nil {
			return err
		}
		current.AIAnalysis = raw
		_, err = tx.UpdateExecution(ctx, current)
		return err
	})
	if err != nil {
		return domain.FailureAnalysis{}, err
	}
	return analysis, nil
}

// Prioritize orders the given test cases. Ids the generator invents are
// dropped and ids it omits are appended in their original order.
func (s *AIService) Prioritize(ctx context.Context, actor domain.User, in PrioritizeInput) ([]string, error) {
	ids := dedupe(in.TestCaseIDs)
	if len(ids) == 0 {
		return nil, domain.Invalid("test_case_ids is required")
	}
	summaries := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		tc, err := readableTestCase(ctx, s.repo, id, actor.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, map[string]any{
			"id": tc.ID, "title": tc.Title, "description": tc.Description,
			"type": tc.TestType, "priority": tc.Priority, "tags": tc.Tags,
		})
	}

	prompt := fmt.Sprintf("Context: %s\n\nTest Cases to Prioritize:\n%s\n\nReturn only the test case IDs in the optimal execution order.",
		in.Context, indentJSON(summaries))
	reply, err := s.generate(ctx, prioritizeSystem, prompt)
	if err != nil {
		s.logger.Warn("prioritize test cases", "err", err)
		return ids, nil
	}
	ranked, err := decodeArray[string](reply)
	if err != nil {
		s.logger.Warn("parse prioritized ids", "err", err)
		return ids, nil
	}
	return mergeOrder(ranked, ids), nil
}

// mergeOrder keeps the ranked ids that are known, then appends the rest of
// known in order.
func mergeOrder(ranked, known []string) []string {
	valid := make(map[string]bool, len(known))
	for _, id := range known {
		valid[id] = true
	}
	out := make([]string, 0, len(known))
	used := make(map[string]bool, len(known))
	for _, id := range ranked {
		if valid[id] && !used[id] {
			out = append(out, id)
			used[id] = true
		}
	}
	for _, id := range known {
		if !used[id] {
			out = append(out, id)
		}
	}
	return out
}

// Insights summarizes the most recent executions the actor can see.
func (s *AIService) Insights(ctx context.Context, actor domain.User) (domain.TestInsights, error) {
	ids, err := s.repo.AccessibleProjectIDs(ctx, actor.ID)
	if err != nil {
		return domain.TestInsights{}, err
	}
	execs, err := s.repo.ListExecutions(ctx, domain.ExecutionFilter{ProjectIDs: ids, ExecutedBy: actor.ID}, domain.Page{Limit: insightWindow})
	if err != nil {
		return domain.TestInsights{}, err
	}
	if len(execs) == 0 {
		return domain.TestInsights{
			Insights:        []domain.Insight{},
			Summary:         "No test executions to analyze yet",
			Recommendations: []string{},
		}, nil
	}

	prompt := fmt.Sprintf("Test Execution Data:\n%s\n\nPlease analyze this test execution data and provide insights about performance trends, common failure patterns, areas needing attention and recommendations for improvement.",
		indentJSON(executionSummaries(execs)))
	var out domain.TestInsights
	reply, err := s.generate(ctx, insightsSystem, prompt)
	if err == nil {
		err = decodeObject(reply, &out)
	}
	if err != nil {
		s.logger.Warn("generate test insights", "err", err)
		return domain.TestInsights{
			Insights:        []domain.Insight{},
			Summary:         "Unable to generate insights due to AI analysis error",
			Recommendations: []string{},
		}, nil
	}
	if out.Insights == nil {
		out.Insights = []domain.Insight{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	return out, nil
}

// SuggestImprovements reviews a test case against its recent runs.
func (s *AIService) SuggestImprovements(ctx context.Context, actor domain.User, testCaseID string) ([]string, error) {
	tc, err := readableTestCase(ctx, s.repo, testCaseID, actor.ID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListExecutions(ctx, domain.ExecutionFilter{ProjectIDs: []string{tc.ProjectID}, TestCaseID: tc.ID}, domain.Page{Limit: improvementWindow})
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("Test Case: %s\nDescription: %s\nType: %s\n\nSteps:\n%s\n\nExecution History:\n%s\n\nPlease suggest specific improvements for this test case based on its execution history.",
		tc.Title, tc.Description, tc.TestType, indentJSON(stepSummaries(tc.Steps)), indentJSON(executionSummaries(history)))
	reply, err := s.generate(ctx, improveSystem, prompt)
	if err != nil {
		s.logger.Warn("suggest test improvements", "test_case_id", tc.ID, "err", err)
		return []string{}, nil
	}
	out, err := decodeArray[string](reply)
	if err != nil {
		s.logger.Warn("parse improvement suggestions", "test_case_id", tc.ID, "err", err)
		return []string{}, nil
	}
	return out, nil
}

func (s *AIService) generate(ctx context.Context, system, prompt string) (string, error) {
	if s.gen == nil {
		return "", errGeneratorDisabled
	}
	return s.gen.Generate(ctx, system, prompt)
}

func stepSummaries(steps []domain.TestStep) []map[string]any {
	out := make([]map[string]any, 0, len(steps))
	for _, st := range steps {
		out = append(out, map[string]any{
			"step_number": st.StepNumber, "description": st.Description, "expected_result": st.ExpectedResult,
		})
	}
	return out
}

func executionSummaries(execs []domain.TestExecution) []map[string]any {
	out := make([]map[string]any, 0, len(execs))
	for _, e := range execs {
		out = append(out, map[string]any{
			"test_case_id": e.TestCaseID, "status": e.Status, "duration": e.Duration,
			"error_message": e.ErrorMessage, "created_at": e.CreatedAt,
		})
	}
	return out
}

func indentJSON(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
