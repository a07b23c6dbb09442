// Package execution implements the Execution Subgraph: a coordinator that
// runs one Category Subgraph per execution_plan entry and merges the
// results, grounded on this codebase's Activities-struct pattern.
package execution

import (
	"context"
	"time"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	"github.com/SafwanAhmed08/DeplAI/internal/toolruntime"
)

// lowConfidenceThreshold is the Conditional Evaluator's avg-confidence cutoff.
const lowConfidenceThreshold = 0.6

// maxParallelCategories bounds the worker pool used to fan out categories.
const maxParallelCategories = 4

// Coordinator runs Category Subgraphs for an execution plan.
type Coordinator struct {
	Runner *toolruntime.Runner
}

// Run validates the plan is non-empty, then executes a Category Subgraph for
// each entry (bounded concurrency), returning layer6_results in plan order.
// An empty or misaligned plan yields an empty result set, per the
// Coordinator's default route straight to the Merger.
func (c *Coordinator) Run(ctx context.Context, plan []scanstate.PlanEntry, filteredCategories []string, volumeName string) []scanstate.CategoryResult {
	if len(plan) == 0 || !planAligned(plan, filteredCategories) {
		return []scanstate.CategoryResult{}
	}

	results := make([]scanstate.CategoryResult, len(plan))
	sem := make(chan struct{}, maxParallelCategories)
	done := make(chan struct{}, len(plan))

	for i, entry := range plan {
		i, entry := i, entry
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			results[i] = c.runCategory(ctx, entry, volumeName)
		}()
	}
	for range plan {
		<-done
	}
	return results
}

func planAligned(plan []scanstate.PlanEntry, filtered []string) bool {
	if len(plan) != len(filtered) {
		return false
	}
	want := make(map[string]bool, len(filtered))
	for _, c := range filtered {
		want[c] = true
	}
	for _, entry := range plan {
		if !want[entry.Category] {
			return false
		}
	}
	return true
}

// runCategory is one Category Subgraph invocation: Init -> Tool Selector ->
// Tool Prioritizer -> Sandbox Executor -> Execution Recorder -> Result
// Aggregator -> Conditional Evaluator.
func (c *Coordinator) runCategory(ctx context.Context, entry scanstate.PlanEntry, volumeName string) scanstate.CategoryResult {
	tools := toolruntime.ToolsForCategory(entry.Category)

	records := make([]scanstate.ExecutionRecord, 0, len(tools))
	var aggregated []scanstate.Finding
	var confidenceSum float64
	var confidenceCount int

	for _, tool := range tools {
		start := time.Now()
		result := c.Runner.RunTool(ctx, tool, volumeName)
		elapsed := time.Since(start)

		avgConfidence := averageConfidence(result.Findings)
		records = append(records, scanstate.ExecutionRecord{
			ToolName:        tool,
			ExecutionTimeMS: elapsed.Milliseconds(),
			Status:          result.Status,
			Confidence:      avgConfidence,
			FindingCount:    len(result.Findings),
		})
		aggregated = append(aggregated, result.Findings...)
		if result.Status == "completed" && len(result.Findings) > 0 {
			confidenceSum += avgConfidence
			confidenceCount++
		}
	}

	categoryConfidence := 0.0
	if confidenceCount > 0 {
		categoryConfidence = confidenceSum / float64(confidenceCount)
	}
	status := "low_confidence"
	if categoryConfidence >= lowConfidenceThreshold {
		status = "completed"
	}

	return scanstate.CategoryResult{
		Category:           entry.Category,
		CategoryStatus:     status,
		CategoryConfidence: categoryConfidence,
		ExecutionRecord:    records,
		AggregatedFindings: aggregated,
	}
}

func averageConfidence(findings []scanstate.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	var sum float64
	for _, f := range findings {
		sum += f.Confidence
	}
	return sum / float64(len(findings))
}

// Merge concatenates the Layer-4 normalized findings with every category's
// aggregated findings into final_findings. Category results are already in
// execution_plan order (Coordinator.Run fills them by plan index), so they
// are appended as given, without re-sorting.
func Merge(layer4Findings []scanstate.Finding, results []scanstate.CategoryResult) []scanstate.Finding {
	merged := append([]scanstate.Finding{}, layer4Findings...)
	for _, r := range results {
		merged = append(merged, r.AggregatedFindings...)
	}
	return merged
}
