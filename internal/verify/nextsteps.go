package verify

import "fmt"

// NextSteps lists follow-up commands for a finished report.
func NextSteps(r *Report) []NextStep {
	var steps []NextStep
	t := r.Totals
	path := r.TasksPath

	if t.InvalidScope > 0 {
		steps = append(steps, NextStep{
			Command: fmt.Sprintf("hookcheck validate %s", path),
			Why:     fmt.Sprintf("%d task(s) have evidence outside the workspace; fix their paths", t.InvalidScope),
		})
	}
	if t.LegacyHooks > 0 || t.InvalidHooks > 0 {
		steps = append(steps, NextStep{
			Command: fmt.Sprintf("hookcheck migrate %s", path),
			Why:     fmt.Sprintf("%d hook(s) are legacy or malformed; preview a canonical rewrite", t.InvalidHooks),
		})
	}
	if t.MissingHooks > 0 || t.NotVerified > 0 {
		steps = append(steps, NextStep{
			Command: fmt.Sprintf("hookcheck report show %s", r.RunID),
			Why:     fmt.Sprintf("%d task(s) lack proof; add the suggested hooks", t.MissingHooks+t.NotVerified),
		})
	}
	if t.NeedsManual > 0 {
		steps = append(steps, NextStep{
			Why: fmt.Sprintf("%d task(s) need manual UI verification", t.NeedsManual),
		})
	}
	if t.CheckboxDrift > 0 {
		steps = append(steps, NextStep{
			Why: fmt.Sprintf("%d checked task(s) are not verified; uncheck them or add evidence", t.CheckboxDrift),
		})
	}
	if len(r.StructuralErrors) > 0 {
		steps = append(steps, NextStep{
			Command: fmt.Sprintf("hookcheck validate %s", path),
			Why:     fmt.Sprintf("%d structural error(s) in the task document", len(r.StructuralErrors)),
		})
	}
	if r.Budget.Exhausted {
		steps = append(steps, NextStep{
			Command: "hookcheck config show",
			Why:     fmt.Sprintf("scan budget exceeded (%s); raise limits or narrow hook paths", r.Budget.Reason),
		})
	}
	return steps
}
