package planner

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/quartermaster/internal/catalog"
)

// systemPrompt instructs the model to emit a task graph in the fixed schema
// the parser validates. The schema is deliberately rigid: tagged parameter
// values, explicit dependency lists, nothing else.
const systemPrompt = `You are the planner for a household inventory assistant. Decompose the user's request into a directed graph of tasks over the available callables.

Rules:
- Output ONLY a JSON object, no markdown fences, no prose:
  {"tasks": [{"id": "t1", "target": "<callable>", "params": {...}, "depends_on": [...], "reference": "...", "fallback_target": "..."}]}
- Task IDs are short strings ("t1", "t2", ...), unique within the plan.
- Every "target" must be one of the listed callables. Never invent callables.
- Every parameter value is EXACTLY ONE of:
    {"literal": <json value>}                     a concrete value
    {"ref": {"task": "t1", "field": "items"}}     a prior task's result field
  A "ref" may only point at a task in "depends_on".
- "reference" carries the entity name for reference-resolving callables (e.g. "apple" for pantry.consume-item). Leave it out otherwise.
- "fallback_target" optionally names an alternate callable to try once if the primary fails.
- "depends_on" lists task IDs that must succeed first. The graph must be acyclic.
- Generating a shopping list ALWAYS means two tasks: a pantry.get-state task, then a shopping.generate-list task depending on it with "items" bound to {"ref": {"task": <that task>, "field": "items"}}.
- If the request needs no action (greeting, small talk, a question about the assistant itself), output {"tasks": []}.`

// renderCatalog formats the catalog for the planner prompt.
func renderCatalog(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("Available callables:\n")
	for _, call := range cat.List() {
		fmt.Fprintf(&b, "- %s: %s", call.Name, call.Summary)
		if call.ReferenceResolving {
			b.WriteString(" [reference-resolving]")
		}
		if call.Mutating {
			b.WriteString(" [mutating]")
		}
		b.WriteString("\n")
		for _, p := range call.Params {
			req := ""
			if p.Required {
				req = ", required"
			}
			fmt.Fprintf(&b, "    param %s (%s%s): %s\n", p.Name, p.Type, req, p.Description)
		}
		for _, r := range call.Returns {
			fmt.Fprintf(&b, "    returns %s (%s): %s\n", r.Name, r.Type, r.Description)
		}
	}
	return b.String()
}

// buildPrompt assembles the user-turn prompt from the catalog and utterance.
func buildPrompt(cat *catalog.Catalog, utterance string) string {
	return renderCatalog(cat) + "\nUser request:\n" + utterance
}
