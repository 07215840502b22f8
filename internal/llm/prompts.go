package llm

const decomposePrompt = `You are an investment research analyst. Decompose the following investment thesis into testable components.

Company: %s
Sector: %s
Thesis: %s

Produce:
1. root_statement: a one-sentence restatement of the core thesis
2. sub_theses: 3-6 sub-theses the thesis depends on, each with:
   - statement: a falsifiable claim
   - assumptions: 1-3 underlying assumptions (falsifiable claims the sub-thesis rests on)
   - importance: 0.0-1.0, how much the thesis depends on this sub-thesis
   - testability: 0.0-1.0, how feasible it is to find evidence for or against it

Respond ONLY with JSON, no markdown:
{
  "root_statement": "...",
  "sub_theses": [
    {
      "statement": "...",
      "assumptions": ["..."],
      "importance": 0.8,
      "testability": 0.6
    }
  ]
}`

const sentimentPrompt = `You are assessing evidence for an investment hypothesis.

Hypothesis: %s

Evidence:
%s

Does the evidence support, contradict, or say nothing about the hypothesis?

Answer only "supporting", "contradicting", or "neutral". No explanation.`

const conflictPrompt = `You are a devil's advocate analyst stress-testing an investment hypothesis.

Hypothesis: %s

Evidence collected so far:
%s

Look for material conflicts: claims in the evidence that undermine the hypothesis, internal inconsistencies between pieces of evidence, or gaps that the hypothesis quietly assumes away.

Provide:
1. conflicts: true if the evidence materially conflicts with the hypothesis
2. description: 1-2 sentences on the most material conflict, or "" if none
3. severity: one of "low", "medium", "high"

Respond ONLY with JSON, no markdown:
{"conflicts":true,"description":"...","severity":"medium"}`

const queriesPrompt = `You are planning web research for investment diligence.

Company: %s
Sector: %s
Research focus: %s

Generate %d distinct search queries that would surface evidence for or against the research focus. Vary the angle: financials, competition, regulation, customer sentiment, management. Queries should be short enough for a search engine.

Respond ONLY with a JSON array of strings, no markdown:
["query one", "query two"]`

const comparablePrompt = `You are preparing a comparable-company note for investment diligence.

Target company: %s
Comparable company: %s

What we know about the comparable:
%s

Write a 2-4 sentence note on what the comparable implies for the target: relevant multiples, growth trajectory, risks that transferred, risks that did not.

Respond with ONLY the note text. No explanation, no formatting.`

const synthesisPrompt = `You are writing the findings section of an investment diligence report.

Thesis: %s

Hypothesis assessments:
%s

Open contradictions:
%s

Produce:
1. summary: 3-5 sentences on whether the evidence supports the thesis
2. key_findings: the 3-6 most decision-relevant findings
3. risks: the 2-5 most material risks, led by any unresolved contradictions
4. confidence: 0.0-1.0 overall confidence in the thesis given the evidence

Respond ONLY with JSON, no markdown:
{
  "summary": "...",
  "key_findings": ["..."],
  "risks": ["..."],
  "confidence": 0.55
}`
