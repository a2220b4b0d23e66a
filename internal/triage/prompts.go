package triage

const classifySystemPrompt = `You assess news headlines for a private-wealth prospecting service.
For each item, score how likely the headline describes a wealth event relevant to private individuals or families: a company sale, acquisition, IPO, large share disposal, inheritance, or similar liquidity event.

Scoring bands:
- 90-100: explicit liquidity event naming a private individual or family
- 70-89: probable liquidity event, beneficiary identifiable
- 40-69: corporate transaction where private beneficiaries are plausible but unnamed
- 10-39: business news without a clear private beneficiary
- 0-9: irrelevant (sports, politics, weather, culture)

Respond with JSON only, no prose, in the form:
{"assessments": [{"id": "<item id>", "relevance": <0-100>, "rationale": "<one short sentence>"}]}
Return one assessment per input item, preserving the input ids.`

const reassessNote = `The item below was flagged for re-assessment because it mentions a watched entity or a high-signal term. Judge it on its own merits; do not inflate the score without evidence.`
