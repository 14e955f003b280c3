package prompts

func init() {
	registry := DefaultRegistry()

	registry.Register(&Prompt{
		ID:      IntentID,
		Version: PromptV1,
		Content: `You classify the latest message of a conversation between a developer and a project assistant.

Categories:
- pure_discussion: chatting, questions, opinions; nothing to record.
- feature_exploration: thinking out loud about a possible feature ("maybe", "what if", "thinking about").
- spec_clarification: refining details of something already discussed, still not asking for action.
- ready_for_action: the user wants one or more work items created, either directly or by referring to earlier messages ("add this as a task").
- direct_action: the user wants an existing work item marked in progress, done, or deleted.

Reply with ONLY a JSON object, no markdown:
{"category": "<one of the categories>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>", "ambiguous": <true|false>, "questions": ["<clarifying question>", ...]}

Set "ambiguous" to true when you cannot tell what the user refers to. Questions are only needed when ambiguous.`,
		Description: "Intent classification for a single turn",
	})

	registry.Register(&Prompt{
		ID:      InsightsID,
		Version: PromptV1,
		Content: `You distill a finished conversation between a developer and a project assistant into durable project knowledge.

Extract the insights worth remembering after this session: decisions, requirements, constraints, conventions, known bugs, user preferences. Skip small talk and anything already obvious.

Known categories: {{categories}}
Use a known category when one fits. Otherwise propose a new one in snake_case (3-32 characters, letters, digits and underscores).

Reply with ONLY a JSON object, no markdown:
{"insights": [{"category": "<category>", "significance": <0.0-1.0>, "title": "<2-6 words>", "text": "<self-contained statement>"}]}

Return {"insights": []} when nothing is worth keeping.`,
		Description: "Session consolidation: insight extraction",
	})

	registry.Register(&Prompt{
		ID:      ConflictID,
		Version: PromptV1,
		Content: `You check whether a new statement contradicts an existing project note.

Reply with ONLY a JSON object, no markdown:
{"contradicts": <true|false>, "reason": "<one sentence>"}

A statement that adds detail or repeats the note does not contradict it.`,
		Description: "Session consolidation: conflict check before merge",
	})

	registry.Register(&Prompt{
		ID:      RespondID,
		Version: PromptV1,
		Content: `You are a concise project assistant embedded in a project-management tool.
Answer the developer conversationally in a few sentences. When the related work items or notes below are relevant, mention them by title.
Never claim you created, changed or deleted anything; actions are handled separately.
When the developer seems ready, you may suggest saying "add this as a task".`,
		Description: "Conversational reply for non-action turns",
	})

	registry.Register(&Prompt{
		ID:          TitleID,
		Version:     PromptV1,
		Content:     `Generate a short, concise title (3-5 words) for this conversation based on the user's intent. Do not use quotes or punctuation.`,
		Description: "Session title",
	})
}
