package conversation

import (
	"fmt"
	"strings"

	"github.com/w-h-a/doctalk/memory"
	"github.com/w-h-a/doctalk/storer"
)

const RefusalText = "The question is not relevant to the domain of interest"

func systemPrompt(records []storer.Record) string {
	texts := make([]string, 0, len(records))
	for _, rec := range records {
		texts = append(texts, rec.Content)
	}

	var sb strings.Builder
	sb.WriteString("You are answering questions only concerning the provided content of the input document.\n")
	fmt.Fprintf(&sb, "If you are asked a question that is not related to the document your response will be:\n'%s'.\n", RefusalText)
	sb.WriteString("---------------\n")
	fmt.Fprintf(&sb, "Context: ```%s```\n", strings.Join(texts, "\n\n"))

	return sb.String()
}

func userPrompt(question string) string {
	var sb strings.Builder
	sb.WriteString("Answer questions only concerning the provided content of the input document.\n")
	fmt.Fprintf(&sb, "If you are asked a question that is not related to the document your response will be:\n'%s'.\n", RefusalText)
	fmt.Fprintf(&sb, "Here is the user's question: ```%s```\n", question)

	return sb.String()
}

const condenseMarker = "Standalone question:"

func condensePrompt(turns []memory.Turn, question string) string {
	var sb strings.Builder
	sb.WriteString("Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.\n\n")
	sb.WriteString("Chat History:\n")
	for _, turn := range turns {
		fmt.Fprintf(&sb, "Human: %s\nAssistant: %s\n", turn.Question, turn.Answer)
	}
	fmt.Fprintf(&sb, "Follow Up Input: %s\n", question)
	sb.WriteString(condenseMarker)

	return sb.String()
}
