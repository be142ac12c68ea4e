package service

import (
	"strings"
	"text/template"
)

var decompositionPrompt = template.Must(template.New("decomposition").Parse(
	`You are a helpful assistant that generates multiple sub-questions related to an input question.
The goal is to break down the input into a set of sub-problems / sub-questions that can be answered in isolation.
Generate multiple search queries better suited for retrieving relevant documents.
Output strictly a list of questions separated by newlines.

Original question: {{.Question}}`))

var synthesisPrompt = template.Must(template.New("synthesis").Parse(
	`Here is the context retrieved for the question:
{{.Context}}

Answer the following question using the context provided: {{.Question}}
`))

type promptVars struct {
	Question string
	Context  string
}

func render(t *template.Template, vars promptVars) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, vars); err != nil {
		return "", err
	}
	return sb.String(), nil
}
