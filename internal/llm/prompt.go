package llm

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

const systemPromptTemplate = `You are a helpful assistant that answers questions about web content.
Below is content scraped from a web page. The user will ask questions about this content.

WEB CONTENT:
%CONTENT%

Answer questions based only on the information in the web content above.
If you don't know the answer based on the content, say so.`

// buildMessages wraps the scraped content into a system message followed by the user prompt.
func buildMessages(content, prompt string) []*schema.Message {
	return []*schema.Message{
		{Role: schema.System, Content: strings.Replace(systemPromptTemplate, "%CONTENT%", content, 1)},
		{Role: schema.User, Content: prompt},
	}
}
