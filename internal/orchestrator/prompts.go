package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parth0cb/agentic-internet-researcher/internal/models"
)

const citationGuide = "When providing your final answer, follow these strict citation guidelines to ensure clarity, professionalism, and factual accuracy:\n\n" +
	"Inline, Contextual Citation:\n" +
	"- Always cite sources **inline**, immediately **after the sentence or fact** they support.\n" +
	"- Use clean **markdown hyperlinks** in this format: `[domain.name](https://example.com/article)`. The visible link text should be the domain name of the source.\n" +
	"Clear and Concise Style:\n" +
	"- Use the **domain name** as the source name: e.g., `[nasa.gov](https://www.nasa.gov/...)`, `[who.int](https://www.who.int/...)`, `[mayoclinic.org](https://www.mayoclinic.org/...)`, not full URLs or site titles.\n" +
	"- Example:\n" +
	"*The James Webb Telescope is capable of detecting infrared light from 13.6 billion years ago* [nasa.gov](https://www.nasa.gov/feature/goddard/2022/nasa-s-webb-reaches-alignment-milestone-optics-working-successfully).\n\n" +
	"Do NOT:\n" +
	"- Do **not** list all sources at the end of the answer.\n" +
	"- Do **not** cite to sources that were never mentioned in the tool outputs."

const toolExample = `You will receive a JSON string containing a list of callable tools. Please parse this JSON string and return a JSON object containing the tool name and tool parameters. Here is an example of the tool list:

{"tools": [{"name": "add_numbers", "description": "Add two numbers together", "parameters": {"type": "object","properties": {"num1": {"type": "string","description": "First number, for example: 5","default": "0"},"num2": {"type": "string","description": "Second number, for example: 3","default": "0"}},"required": ["num1", "num2"]}},{"name": "multiply_numbers", "description": "Multiply two numbers", "parameters": {"type": "object","properties": {"num1": {"type": "string","description": "First number, for example: 4","default": "1"},"num2": {"type": "string","description": "Second number, for example: 6","default": "1"}},"required": ["num1", "num2"]}}]}

Based on this tool list, generate a JSON object to call a tool. For example, if you need to add 5 and 3, return:

{"tool": "add_numbers", "parameters": {"num1": "5", "num2": "3"}}

Please note that the above is just an example and does not mean that the add_numbers and multiply_numbers tools are currently available.`

const returnFormat = `{"tool": "tool name", "parameters": {"parameter name": "parameter value"}}`

// ToolInternetSearch is the only tool the agent can call
const ToolInternetSearch = "internet_search"

var internetSearchTool = models.FunctionDef{
	Name:        ToolInternetSearch,
	Description: "Use this tool to perform real-time internet searches and retrieve up-to-date, factual information from the web.",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "A specific query to search.",
			},
			"explanation": map[string]interface{}{
				"type":        "string",
				"description": `Explain in a short one sentence what are you doing. End the explanation with elipses. E.g., "Validating if that exists..."`,
			},
		},
		"required": []string{"query", "explanation"},
	},
}

func simpleSystemPrompt(preamble string) string {
	return preamble +
		"You answer questions based on search results. But you never mention the search results themselves.\n\n" +
		citationGuide +
		"\n\nMake your Answer detailed."
}

func simpleUserPrompt(chunks, query string) string {
	return "Search Results:\n" + chunks + "\n\n---\n\n" +
		"Question:\n" + query + " \n\n---\n\n" +
		"Answer:"
}

// toolInstructions describes each tool on one line
func toolInstructions(tools []models.FunctionDef) string {
	var sb strings.Builder
	for _, tool := range tools {
		params, _ := json.Marshal(tool.Parameters)
		required, _ := json.Marshal(tool.Parameters["required"])
		fmt.Fprintf(&sb, "%s: Call this tool to interact with the %s API. What is the %s API useful for? %s. Parameters: %s Required parameters: %s\n",
			tool.Name, tool.Name, tool.Name, tool.Description, params, required)
	}
	return sb.String()
}

func agenticSystemPrompt(preamble, query string, tools []models.FunctionDef) string {
	return fmt.Sprintf(`
%s

Answer the following questions as best you can. You have access to the following APIs:
%s

Use the following format:
'''tool_json
%s
'''

Hint: To gather information comprehensively, tools can be used iteratively before responding to the user.
Include the detailed final answer only after you have thoroughly gathered all information.
Make your final response detailed. A detailed markdown formatted response to the user's query.
Do not make up information that you never saw in the tool results.

%s

%s

User query: %s
`, toolExample, toolInstructions(tools), returnFormat, citationGuide, preamble, query)
}
