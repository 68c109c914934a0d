package registry

import "github.com/botflowhq/botflow/pkg/schema"

// Schemas for the config shapes that benefit from structural checks.
// Permissive by design: unknown keys are allowed everywhere, required keys are
// kept to the minimum the execution engine actually reads.
const (
	messageConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": { "text": { "type": "string" } }
	}`

	mediaConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "url": { "type": "string" },
	    "caption": { "type": "string" }
	  }
	}`

	inputConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "message": { "type": "string" },
	    "variable": { "type": "string" }
	  }
	}`

	buttonsConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "message": { "type": "string" },
	    "variable": { "type": "string" },
	    "options": { "type": "array", "items": { "type": "string" } }
	  }
	}`

	ratingConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "message": { "type": "string" },
	    "variable": { "type": "string" },
	    "max": { "type": "number", "minimum": 1, "maximum": 10 }
	  }
	}`

	conditionConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "variable": { "type": "string" },
	    "operator": {
	      "type": "string",
	      "enum": ["equals", "not_equals", "contains", "greater", "less", "empty", "not_empty"]
	    },
	    "value": { "type": "string" },
	    "expression": { "type": "string" },
	    "engine": { "type": "string", "enum": ["expr", "cel", "jq"] }
	  }
	}`

	setVariableConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "variable": { "type": "string" },
	    "value": { "type": "string" }
	  }
	}`

	waitConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": { "seconds": { "type": "number", "minimum": 0 } }
	}`

	webhookConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "url": { "type": "string" },
	    "method": { "type": "string", "enum": ["GET", "POST", "PUT", "DELETE", "PATCH"] },
	    "response_path": { "type": "string" },
	    "variable": { "type": "string" }
	  }
	}`

	codeConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "script": { "type": "string" },
	    "variable": { "type": "string" }
	  }
	}`

	openaiConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "prompt": { "type": "string" },
	    "variable": { "type": "string" }
	  }
	}`

	jumpConfigSchema = `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": { "target": { "type": "string" } }
	}`
)

// catalog is the full block palette. Order matters: it is the palette order
// the editor presents.
var catalog = []Block{
	{Type: schema.NodeStart, Label: "Start", Icon: "play", Category: CategoryLogic,
		HasInput: false, HasOutput: true},

	{Type: schema.NodeText, Label: "Text Message", Icon: "message-square", Category: CategoryMessages,
		DefaultConfig: map[string]any{"text": ""}, configSchema: messageConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeImage, Label: "Image", Icon: "image", Category: CategoryMessages,
		DefaultConfig: map[string]any{"url": "", "caption": ""}, configSchema: mediaConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeVideo, Label: "Video", Icon: "video", Category: CategoryMessages,
		DefaultConfig: map[string]any{"url": "", "caption": ""}, configSchema: mediaConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeAudio, Label: "Audio", Icon: "mic", Category: CategoryMessages,
		DefaultConfig: map[string]any{"url": ""}, configSchema: mediaConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeFile, Label: "File", Icon: "paperclip", Category: CategoryMessages,
		DefaultConfig: map[string]any{"url": "", "caption": ""}, configSchema: mediaConfigSchema,
		HasInput: true, HasOutput: true},

	{Type: schema.NodeInputText, Label: "Text Input", Icon: "type", Category: CategoryInputs,
		DefaultConfig: map[string]any{"message": "", "variable": ""}, configSchema: inputConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeInputNumber, Label: "Number Input", Icon: "hash", Category: CategoryInputs,
		DefaultConfig: map[string]any{"message": "", "variable": ""}, configSchema: inputConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeInputEmail, Label: "Email Input", Icon: "at-sign", Category: CategoryInputs,
		DefaultConfig: map[string]any{"message": "", "variable": ""}, configSchema: inputConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeInputPhone, Label: "Phone Input", Icon: "phone", Category: CategoryInputs,
		DefaultConfig: map[string]any{"message": "", "variable": ""}, configSchema: inputConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeInputDate, Label: "Date Input", Icon: "calendar", Category: CategoryInputs,
		DefaultConfig: map[string]any{"message": "", "variable": ""}, configSchema: inputConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeButtons, Label: "Buttons", Icon: "list", Category: CategoryInputs,
		DefaultConfig: map[string]any{"message": "", "options": []any{}, "variable": ""}, configSchema: buttonsConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeRating, Label: "Rating", Icon: "star", Category: CategoryInputs,
		DefaultConfig: map[string]any{"message": "", "max": 5.0, "variable": ""}, configSchema: ratingConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeFileUpload, Label: "File Upload", Icon: "upload", Category: CategoryInputs,
		DefaultConfig: map[string]any{"message": "", "variable": ""}, configSchema: inputConfigSchema,
		HasInput: true, HasOutput: true},

	{Type: schema.NodeSetVariable, Label: "Set Variable", Icon: "variable", Category: CategoryLogic,
		DefaultConfig: map[string]any{"variable": "", "value": ""}, configSchema: setVariableConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeCondition, Label: "Condition", Icon: "git-branch", Category: CategoryLogic,
		DefaultConfig: map[string]any{"variable": "", "operator": "equals", "value": ""}, configSchema: conditionConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeRedirect, Label: "Redirect", Icon: "external-link", Category: CategoryLogic,
		DefaultConfig: map[string]any{"url": ""},
		HasInput:      true, HasOutput: true},
	{Type: schema.NodeCode, Label: "Code", Icon: "code", Category: CategoryLogic,
		DefaultConfig: map[string]any{"script": "", "variable": ""}, configSchema: codeConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeWait, Label: "Wait", Icon: "clock", Category: CategoryLogic,
		DefaultConfig: map[string]any{"seconds": 3.0}, configSchema: waitConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeJump, Label: "Jump", Icon: "corner-down-right", Category: CategoryLogic,
		DefaultConfig: map[string]any{"target": ""}, configSchema: jumpConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeABTest, Label: "A/B Test", Icon: "shuffle", Category: CategoryLogic,
		DefaultConfig: map[string]any{"percentage": 50.0},
		HasInput:      true, HasOutput: true},

	{Type: schema.NodeTypebot, Label: "Typebot", Icon: "bot", Category: CategoryIntegrations,
		DefaultConfig: map[string]any{"typebot_id": ""},
		HasInput:      true, HasOutput: true},
	{Type: schema.NodeWebhook, Label: "Webhook", Icon: "globe", Category: CategoryIntegrations,
		DefaultConfig: map[string]any{"url": "", "method": "GET", "response_path": "", "variable": ""}, configSchema: webhookConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeGoogleSheets, Label: "Google Sheets", Icon: "table", Category: CategoryIntegrations,
		DefaultConfig: map[string]any{"sheet_id": "", "range": ""},
		HasInput:      true, HasOutput: true},
	{Type: schema.NodeEmailSend, Label: "Send Email", Icon: "mail", Category: CategoryIntegrations,
		DefaultConfig: map[string]any{"to": "", "subject": "", "body": ""},
		HasInput:      true, HasOutput: true},
	{Type: schema.NodeOpenAI, Label: "OpenAI", Icon: "sparkles", Category: CategoryIntegrations,
		DefaultConfig: map[string]any{"prompt": "", "variable": ""}, configSchema: openaiConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeWhatsAppButtons, Label: "WhatsApp Buttons", Icon: "smartphone", Category: CategoryIntegrations,
		DefaultConfig: map[string]any{"message": "", "options": []any{}, "variable": ""}, configSchema: buttonsConfigSchema,
		HasInput: true, HasOutput: true},
	{Type: schema.NodeWhatsAppList, Label: "WhatsApp List", Icon: "menu", Category: CategoryIntegrations,
		DefaultConfig: map[string]any{"message": "", "options": []any{}, "variable": ""}, configSchema: buttonsConfigSchema,
		HasInput: true, HasOutput: true},

	{Type: schema.NodeTransfer, Label: "Transfer to Agent", Icon: "headphones", Category: CategoryEndings,
		DefaultConfig: map[string]any{"message": ""},
		HasInput:      true, HasOutput: true},
	{Type: schema.NodeEndChat, Label: "End Chat", Icon: "message-circle-off", Category: CategoryEndings,
		DefaultConfig: map[string]any{"message": ""},
		HasInput:      true, HasOutput: false},
	{Type: schema.NodeEnd, Label: "End", Icon: "square", Category: CategoryEndings,
		HasInput: true, HasOutput: false},
}
