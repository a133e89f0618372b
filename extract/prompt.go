package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/i2y/structex/provider"
	"github.com/i2y/structex/schema"
)

// systemPrompt steers the model toward the record shape. Field names,
// types and descriptions appear both as a list and as the schema document.
func systemPrompt(rs *schema.RecordSchema, doc json.RawMessage, mode Mode) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Extract a %s record from the user's request.", rs.Name())
	if d := rs.Description(); d != "" {
		fmt.Fprintf(&b, " A %s is: %s", rs.Name(), d)
	}
	b.WriteString("\nAnswer with a single JSON object. Every field is required and must not be null.\n\n")

	b.WriteString("Fields:\n")
	b.WriteString(rs.Instructions())

	b.WriteString("\nJSON Schema:\n")
	var indented bytes.Buffer
	if err := json.Indent(&indented, doc, "", "  "); err != nil {
		b.Write(doc)
	} else {
		b.Write(indented.Bytes())
	}
	b.WriteString("\n\n")

	switch mode {
	case ModeJSONSchema:
		b.WriteString("Respond only with the JSON object.")
	default:
		b.WriteString("Respond only with the JSON object inside a ```json code block.")
	}
	return b.String()
}

// repairPrompt asks the model to correct its previous reply.
func repairPrompt(reason error, finish provider.FinishReason) string {
	var b strings.Builder
	b.WriteString("Your previous answer could not be accepted: ")
	b.WriteString(reason.Error())
	if finish == provider.FinishReasonLength {
		b.WriteString(" (the answer was cut off; keep it shorter)")
	}
	b.WriteString(".\nReply again with only the corrected JSON object. Include every field with a non-null value of the declared type.")
	return b.String()
}
