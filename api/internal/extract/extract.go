package extract

import (
	"fmt"

	"workflow-architect/api/internal/util"
)

// Reference turns a non-image attachment into text for engines that cannot
// take inline PDF or text parts.
func Reference(data []byte, mime string) (string, error) {
	switch util.BaseMIME(mime) {
	case "application/pdf":
		return PDF(data)
	case "text/plain":
		return Text(data)
	default:
		return "", fmt.Errorf("cannot extract text from %s", mime)
	}
}
