package vocab

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// schemaSource constrains the dataset file. Answer and prompt text are
// required because a question cannot be asked without them.
const schemaSource = `
#Entry: {
	eng:          string & =~"\\S"
	jp:           string & =~"\\S"
	jpFormatted?: string
	hasFurigana?: bool
	audio?:       string
	image?:       string
	attr?:        string
	...
}

entries: [...#Entry]
`

// Validate checks raw JSON against the dataset schema and returns one
// message per violation. A nil result means the data is valid.
func Validate(data []byte) []string {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return []string{fmt.Sprintf("schema: %v", err)}
	}

	doc := ctx.CompileBytes(data, cue.Filename("dataset.json"))
	if err := doc.Err(); err != nil {
		return []string{err.Error()}
	}
	if doc.Kind() != cue.ListKind {
		return []string{"dataset must be a JSON array of entries"}
	}

	unified := schema.FillPath(cue.ParsePath("entries"), doc)
	err := unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var msgs []string
	for _, e := range cueerrors.Errors(err) {
		path := strings.Join(e.Path(), ".")
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path != "" {
			msg = path + ": " + msg
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
