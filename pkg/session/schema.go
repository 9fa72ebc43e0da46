package session

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// RecordFileSchema describes a record file as written by CheckExists and
// PersistOnSet. Unknown fields are allowed; "sid" may be missing, in which
// case the reaper leaves the directory alone.
const RecordFileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "sid":  { "type": "string" },
    "user": { "type": "string" },
    "cookie": {
      "type": ["object", "null"],
      "properties": {
        "expires": { "type": ["string", "number", "null"] }
      }
    }
  }
}`

var recordFileSchema = mustCompileSchema(RecordFileSchema)

func mustCompileSchema(schema string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("session: invalid record file schema: %v", err))
	}
	return compiled
}

// decodeRecordFile validates data against RecordFileSchema and decodes it.
func decodeRecordFile(data []byte) (Record, error) {
	result, err := recordFileSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		// not parseable as JSON at all
		return nil, fmt.Errorf("%w: %v", ErrDecodeRecord, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrDecodeRecord, strings.Join(msgs, "; "))
	}
	return decodeRecord(data)
}
