package definition

import (
	"encoding/json"

	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
)

// JSONCodec is the default wire codec, the same encoding the teacher's
// transport layer used (encoding/json over types.Message). It is the codec
// used by fuzzy/convergence_test.go and cmd/hostgossipd, and the Manager's
// default when no codec is supplied.
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

var _ types.Codec = (*JSONCodec)(nil)
