package util

import (
	"encoding/json"
	"fmt"
)

type jsonStringer struct {
	value interface{}
}

func (s jsonStringer) String() string {
	bs, err := json.Marshal(s.value)
	if err != nil {
		return "json marshal failed: " + err.Error()
	}
	return string(bs)
}

// JsonStringer defers json encoding of x until it is printed, so debug log
// arguments cost nothing when debug logging is off.
func JsonStringer(x interface{}) fmt.Stringer {
	return jsonStringer{value: x}
}
