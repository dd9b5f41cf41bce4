package template

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// funcRandomInt returns a random integer in [min, max], or "" if min > max.
func funcRandomInt(min, max int) string {
	if min > max {
		return ""
	}
	return strconv.Itoa(rand.IntN(max-min+1) + min)
}

func funcRandomString(n int) string {
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(alphanumeric[rand.IntN(len(alphanumeric))])
	}
	return b.String()
}

func funcDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// funcJSONPath returns the first value path selects from the decoded body.
// Invalid expressions and misses render empty.
func funcJSONPath(body any, path string) string {
	if body == nil {
		return ""
	}
	expr, err := jp.ParseString(path)
	if err != nil {
		return ""
	}
	results := expr.Get(body)
	if len(results) == 0 {
		return ""
	}
	return stringify(results[0])
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
