package interpreter

import (
	"strconv"
	"strings"

	"github.com/inobulles/flamingo/pkg/runtime"
)

// stringify renders a value the way print shows it.
func stringify(v *runtime.Value) string {
	var b strings.Builder
	writeValue(&b, v, false)
	return b.String()
}

// Stringify is exported for hosts that want print's formatting.
func Stringify(v *runtime.Value) string { return stringify(v) }

func writeValue(b *strings.Builder, v *runtime.Value, nested bool) {
	if v == nil {
		b.WriteString("none")
		return
	}
	switch v.Kind() {
	case runtime.KindNone:
		b.WriteString("none")
	case runtime.KindBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	case runtime.KindInt:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case runtime.KindStr:
		if nested {
			b.WriteString(strconv.Quote(string(v.Str)))
		} else {
			b.Write(v.Str)
		}
	case runtime.KindVec:
		b.WriteByte('[')
		for idx, elem := range v.Vec {
			if idx > 0 {
				b.WriteString(", ")
			}
			writeValue(b, elem, true)
		}
		b.WriteByte(']')
	case runtime.KindFn:
		b.WriteByte('<')
		b.WriteString(runtime.TypeName(v))
		if v.Fn != nil && v.Fn.Name != "" {
			b.WriteByte(' ')
			b.WriteString(v.Fn.Name)
		}
		b.WriteByte('>')
	case runtime.KindInst:
		b.WriteByte('<')
		b.WriteString(v.ClassName())
		b.WriteString(" instance>")
	}
}
