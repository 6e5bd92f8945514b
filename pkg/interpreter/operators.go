package interpreter

import (
	"bytes"

	"github.com/inobulles/flamingo/pkg/runtime"
	"github.com/inobulles/flamingo/pkg/syntax"
)

func (i *Interpreter) evaluateBinaryExpression(f *frame, node syntax.Node) (*runtime.Value, error) {
	opNode := node.ChildByFieldName("operator")
	if opNode == nil {
		return nil, i.errorf(f, node, ErrStructural, "binary expression has no operator")
	}
	op := f.unit.Text(opNode)

	left, err := i.evaluateExpression(f, node.ChildByFieldName("left"))
	if err != nil {
		return nil, err
	}
	defer left.Decref()
	right, err := i.evaluateExpression(f, node.ChildByFieldName("right"))
	if err != nil {
		return nil, err
	}
	defer right.Decref()

	if left.Kind() != right.Kind() {
		return nil, i.errorf(f, node, ErrTypeMismatch, "operand types must be identical (got %s and %s)", runtime.TypeName(left), runtime.TypeName(right))
	}

	var result *runtime.Value
	switch left.Kind() {
	case runtime.KindInt:
		result, err = integerOp(op, left.Int, right.Int)
	case runtime.KindBool:
		result = boolOp(op, left.Bool, right.Bool)
	case runtime.KindStr:
		result = stringOp(op, left.Str, right.Str)
	}
	if err != nil {
		return nil, i.locate(f, node, err)
	}
	if result == nil {
		return nil, i.errorf(f, opNode, ErrTypeMismatch, "unknown operator '%s' for type %s", op, runtime.TypeName(left))
	}
	return result, nil
}

func integerOp(op string, a, b int64) (*runtime.Value, error) {
	switch op {
	case "+":
		return runtime.MakeInt(a + b), nil
	case "-":
		return runtime.MakeInt(a - b), nil
	case "*":
		return runtime.MakeInt(a * b), nil
	case "/":
		if b == 0 {
			return nil, Errorf(ErrDivisionByZero, "division by zero")
		}
		return runtime.MakeInt(a / b), nil
	case "%":
		if b == 0 {
			return nil, Errorf(ErrDivisionByZero, "modulo by zero")
		}
		return runtime.MakeInt(a % b), nil
	case "**":
		if b < 0 {
			return nil, Errorf(ErrArithmetic, "negative exponent %d", b)
		}
		return runtime.MakeInt(ipow(a, b)), nil
	case "==":
		return runtime.MakeBool(a == b), nil
	case "!=":
		return runtime.MakeBool(a != b), nil
	case "<":
		return runtime.MakeBool(a < b), nil
	case "<=":
		return runtime.MakeBool(a <= b), nil
	case ">":
		return runtime.MakeBool(a > b), nil
	case ">=":
		return runtime.MakeBool(a >= b), nil
	}
	return nil, nil
}

func ipow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func boolOp(op string, a, b bool) *runtime.Value {
	switch op {
	case "&&":
		return runtime.MakeBool(a && b)
	case "||":
		return runtime.MakeBool(a || b)
	case "^^":
		return runtime.MakeBool(a != b)
	case "==":
		return runtime.MakeBool(a == b)
	case "!=":
		return runtime.MakeBool(a != b)
	}
	return nil
}

func stringOp(op string, a, b []byte) *runtime.Value {
	switch op {
	case "+":
		buf := make([]byte, 0, len(a)+len(b))
		buf = append(append(buf, a...), b...)
		return runtime.MakeStr(buf)
	case "==":
		return runtime.MakeBool(bytes.Equal(a, b))
	case "!=":
		return runtime.MakeBool(!bytes.Equal(a, b))
	}
	return nil
}
