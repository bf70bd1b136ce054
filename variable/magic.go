package variable

import (
	"context"

	"github.com/podhmo/go-trace/classify"
	"github.com/podhmo/go-trace/value"
)

// resolveMagicCall is the second tier of builtin dispatch: operator
// overloading through class-level special methods. Candidates come from the
// classification tables in order; a forward name is checked against the first
// operand's type, a reflected name against the last operand's. The first
// defined candidate wins and the scan stops. The resolved method is then
// invoked with the arguments in their original positional order (reflected
// names swap only the type check, never the call) and without keyword
// arguments.
//
// The resolved function's provenance is rooted at the matched operand:
// operand.__class__.<method>. That chain is what guard production walks when
// the result participates in a guard.
func resolveMagicCall(ctx context.Context, g Graph, tables *classify.Tables, builtin string, args []Variable) (Variable, bool, error) {
	if len(args) == 0 {
		return nil, false, nil
	}
	for _, m := range tables.MagicMethods(builtin) {
		operand := args[0]
		if m.Reflected {
			operand = args[len(args)-1]
		}
		typ := value.TypeOf(operand.Value())
		fn, ok := typ.LookupMethod(m.Name)
		if !ok {
			continue
		}
		classVar, err := g.FromValue(typ, NewGetAttrTracker(operand, "__class__"))
		if err != nil {
			return nil, false, err
		}
		fnVar, err := g.FromValue(fn, NewGetAttrTracker(classVar, m.Name))
		if err != nil {
			return nil, false, err
		}
		callable, ok := fnVar.(CallableVariable)
		if !ok {
			return nil, false, Internalf("special method %s resolved to non-callable %s", m.Name, fnVar.Inspect())
		}
		g.Logger().DebugContext(ctx, "magic method", "builtin", builtin, "method", m.Name, "reflected", m.Reflected)
		out, err := callable.Invoke(ctx, args, nil)
		return out, true, err
	}
	return nil, false, nil
}
