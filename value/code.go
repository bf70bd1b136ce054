package value

import (
	"fmt"
	"strings"
)

// Op identifies a micro-instruction.
type Op string

const (
	LOAD_LOCAL  Op = "LOAD_LOCAL"  // push locals[Name]
	LOAD_GLOBAL Op = "LOAD_GLOBAL" // push globals[Name]
	LOAD_CONST  Op = "LOAD_CONST"  // push Consts[Index]
	STORE_LOCAL Op = "STORE_LOCAL" // locals[Name] = pop
	GET_ATTR    Op = "GET_ATTR"    // push pop().Name
	CALL        Op = "CALL"        // call with Argc positional + len(KwNames) keyword args
	BINARY      Op = "BINARY"      // binary operator Name over the top two stack values
	POP         Op = "POP"         // discard top of stack
	RETURN      Op = "RETURN"      // return top of stack
)

// Instr is one micro-instruction. Fields are op-specific: Name carries the
// local/global/attribute/operator name, Index the constant slot, Argc and
// KwNames the call shape. Keyword argument values sit on the stack after the
// positional ones, in KwNames order.
type Instr struct {
	Op      Op
	Name    string
	Index   int
	Argc    int
	KwNames []string
}

func (in Instr) String() string {
	switch in.Op {
	case LOAD_CONST:
		return fmt.Sprintf("%s %d", in.Op, in.Index)
	case CALL:
		if len(in.KwNames) > 0 {
			return fmt.Sprintf("%s %d kw=(%s)", in.Op, in.Argc, strings.Join(in.KwNames, ","))
		}
		return fmt.Sprintf("%s %d", in.Op, in.Argc)
	case POP, RETURN:
		return string(in.Op)
	default:
		return fmt.Sprintf("%s %s", in.Op, in.Name)
	}
}

// Instruction constructors, for building guest code in Go.

func LoadLocal(name string) Instr  { return Instr{Op: LOAD_LOCAL, Name: name} }
func LoadGlobal(name string) Instr { return Instr{Op: LOAD_GLOBAL, Name: name} }
func LoadConst(index int) Instr    { return Instr{Op: LOAD_CONST, Index: index} }
func StoreLocal(name string) Instr { return Instr{Op: STORE_LOCAL, Name: name} }
func GetAttr(name string) Instr    { return Instr{Op: GET_ATTR, Name: name} }
func Binary(op string) Instr       { return Instr{Op: BINARY, Name: op} }
func Pop() Instr                   { return Instr{Op: POP} }
func Return() Instr                { return Instr{Op: RETURN} }

func Call(argc int, kwNames ...string) Instr {
	return Instr{Op: CALL, Argc: argc, KwNames: kwNames}
}
