package diag

// Key names a message in the catalog.
type Key string

type message struct {
	kind   Kind
	format string
}

const (
	KeyIllegalModifiers     Key = "illegal.modifiers"
	KeyMultipleAccess       Key = "multiple.access"
	KeyModifierCombination  Key = "modifier.combination"
	KeyDuplicateModifier    Key = "duplicate.modifier"
	KeyDeclarationOrder     Key = "declaration.order"
	KeyDuplicateField       Key = "duplicate.field"
	KeyDuplicateMethod      Key = "duplicate.method"
	KeyDuplicateLocal       Key = "duplicate.local"
	KeyNotInMethod          Key = "not.in.method"
	KeyMethodOpen           Key = "method.open"
	KeyAbstractBody         Key = "abstract.body"
	KeyUnknownType          Key = "unknown.type"
	KeyUnknownVariable      Key = "unknown.variable"
	KeyNoSuchField          Key = "no.such.field"
	KeyNoSuchMethod         Key = "no.such.method"
	KeyAmbiguousCall        Key = "ambiguous.call"
	KeyAccessDenied         Key = "access.denied"
	KeyNotBoolean           Key = "not.boolean"
	KeyNotIntegral          Key = "not.integral"
	KeyNotNumeric           Key = "not.numeric"
	KeyIncompatibleOperands Key = "incompatible.operands"
	KeyIncompatibleTypes    Key = "incompatible.types"
	KeyInvalidCast          Key = "invalid.cast"
	KeyNotArray             Key = "not.array"
	KeyNotReference         Key = "not.reference"
	KeyNotThrowable         Key = "not.throwable"
	KeyReturnMismatch       Key = "return.mismatch"
	KeyMissingReturn        Key = "missing.return"
	KeyStaticContext        Key = "static.context"
	KeyAssignFinal          Key = "assign.final"
	KeyStackUnderflow       Key = "stack.underflow"
	KeyStackNotEmpty        Key = "stack.not.empty"
	KeyElseTwice            Key = "else.twice"
	KeyDefaultTwice         Key = "default.twice"
	KeyDuplicateCase        Key = "duplicate.case"
	KeyNoCases              Key = "no.cases"
	KeyLoopWithoutExit      Key = "loop.without.exit"
	KeyLabelNotFound        Key = "label.not.found"
	KeyBreakOutside         Key = "break.outside"
	KeyContinueOutside      Key = "continue.outside"
	KeyMismatchedEnd        Key = "mismatched.end"
	KeyStatementState       Key = "statement.state"
	KeyTryWithoutHandler    Key = "try.without.handler"
	KeyLabelPending         Key = "label.pending"
	KeyCodeTooLarge         Key = "code.too.large"
	KeyStaticViaInstance    Key = "static.via.instance"
	KeyAbstractNew          Key = "abstract.new"
	KeyPackageMismatch      Key = "package.mismatch"
	KeyBadSuper             Key = "bad.super"
	KeyNotInterface         Key = "not.interface"
	KeyInternal             Key = "internal"
)

var catalog = map[Key]message{
	KeyIllegalModifiers:     {Declaration, "modifiers %s are not allowed on %s"},
	KeyMultipleAccess:       {Declaration, "at most one of public, protected, private may be given (got %s)"},
	KeyModifierCombination:  {Declaration, "illegal combination of modifiers on %s: %s"},
	KeyDuplicateModifier:    {Declaration, "repeated modifier %s"},
	KeyDeclarationOrder:     {Declaration, "%s is not allowed after %s"},
	KeyDuplicateField:       {Declaration, "field %s is already declared in %s"},
	KeyDuplicateMethod:      {Declaration, "method %s is already declared in %s"},
	KeyDuplicateLocal:       {Declaration, "variable %s is already defined in this method"},
	KeyNotInMethod:          {Declaration, "%s is only allowed inside a method body"},
	KeyMethodOpen:           {Declaration, "%s is not allowed while method %s is open"},
	KeyAbstractBody:         {Declaration, "%s method %s cannot have a body"},
	KeyUnknownType:          {Resolution, "cannot find type %s"},
	KeyUnknownVariable:      {Resolution, "cannot find variable %s"},
	KeyNoSuchField:          {Resolution, "cannot find field %s in %s"},
	KeyNoSuchMethod:         {Resolution, "cannot find method %s in %s"},
	KeyAmbiguousCall:        {Resolution, "reference to %s in %s is ambiguous: %s"},
	KeyAccessDenied:         {Resolution, "%s is not accessible from %s"},
	KeyNotBoolean:           {Type, "%s requires a boolean operand, found %s"},
	KeyNotIntegral:          {Type, "%s requires an integral operand, found %s"},
	KeyNotNumeric:           {Type, "%s requires a numeric operand, found %s"},
	KeyIncompatibleOperands: {Type, "operator %s cannot be applied to %s, %s"},
	KeyIncompatibleTypes:    {Type, "incompatible types: %s cannot be converted to %s"},
	KeyInvalidCast:          {Type, "cannot cast %s to %s"},
	KeyNotArray:             {Type, "array required, but %s found"},
	KeyNotReference:         {Type, "%s requires a reference, found %s"},
	KeyNotThrowable:         {Type, "%s is not a subclass of java.lang.Throwable"},
	KeyReturnMismatch:       {Type, "method %s returns %s, cannot return %s"},
	KeyMissingReturn:        {ControlFlow, "missing return statement in %s"},
	KeyStaticContext:        {Type, "%s cannot be referenced from a static context"},
	KeyAssignFinal:          {Type, "cannot assign a value to final variable %s"},
	KeyStackUnderflow:       {Type, "%s needs %d operand(s) but only %d available"},
	KeyStackNotEmpty:        {Type, "%s leaves %d unused value(s) on the operand stack"},
	KeyElseTwice:            {ControlFlow, "else already given for this if"},
	KeyDefaultTwice:         {ControlFlow, "duplicate default label"},
	KeyDuplicateCase:        {ControlFlow, "duplicate case label %d"},
	KeyNoCases:              {ControlFlow, "switch has no case labels"},
	KeyLoopWithoutExit:      {ControlFlow, "loop has no break or while condition and can never terminate"},
	KeyLabelNotFound:        {ControlFlow, "undefined label: %s"},
	KeyBreakOutside:         {ControlFlow, "break outside switch or loop"},
	KeyContinueOutside:      {ControlFlow, "continue outside of loop"},
	KeyMismatchedEnd:        {ControlFlow, "%s does not close the innermost statement (%s)"},
	KeyStatementState:       {ControlFlow, "%s is not allowed here: %s"},
	KeyTryWithoutHandler:    {ControlFlow, "try without catch or finally"},
	KeyLabelPending:         {ControlFlow, "label %s is not attached to a statement"},
	KeyCodeTooLarge:         {Declaration, "code of method %s is too large: %s"},
	KeyStaticViaInstance:    {Type, "static method %s must be invoked through its class"},
	KeyAbstractNew:          {Type, "%s is abstract; cannot be instantiated"},
	KeyPackageMismatch:      {Declaration, "package %s does not match class name %s"},
	KeyBadSuper:             {Declaration, "cannot inherit from %s %s"},
	KeyNotInterface:         {Declaration, "%s is not an interface"},
	KeyInternal:             {Internal, "%s"},
}
