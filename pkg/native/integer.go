package native

// Integer backs a java.lang.Integer instance.
type Integer struct {
	Value int32
}

var smallIntegers [256]*Integer

func init() {
	for i := range smallIntegers {
		smallIntegers[i] = &Integer{Value: int32(i - 128)}
	}
}

// IntegerValueOf boxes v. Values in [-128, 127] share one instance, so
// reference comparison of small boxed values holds as it does on a JVM.
func IntegerValueOf(v int32) *Integer {
	if v >= -128 && v <= 127 {
		return smallIntegers[v+128]
	}
	return &Integer{Value: v}
}
