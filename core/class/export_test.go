package class

// SetCodeFunc replaces the class code generator until the returned func is called.
func SetCodeFunc(f func() (string, error)) (reset func()) {
	codeFunc = f
	return func() { codeFunc = generateCode }
}
