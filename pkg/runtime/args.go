package runtime

// ArgList carries evaluated arguments to native callbacks. Names are the
// declared parameter names when the callee has any.
type ArgList struct {
	values []*Value
	names  []string
}

func NewArgList(values []*Value, names []string) *ArgList {
	if len(names) != len(values) {
		names = nil
	}
	return &ArgList{values: values, names: names}
}

func (a *ArgList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.values)
}

// At returns the i-th argument or nil when out of range. The reference is
// borrowed.
func (a *ArgList) At(i int) *Value {
	if a == nil || i < 0 || i >= len(a.values) {
		return nil
	}
	return a.values[i]
}

// Named looks an argument up by its declared parameter name.
func (a *ArgList) Named(name string) (*Value, bool) {
	if a == nil {
		return nil, false
	}
	for i, n := range a.names {
		if n == name {
			return a.values[i], true
		}
	}
	return nil, false
}

func (a *ArgList) Values() []*Value {
	if a == nil {
		return nil
	}
	return a.values
}

// Release drops the list's references.
func (a *ArgList) Release() {
	if a == nil {
		return
	}
	for _, v := range a.values {
		v.Decref()
	}
	a.values = nil
}
