package runtime

// Variable binds a name to one reference of a value.
type Variable struct {
	Name  string
	Value *Value
}

// Set stores val, releasing whatever the variable held before. The variable
// takes over the caller's reference to val.
func (v *Variable) Set(val *Value) {
	old := v.Value
	old.Decref()
	v.Value = val
	if val != nil {
		val.Name = v.Name
	}
}

// Scope is an insertion-ordered set of variables. A scope is owned by the
// environment that pushed it, by an instance once detached, and by every
// closure environment that captured it.
type Scope struct {
	vars []*Variable
	// ClassScope marks scopes evaluated as part of a class body, where
	// value-returning return statements are not allowed.
	ClassScope bool

	shares int
	purged bool
}

func NewScope(classScope bool) *Scope {
	return &Scope{ClassScope: classScope, shares: 1}
}

// Add appends an unset variable. The caller sets it before lookups see it.
func (s *Scope) Add(name string) *Variable {
	v := &Variable{Name: name}
	s.vars = append(s.vars, v)
	return v
}

// Find searches this scope only.
func (s *Scope) Find(name string) *Variable {
	for i := len(s.vars) - 1; i >= 0; i-- {
		if s.vars[i].Name == name {
			return s.vars[i]
		}
	}
	return nil
}

// Vars returns the variables in declaration order.
func (s *Scope) Vars() []*Variable {
	return s.vars
}

func (s *Scope) retain() *Scope {
	if s.shares <= 0 {
		invariant("retain on released scope")
	}
	s.shares++
	return s
}

// Release drops one owner. The last owner purges the bindings.
func (s *Scope) Release() {
	if s.shares <= 0 {
		invariant("release on released scope")
	}
	s.shares--
	if s.shares == 0 || s.collectable() {
		s.Purge()
	}
}

// collectable reports whether the only remaining owners are closures stored
// in the scope itself that nothing else references.
func (s *Scope) collectable() bool {
	if s.purged {
		return false
	}
	held := 0
	for _, v := range s.vars {
		val := v.Value
		if val == nil || val.kind != KindFn || val.Fn == nil || val.Fn.Env == nil {
			continue
		}
		n := val.Fn.Env.holds(s)
		if n == 0 {
			continue
		}
		if val.refs != 1 {
			return false
		}
		held += n
	}
	return held == s.shares
}

// Purge releases every binding regardless of how many owners remain. It runs
// at most once per scope.
func (s *Scope) Purge() {
	if s.purged {
		return
	}
	s.purged = true
	vars := s.vars
	s.vars = nil
	for i := len(vars) - 1; i >= 0; i-- {
		val := vars[i].Value
		vars[i].Value = nil
		val.Decref()
	}
}

// Purged reports whether the bindings were already released.
func (s *Scope) Purged() bool { return s.purged }
