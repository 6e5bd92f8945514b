package runtime

// Environment is the stack of scopes variable lookup walks through, innermost
// first.
type Environment struct {
	scopes   []*Scope
	captured *captures
}

// NewEnvironment creates an empty environment. Callers push the root scope.
func NewEnvironment() *Environment {
	return &Environment{captured: &captures{}}
}

// captures records every scope a closure derived from one root environment
// retained. Purging the root reaches scopes only escaped closures still hold.
type captures struct {
	scopes []*Scope
	seen   map[*Scope]bool
}

func (c *captures) add(s *Scope) {
	if c.seen == nil {
		c.seen = make(map[*Scope]bool)
	}
	if c.seen[s] {
		return
	}
	if len(c.scopes) >= 64 && len(c.scopes) == cap(c.scopes) {
		c.compact()
	}
	c.seen[s] = true
	c.scopes = append(c.scopes, s)
}

func (c *captures) compact() {
	kept := c.scopes[:0]
	for _, s := range c.scopes {
		if s.purged {
			delete(c.seen, s)
			continue
		}
		kept = append(kept, s)
	}
	clear(c.scopes[len(kept):])
	c.scopes = kept
}

func (c *captures) purge() {
	scopes := c.scopes
	c.scopes = nil
	c.seen = nil
	for i := len(scopes) - 1; i >= 0; i-- {
		scopes[i].Purge()
	}
}

// PushScope pushes a new scope inheriting the class flag of the current top.
func (e *Environment) PushScope() *Scope {
	classScope := false
	if top := e.Top(); top != nil {
		classScope = top.ClassScope
	}
	return e.PushClassScope(classScope)
}

// PushClassScope pushes a new scope with an explicit class flag.
func (e *Environment) PushClassScope(classScope bool) *Scope {
	s := NewScope(classScope)
	e.scopes = append(e.scopes, s)
	return s
}

// PopScope removes the top scope and releases the environment's share of it.
func (e *Environment) PopScope() {
	e.Detach().Release()
}

// Detach pops the top scope without releasing it; ownership moves to the
// caller.
func (e *Environment) Detach() *Scope {
	n := len(e.scopes)
	if n == 0 {
		invariant("detach from empty environment")
	}
	s := e.scopes[n-1]
	e.scopes[n-1] = nil
	e.scopes = e.scopes[:n-1]
	return s
}

// Attach pushes a scope owned elsewhere. It must be removed with Detach.
func (e *Environment) Attach(s *Scope) {
	e.scopes = append(e.scopes, s)
}

// Top returns the innermost scope, or nil when the stack is empty.
func (e *Environment) Top() *Scope {
	if len(e.scopes) == 0 {
		return nil
	}
	return e.scopes[len(e.scopes)-1]
}

func (e *Environment) Depth() int { return len(e.scopes) }

// Scopes exposes the stack, outermost first.
func (e *Environment) Scopes() []*Scope { return e.scopes }

// Find resolves name from the innermost scope outwards.
func (e *Environment) Find(name string) *Variable {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if v := e.scopes[i].Find(name); v != nil {
			return v
		}
	}
	return nil
}

// CloseOver builds the environment a closure runs in. It shares the current
// scopes rather than copying their bindings, so later updates stay visible.
func (e *Environment) CloseOver() *Environment {
	scopes := make([]*Scope, len(e.scopes))
	for i, s := range e.scopes {
		scopes[i] = s.retain()
		if e.captured != nil {
			e.captured.add(s)
		}
	}
	return &Environment{scopes: scopes, captured: e.captured}
}

func (e *Environment) holds(s *Scope) int {
	n := 0
	for _, held := range e.scopes {
		if held == s {
			n++
		}
	}
	return n
}

// Release drops the environment's share of every scope it holds.
func (e *Environment) Release() {
	scopes := e.scopes
	e.scopes = nil
	for i := len(scopes) - 1; i >= 0; i-- {
		scopes[i].Release()
	}
}

// Purge releases every binding reachable from the stack and empties it. The
// scopes captured by closures derived from the environment are purged too,
// including those only an escaped closure still holds.
func (e *Environment) Purge() {
	scopes := e.scopes
	e.scopes = nil
	for i := len(scopes) - 1; i >= 0; i-- {
		scopes[i].Purge()
	}
	if e.captured != nil {
		e.captured.purge()
	}
}
