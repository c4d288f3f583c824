package model

// ListScopes implements the list_scopes selection semantics: scope == nil
// requests all scopes regardless of depth; scope == "" requests only root
// scopes (no separator in the name); any other value requests scopes whose
// parent exactly equals the given path.
func (m *Model) ListScopes(scope *string) map[string]*Scope {
	out := map[string]*Scope{}
	for name, s := range m.Scopes {
		if scopeMatches(name, scope) {
			out[name] = s
		}
	}
	return out
}

// ListItems implements the list_items selection semantics, identical in
// shape to ListScopes but over the item arena.
func (m *Model) ListItems(scope *string) map[string]*Item {
	out := map[string]*Item{}
	for name, it := range m.Items {
		if scopeMatches(name, scope) {
			out[name] = it
		}
	}
	return out
}

func scopeMatches(name string, scope *string) bool {
	if scope == nil {
		return true
	}
	if *scope == "" {
		return IsRoot(name)
	}
	return ParentPath(name) == *scope
}
