package postgres

import (
	"testing"

	"github.com/deskhive/kbase/internal/knowledge"
)

func TestScopeArrays(t *testing.T) {
	t.Run("nil means unrestricted", func(t *testing.T) {
		scoped, types, ids := scopeArrays(nil)
		if scoped {
			t.Error("nil scope should not be scoped")
		}
		if types != nil || ids != nil {
			t.Errorf("arrays = %v/%v, want nil", types, ids)
		}
	})

	t.Run("empty non-nil matches nothing", func(t *testing.T) {
		scoped, types, ids := scopeArrays([]knowledge.Identity{})
		if !scoped {
			t.Error("empty scope must still be scoped")
		}
		if len(types) != 0 || len(ids) != 0 {
			t.Errorf("arrays = %v/%v, want empty", types, ids)
		}
	})

	t.Run("identities flatten to parallel arrays", func(t *testing.T) {
		scoped, types, ids := scopeArrays([]knowledge.Identity{
			{Type: knowledge.TypeArticle, ID: 1},
			{Type: knowledge.TypeWebpage, ID: 2},
		})
		if !scoped {
			t.Error("scope must be scoped")
		}
		if len(types) != 2 || types[0] != "article" || types[1] != "webpage" {
			t.Errorf("types = %v", types)
		}
		if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Errorf("ids = %v", ids)
		}
	})
}
