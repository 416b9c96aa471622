package condition_test

import (
	"testing"

	"novel-engine/pkg/engine/condition"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	vars := map[string]any{
		"flag":   true,
		"gold":   float64(150),
		"lives":  3, // int из кода хоста должен сравниваться как число
		"name":   "alice",
		"class":  "mage",
		"secret": nil,
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"bool equality true", "flag == true", true},
		{"bool equality false", "flag == false", false},
		{"bool inequality", "flag != false", true},
		{"bare bool variable", "flag", true},
		{"negated bool variable", "!flag", false},
		{"numeric gte", "gold >= 100", true},
		{"numeric lt", "gold < 100", false},
		{"int variable compares numerically", "lives > 2", true},
		{"string equality single quotes", "class == 'mage'", true},
		{"string equality double quotes", `name == "alice"`, true},
		{"string ordering", "name < 'bob'", true},
		{"null comparison", "secret == null", true},
		{"and both true", "flag && gold > 100", true},
		{"and short side false", "flag && gold > 1000", false},
		{"or one true", "gold > 1000 || class == 'mage'", true},
		{"not with parens", "!(gold < 100)", true},
		{"nested parens", "(flag || lives > 5) && (gold >= 150)", true},
		{"literal only", "1 < 2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, condition.Evaluate(tt.expr, vars))
		})
	}
}

// TestEvaluateFailClosed: любое невычислимое условие дает false и не
// паникует — этого контракта требуют вызывающие.
func TestEvaluateFailClosed(t *testing.T) {
	vars := map[string]any{"gold": 10, "name": "alice"}

	exprs := []struct {
		name string
		expr string
	}{
		{"unknown variable", "missing == true"},
		{"empty expression", ""},
		{"whitespace only", "   "},
		{"type mismatch equality", "gold == 'ten'"},
		{"type mismatch ordering", "name > 5"},
		{"non-bool result", "gold"},
		{"non-bool operand of and", "gold && true"},
		{"assignment rejected", "gold = 10"},
		{"unterminated string", "name == 'alice"},
		{"dangling operator", "gold >= "},
		{"unbalanced parens", "(gold > 5"},
		{"garbage characters", "gold @ 5"},
		{"function call is not a thing", "len(name) > 2"},
	}

	for _, tt := range exprs {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, condition.Evaluate(tt.expr, vars))
		})
	}
}

func TestEvaluateDoesNotMutateVars(t *testing.T) {
	vars := map[string]any{"gold": 10}
	condition.Evaluate("gold >= 5 && gold <= 100", vars)
	assert.Equal(t, map[string]any{"gold": 10}, vars)
}

func TestEvaluateErr(t *testing.T) {
	_, err := condition.EvaluateErr("missing == 1", map[string]any{})
	assert.Error(t, err)

	ok, err := condition.EvaluateErr("2 >= 2", nil)
	assert.NoError(t, err)
	assert.True(t, ok)
}
