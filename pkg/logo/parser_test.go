package logo

import "testing"

func words(texts ...string) []Word {
	out := make([]Word, len(texts))
	for i, text := range texts {
		out[i] = Word{Line: i + 1, Text: text}
	}
	return out
}

func TestParseNumbers(t *testing.T) {
	tree := Parse(words("130", "1.30"))
	if len(tree) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(tree))
	}

	n0, ok := tree[0].(*NumberLiteral)
	if !ok {
		t.Fatalf("Expected NumberLiteral, got %T", tree[0])
	}
	if n0.Value != 130 || !n0.IsInt {
		t.Errorf("Expected integer 130, got %v (int=%v)", n0.Value, n0.IsInt)
	}

	n1, ok := tree[1].(*NumberLiteral)
	if !ok {
		t.Fatalf("Expected NumberLiteral, got %T", tree[1])
	}
	if n1.Value != 1.3 || n1.IsInt {
		t.Errorf("Expected float 1.3, got %v (int=%v)", n1.Value, n1.IsInt)
	}
}

func TestParseBooleans(t *testing.T) {
	tree := Parse(words("true", "True", "TRUE", "false", "False", "FALSE"))
	if len(tree) != 6 {
		t.Fatalf("Expected 6 nodes, got %d", len(tree))
	}
	for i, n := range tree {
		b, ok := n.(*BooleanLiteral)
		if !ok {
			t.Fatalf("Node %d: expected BooleanLiteral, got %T", i, n)
		}
		if want := i < 3; b.Value != want {
			t.Errorf("Node %d: expected %v, got %v", i, want, b.Value)
		}
	}
}

func TestParseNestedLists(t *testing.T) {
	tree := Parse(words("[", "10", "[", "20", "]", "30", "]"))
	if len(tree) != 1 {
		t.Fatalf("Expected 1 node, got %d", len(tree))
	}
	outer, ok := tree[0].(*List)
	if !ok {
		t.Fatalf("Expected List, got %T", tree[0])
	}
	if len(outer.Items) != 3 {
		t.Fatalf("Expected 3 items in outer list, got %d", len(outer.Items))
	}
	inner, ok := outer.Items[1].(*List)
	if !ok {
		t.Fatalf("Expected inner List, got %T", outer.Items[1])
	}
	if len(inner.Items) != 1 {
		t.Errorf("Expected 1 item in inner list, got %d", len(inner.Items))
	}
}

func TestParseClassification(t *testing.T) {
	tree := Parse(Tokenize(`:foo "bar -42 .5 1e3 fd frobnicate`))
	if len(tree) != 7 {
		t.Fatalf("Expected 7 nodes, got %d", len(tree))
	}

	if v, ok := tree[0].(*VariableRef); !ok || v.Name != "FOO" {
		t.Errorf("Expected VariableRef FOO, got %#v", tree[0])
	}
	if w, ok := tree[1].(*WordLiteral); !ok || w.Value != "BAR" {
		t.Errorf("Expected WordLiteral BAR, got %#v", tree[1])
	}
	if n, ok := tree[2].(*NumberLiteral); !ok || n.Value != -42 || !n.IsInt {
		t.Errorf("Expected integer -42, got %#v", tree[2])
	}
	if n, ok := tree[3].(*NumberLiteral); !ok || n.Value != 0.5 || n.IsInt {
		t.Errorf("Expected float 0.5, got %#v", tree[3])
	}
	if n, ok := tree[4].(*NumberLiteral); !ok || n.Value != 1000 || n.IsInt {
		t.Errorf("Expected float 1000, got %#v", tree[4])
	}

	fd, ok := tree[5].(*Command)
	if !ok {
		t.Fatalf("Expected Command, got %T", tree[5])
	}
	if fd.Name != "FORWARD" || fd.Desc == nil {
		t.Errorf("Expected FD to resolve to FORWARD, got %q (desc=%v)", fd.Name, fd.Desc)
	}

	unknown, ok := tree[6].(*Command)
	if !ok {
		t.Fatalf("Expected Command, got %T", tree[6])
	}
	if unknown.Desc != nil {
		t.Errorf("Expected no descriptor for FROBNICATE")
	}
}

func TestParseAliases(t *testing.T) {
	tests := map[string]string{
		"CS":          "CLEARSCREEN",
		"FD":          "FORWARD",
		"PU":          "PENUP",
		"PD":          "PENDOWN",
		"RT":          "RIGHT",
		"LT":          "LEFT",
		"ST":          "SHOWTURTLE",
		"HT":          "HIDETURTLE",
		"SETPENCOLOR": "SETPENCOLOUR",
	}
	for alias, name := range tests {
		t.Run(alias, func(t *testing.T) {
			tree := Parse(words(alias))
			cmd, ok := tree[0].(*Command)
			if !ok {
				t.Fatalf("Expected Command, got %T", tree[0])
			}
			if cmd.Name != name {
				t.Errorf("Expected %s, got %s", name, cmd.Name)
			}
			if cmd.Desc == nil {
				t.Errorf("Expected descriptor for %s", name)
			}
		})
	}
}

func TestParseUnterminatedList(t *testing.T) {
	tree := Parse(words("[", "1", "2"))
	if len(tree) != 1 {
		t.Fatalf("Expected 1 node, got %d", len(tree))
	}
	list, ok := tree[0].(*List)
	if !ok {
		t.Fatalf("Expected List, got %T", tree[0])
	}
	if len(list.Items) != 2 {
		t.Errorf("Expected partial list with 2 items, got %d", len(list.Items))
	}
}

func TestParseStrayCloseBracket(t *testing.T) {
	tree := Parse(words("1", "]", "2"))
	if len(tree) != 2 {
		t.Fatalf("Expected stray ] to be skipped, got %d nodes", len(tree))
	}
}
