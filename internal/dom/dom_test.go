package dom

import (
	"strings"
	"testing"
)

func parseDoc(t *testing.T, markup string) *Document {
	t.Helper()
	d, err := Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d
}

func TestQueryFallthroughOrder(t *testing.T) {
	d := parseDoc(t, `<div><p class="b">second</p><p class="a">first</p></div>`)
	if el := d.Query(".a"); el == nil || el.Text() != "first" {
		t.Fatalf("Query(.a) = %v", el)
	}
	if el := d.Query(".missing"); el != nil {
		t.Fatalf("Query(.missing) = %v, want nil", el)
	}
}

func TestMalformedSelectorReturnsNil(t *testing.T) {
	d := parseDoc(t, `<div class="a">x</div>`)
	if el := d.Query("[[["); el != nil {
		t.Fatalf("malformed selector matched %v", el)
	}
	if els := d.QueryAll("[[["); len(els) != 0 {
		t.Fatalf("malformed selector matched %d nodes", len(els))
	}
}

func TestTextCollapsesAndTrims(t *testing.T) {
	d := parseDoc(t, `<div id="t">  Hello <b>World</b>
	</div>`)
	got := d.ElementByID("t").Text()
	if got != "Hello World" {
		t.Errorf("Text() = %q, want %q", got, "Hello World")
	}
}

func TestTextValueFallback(t *testing.T) {
	d := parseDoc(t, `<input id="i" value=" My Title ">`)
	if got := d.ElementByID("i").Text(); got != "My Title" {
		t.Errorf("Text() = %q, want %q", got, "My Title")
	}
}

func TestClassOps(t *testing.T) {
	d := parseDoc(t, `<div id="x" class="one two"></div>`)
	n := d.ElementByID("x")
	if !n.HasClass("one") || n.HasClass("three") {
		t.Fatal("HasClass wrong")
	}
	n.AddClass("three")
	n.AddClass("three") // idempotent
	if n.Attr("class") != "one two three" {
		t.Errorf("class = %q", n.Attr("class"))
	}
	n.RemoveClass("two")
	if n.HasClass("two") || !n.HasClass("three") {
		t.Errorf("class after remove = %q", n.Attr("class"))
	}
}

func TestTreeManipulation(t *testing.T) {
	d := parseDoc(t, `<div id="parent"><span id="ref"></span></div>`)
	parent := d.ElementByID("parent")
	ref := d.ElementByID("ref")

	child := d.CreateElement("div")
	child.SetAttr("id", "child")
	parent.InsertBefore(child, ref)

	kids := parent.Children()
	if len(kids) != 2 || kids[0].ID() != "child" || kids[1].ID() != "ref" {
		t.Fatalf("unexpected children after InsertBefore")
	}

	child.Remove()
	if d.ElementByID("child") != nil {
		t.Fatal("removed node still reachable by id")
	}
}

func TestClosestAndContains(t *testing.T) {
	d := parseDoc(t, `<div class="outer"><div class="inner"><span id="leaf"></span></div></div>`)
	leaf := d.ElementByID("leaf")
	if c := leaf.Closest(".outer"); c == nil || !c.HasClass("outer") {
		t.Fatal("Closest failed")
	}
	outer := d.Query(".outer")
	if !outer.Contains(leaf) {
		t.Fatal("Contains failed")
	}
	if leaf.Contains(outer) {
		t.Fatal("Contains inverted")
	}
}

func TestObserverFiltersAndCoalesces(t *testing.T) {
	d := parseDoc(t, `<div id="root"><mat-checkbox id="cb"></mat-checkbox><div id="other"></div></div>`)
	obs := d.Observe(nil, ObserveOptions{
		ChildList:       true,
		Subtree:         true,
		Attributes:      true,
		AttributeFilter: []string{"class"},
	})
	defer obs.Disconnect()

	cb := d.ElementByID("cb")
	cb.AddClass("checked")
	d.ElementByID("other").SetAttr("data-x", "1") // filtered out
	d.ElementByID("root").AppendChild(d.CreateElement("p"))

	select {
	case <-obs.C():
	default:
		t.Fatal("no notification")
	}
	recs := obs.Take()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Type != AttributeMutation || recs[0].Attr != "class" {
		t.Errorf("first record = %+v", recs[0])
	}
	if recs[1].Type != ChildListMutation {
		t.Errorf("second record = %+v", recs[1])
	}
	if len(obs.Take()) != 0 {
		t.Error("Take did not drain")
	}
}

func TestObserverDisconnect(t *testing.T) {
	d := parseDoc(t, `<div id="x"></div>`)
	obs := d.Observe(nil, ObserveOptions{ChildList: true, Subtree: true})
	obs.Disconnect()
	d.ElementByID("x").AppendChild(d.CreateElement("p"))
	if len(obs.Take()) != 0 {
		t.Error("disconnected observer received records")
	}
}
