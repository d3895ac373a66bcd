package patch

import "testing"

func TestParseUnifiedDiffSingleFile(t *testing.T) {
	diff := "--- a/foo.txt\n" +
		"+++ b/foo.txt\n" +
		"@@ -1,2 +1,2 @@\n" +
		" keep\n" +
		"-old\n" +
		"+new\n"

	changes, err := ParseUnifiedDiff(diff)
	if err != nil {
		t.Fatalf("ParseUnifiedDiff: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	c := changes[0]
	if c.Path != "foo.txt" {
		t.Fatalf("expected normalized path foo.txt, got %q", c.Path)
	}
	if len(c.Hunks) != 1 || len(c.Hunks[0].Lines) != 3 {
		t.Fatalf("unexpected hunk structure: %+v", c.Hunks)
	}
}

func TestParseUnifiedDiffMissingPlusHeader(t *testing.T) {
	diff := "--- a/foo.txt\n@@ -1,1 +1,1 @@\n-x\n+y\n"
	if _, err := ParseUnifiedDiff(diff); err == nil {
		t.Fatal("expected error for missing +++ header")
	}
}

func TestParseFreeformAddUpdateDelete(t *testing.T) {
	text := "*** Begin Patch\n" +
		"*** Add File: new.txt\n" +
		"+hello\n" +
		"+world\n" +
		"*** Update File: existing.txt\n" +
		"@@ -1,1 +1,1 @@\n" +
		"-old\n" +
		"+new\n" +
		"*** Delete File: gone.txt\n" +
		"*** End Patch\n"

	changes, err := ParseFreeform(text)
	if err != nil {
		t.Fatalf("ParseFreeform: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	if changes[0].Op != OpAdd || changes[0].Path != "new.txt" || changes[0].NewContent != "hello\nworld" {
		t.Fatalf("unexpected add change: %+v", changes[0])
	}
	if changes[1].Op != OpUpdate || changes[1].Path != "existing.txt" {
		t.Fatalf("unexpected update change: %+v", changes[1])
	}
	if changes[2].Op != OpDelete || changes[2].Path != "gone.txt" {
		t.Fatalf("unexpected delete change: %+v", changes[2])
	}
}

func TestParseFreeformMissingMarkers(t *testing.T) {
	if _, err := ParseFreeform("no markers here"); err == nil {
		t.Fatal("expected error for missing freeform markers")
	}
}

func TestParseFreeformAddBodyRejectsNonPlusLine(t *testing.T) {
	text := "*** Begin Patch\n*** Add File: x.txt\nnot-a-plus-line\n*** End Patch\n"
	if _, err := ParseFreeform(text); err == nil {
		t.Fatal("expected error for add body line without '+' prefix")
	}
}
