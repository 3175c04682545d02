package record

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMergesIdentity(t *testing.T) {
	dir := t.TempDir()
	trans := writeFile(t, dir, "trans.csv", `TransactionID,TransactionAmt,card1,ProductCD
1001,59.95,1234,W
1002,220.50,5678,C
1003,10.00,9012,W
`)
	identity := writeFile(t, dir, "identity.csv", `TransactionID,DeviceType,id-31
1001,mobile,chrome
1003,desktop,firefox
`)

	ds, err := Load(trans, identity)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if ds.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", ds.Len())
	}

	first, err := ds.At(0)
	if err != nil {
		t.Fatalf("At(0) error: %v", err)
	}
	if first.TransactionID != "1001" {
		t.Errorf("TransactionID = %q, want 1001", first.TransactionID)
	}
	if first.Amount != 59.95 {
		t.Errorf("Amount = %v, want 59.95", first.Amount)
	}
	if first.Fields["DeviceType"] != "mobile" {
		t.Errorf("DeviceType = %q, want mobile", first.Fields["DeviceType"])
	}
	// Hyphenated identity columns are normalized.
	if first.Fields["id_31"] != "chrome" {
		t.Errorf("id_31 = %q, want chrome", first.Fields["id_31"])
	}

	// Left join: row without identity data is kept, identity fields absent.
	second, _ := ds.At(1)
	if second.TransactionID != "1002" {
		t.Errorf("TransactionID = %q, want 1002", second.TransactionID)
	}
	if _, ok := second.Fields["DeviceType"]; ok {
		t.Error("row without identity match should not have DeviceType")
	}
}

func TestLoadWithoutIdentity(t *testing.T) {
	dir := t.TempDir()
	trans := writeFile(t, dir, "trans.csv", `TransactionID,TransactionAmt
1,5.00
2,6.00
`)

	ds, err := Load(trans, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if ds.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ds.Len())
	}
}

func TestLoadPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	trans := writeFile(t, dir, "trans.csv", `TransactionID,TransactionAmt
30,1.00
10,2.00
20,3.00
`)

	ds, err := Load(trans, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := []string{"30", "10", "20"}
	for i, id := range want {
		rec, err := ds.At(i)
		if err != nil {
			t.Fatalf("At(%d) error: %v", i, err)
		}
		if rec.TransactionID != id {
			t.Errorf("At(%d).TransactionID = %q, want %q", i, rec.TransactionID, id)
		}
	}
}

func TestLoadMissingColumns(t *testing.T) {
	dir := t.TempDir()

	noID := writeFile(t, dir, "noid.csv", "TransactionAmt\n5.00\n")
	if _, err := Load(noID, ""); err == nil {
		t.Error("Load() without TransactionID column should return error")
	}

	noAmt := writeFile(t, dir, "noamt.csv", "TransactionID\n1\n")
	if _, err := Load(noAmt, ""); err == nil {
		t.Error("Load() without TransactionAmt column should return error")
	}
}

func TestLoadBadAmount(t *testing.T) {
	dir := t.TempDir()
	trans := writeFile(t, dir, "trans.csv", `TransactionID,TransactionAmt
1,not-a-number
`)
	if _, err := Load(trans, ""); err == nil {
		t.Error("Load() with unparsable amount should return error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/trans.csv", ""); err == nil {
		t.Error("Load() on missing file should return error")
	}
}

func TestAtOutOfRange(t *testing.T) {
	ds := NewDataset([]Record{{TransactionID: "1"}})

	if _, err := ds.At(-1); err == nil {
		t.Error("At(-1) should return error")
	}
	if _, err := ds.At(1); err == nil {
		t.Error("At(Len()) should return error")
	}
}

func TestFromMap(t *testing.T) {
	rec := FromMap(map[string]any{
		"TransactionID":  float64(3366599),
		"TransactionAmt": 117.0,
		"card1":          "9500",
		"dist1":          nil,
	})

	if rec.TransactionID != "3366599" {
		t.Errorf("TransactionID = %q, want 3366599", rec.TransactionID)
	}
	if rec.Amount != 117.0 {
		t.Errorf("Amount = %v, want 117", rec.Amount)
	}
	if rec.Fields["card1"] != "9500" {
		t.Errorf("Fields[card1] = %q, want 9500", rec.Fields["card1"])
	}
	if rec.Fields["dist1"] != "" {
		t.Errorf("Fields[dist1] = %q, want empty", rec.Fields["dist1"])
	}
}

func TestFromMapStringValues(t *testing.T) {
	rec := FromMap(map[string]any{
		"TransactionID":  "abc-1",
		"TransactionAmt": "42.5",
	})
	if rec.TransactionID != "abc-1" {
		t.Errorf("TransactionID = %q, want abc-1", rec.TransactionID)
	}
	if rec.Amount != 42.5 {
		t.Errorf("Amount = %v, want 42.5", rec.Amount)
	}
}
