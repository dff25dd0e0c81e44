package main

import "testing"

func TestRunReadOnGoldenFixture(t *testing.T) {
	if err := runRead("../../testdata/nsstring.bin"); err != nil {
		t.Fatalf("runRead: %v", err)
	}
}

func TestRunDecodeOnGoldenFixture(t *testing.T) {
	if err := runDecode("../../testdata/nsstring.bin"); err != nil {
		t.Fatalf("runDecode: %v", err)
	}
}

func TestRunReadRejectsMissingFile(t *testing.T) {
	if err := runRead("../../testdata/does-not-exist.bin"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
