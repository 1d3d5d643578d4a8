package main

import "testing"

func TestOpenStoreEmptyPathIsInMemory(t *testing.T) {
	store, err := openStore("")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, ok, err := store.LoadConfig(); err != nil || ok {
		t.Fatalf("fresh in-memory store should have no config: ok=%v err=%v", ok, err)
	}
}

func TestOpenStoreOnDiskRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := openStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.SaveSolved(true, "abc123"); err != nil {
		t.Fatal(err)
	}
	solved, solution, err := store.LoadSolved()
	if err != nil {
		t.Fatal(err)
	}
	if !solved || solution != "abc123" {
		t.Fatalf("got solved=%v solution=%q", solved, solution)
	}
}
